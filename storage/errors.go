package storage

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeEmptyKey      = "SESSION_STORAGE_EMPTY_KEY"
	TextCodeStorageFailed = "SESSION_STORAGE_FAILED"
)

// ErrEmptyKey is returned when a credential key is empty
var ErrEmptyKey = goerrors.New("storage: empty key", goerrors.CategoryBadInput).
	WithTextCode(TextCodeEmptyKey).
	WithCode(goerrors.CodeBadRequest)

func backendError(err error, backend, message string, metadata map[string]any) *goerrors.Error {
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["backend"] = backend
	return goerrors.Wrap(err, goerrors.CategoryOperation, "storage: "+message).
		WithTextCode(TextCodeStorageFailed).
		WithMetadata(metadata)
}
