package session

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeCredentialInvalid   = "SESSION_CREDENTIAL_INVALID"
	TextCodeCredentialExpired   = "SESSION_CREDENTIAL_EXPIRED"
	TextCodeIdentityUnreachable = "SESSION_IDENTITY_UNREACHABLE"
	TextCodeSessionInit         = "SESSION_INIT_FAILED"
	TextCodeCredentialHandoff   = "SESSION_CREDENTIAL_HANDOFF_FAILED"
	TextCodeLogoutRemote        = "SESSION_LOGOUT_REMOTE_FAILED"
	TextCodeStoreClosed         = "SESSION_STORE_CLOSED"
)

// ErrCredentialInvalid is returned by identity services for unknown or revoked credentials.
var ErrCredentialInvalid = goerrors.New("credential is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeCredentialInvalid).
	WithCode(http.StatusUnauthorized)

// ErrCredentialExpired is returned by identity services for expired credentials.
var ErrCredentialExpired = goerrors.New("credential is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeCredentialExpired).
	WithCode(http.StatusUnauthorized)

// ErrIdentityUnreachable is returned when the identity service cannot be reached.
var ErrIdentityUnreachable = goerrors.New("identity service unreachable", goerrors.CategoryOperation).
	WithTextCode(TextCodeIdentityUnreachable).
	WithCode(http.StatusBadGateway)

// ErrSessionInit wraps an identity failure during initialize or refresh.
// It is recovered inside the store and only reaches loggers and sinks.
var ErrSessionInit = goerrors.New("session initialization failed", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionInit).
	WithCode(http.StatusUnauthorized)

// ErrCredentialHandoff is returned when the callback carries no usable credential.
var ErrCredentialHandoff = goerrors.New("credential handoff failed", goerrors.CategoryBadInput).
	WithTextCode(TextCodeCredentialHandoff).
	WithCode(goerrors.CodeBadRequest)

// ErrLogoutRemote wraps an invalidate session failure. Never returned by Logout.
var ErrLogoutRemote = goerrors.New("remote logout failed", goerrors.CategoryOperation).
	WithTextCode(TextCodeLogoutRemote).
	WithCode(http.StatusBadGateway)

// ErrStoreClosed is returned by store operations after Close.
var ErrStoreClosed = goerrors.New("session store closed", goerrors.CategoryConflict).
	WithTextCode(TextCodeStoreClosed).
	WithCode(goerrors.CodeConflict)

// FailureKind is the identity service failure classification
type FailureKind string

const (
	FailureNone        FailureKind = ""
	FailureInvalid     FailureKind = "invalid"
	FailureExpired     FailureKind = "expired"
	FailureUnreachable FailureKind = "unreachable"
)

// ClassifyFailure maps an identity service error to a FailureKind. Errors
// that carry none of the session text codes are treated as unreachable,
// unless their message says the token expired or is invalid.
func ClassifyFailure(err error) FailureKind {
	if err == nil {
		return FailureNone
	}

	switch TextCode(err) {
	case TextCodeCredentialExpired:
		return FailureExpired
	case TextCodeCredentialInvalid:
		return FailureInvalid
	case TextCodeIdentityUnreachable:
		return FailureUnreachable
	}

	if IsTokenExpiredError(err) {
		return FailureExpired
	}
	if IsMalformedError(err) {
		return FailureInvalid
	}
	return FailureUnreachable
}

// TextCode returns the go-errors text code carried by err, if any
func TextCode(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil {
		return richErr.TextCode
	}
	return ""
}

// HasTextCode reports whether err carries the given text code
func HasTextCode(err error, code string) bool {
	return err != nil && TextCode(err) == code
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if TextCode(err) == TextCodeCredentialExpired {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

func wrapFailure(err error, sentinel *goerrors.Error, kind FailureKind, operation string) *goerrors.Error {
	return goerrors.Wrap(err, sentinel.Category, sentinel.Message).
		WithTextCode(sentinel.TextCode).
		WithCode(sentinel.Code).
		WithMetadata(map[string]any{
			"failure":   string(kind),
			"operation": operation,
		})
}
