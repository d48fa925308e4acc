package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps credentials in a JSON object on disk. The file is written
// with mode 0600 and its directory with 0700 since it holds bearer tokens.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by the file at path. The file is
// created on the first Set.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultFilePath returns $XDG_CONFIG_HOME/<app>/credentials.json, falling
// back to ~/.config/<app>/credentials.json.
func DefaultFilePath(app string) string {
	configDirectory := os.Getenv("XDG_CONFIG_HOME")
	if configDirectory == "" {
		homeDirectory, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), app+"-credentials.json")
		}
		configDirectory = filepath.Join(homeDirectory, ".config")
	}
	return filepath.Join(configDirectory, app, "credentials.json")
}

func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (f *FileStore) Set(_ context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return err
	}
	values[key] = value
	return f.write(values)
}

func (f *FileStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return f.write(values)
}

func (f *FileStore) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, backendError(err, "file", "reading credential file", map[string]any{"path": f.path})
	}

	values := map[string]string{}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, backendError(err, "file", "parsing credential file", map[string]any{"path": f.path})
	}
	return values, nil
}

// write replaces the file through a temp file and rename so a crash never
// leaves a truncated credential file behind.
func (f *FileStore) write(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return backendError(err, "file", "marshaling credentials", nil)
	}
	data = append(data, '\n')

	directory := filepath.Dir(f.path)
	if err := os.MkdirAll(directory, 0700); err != nil {
		return backendError(err, "file", "creating credential directory", map[string]any{"path": directory})
	}

	tmp, err := os.CreateTemp(directory, ".credentials-*")
	if err != nil {
		return backendError(err, "file", "creating temp credential file", map[string]any{"path": directory})
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return backendError(err, "file", "chmod temp credential file", map[string]any{"path": tmpName})
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return backendError(err, "file", "writing temp credential file", map[string]any{"path": tmpName})
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return backendError(err, "file", "closing temp credential file", map[string]any{"path": tmpName})
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return backendError(err, "file", "writing credential file", map[string]any{"path": f.path})
	}
	return nil
}
