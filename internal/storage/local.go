package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage implements Uploader using the local filesystem. Files are
// expected to be served by the HTTP server under publicURL.
type LocalStorage struct {
	basePath  string
	publicURL string
	now       func() time.Time
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath, publicURL string) (*LocalStorage, error) {
	if publicURL == "" {
		return nil, fmt.Errorf("public url is required")
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath:  basePath,
		publicURL: publicURL,
		now:       time.Now,
	}, nil
}

// Upload writes the bill under basePath/folder and returns its public URL
func (l *LocalStorage) Upload(ctx context.Context, data []byte, folder string) (string, error) {
	key := objectKey(folder, l.now(), data)
	fullPath := filepath.Join(l.basePath, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("%w: creating folder: %v", ErrStorageUnavailable, err)
	}
	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return "", fmt.Errorf("%w: writing file: %v", ErrStorageUnavailable, err)
	}
	return publicURL(l.publicURL, key), nil
}

// Get retrieves a stored file by key
func (l *LocalStorage) Get(key string) ([]byte, error) {
	fullPath, err := l.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// resolve maps a key to a path and refuses anything escaping basePath
func (l *LocalStorage) resolve(key string) (string, error) {
	cleaned := filepath.Clean("/" + filepath.FromSlash(key))
	fullPath := filepath.Join(l.basePath, cleaned)
	rel, err := filepath.Rel(l.basePath, fullPath)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("invalid key: %q", key)
	}
	return fullPath, nil
}
