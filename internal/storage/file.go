package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileBackend stores the document as <dir>/<name>.json.
type FileBackend struct {
	path string
}

// NewFileBackend creates dir if needed and returns a backend for name.
func NewFileBackend(dir, name string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &FileBackend{path: filepath.Join(dir, name+".json")}, nil
}

// Path returns the document file path.
func (b *FileBackend) Path() string {
	return b.path
}

// Load implements Backend.
func (b *FileBackend) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotExist
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", b.path, err)
	}

	return data, nil
}

// Save implements Backend. The document is written to a temporary file in
// the same directory and renamed over the old one.
func (b *FileBackend) Save(_ context.Context, data []byte) error {
	temp, err := os.CreateTemp(filepath.Dir(b.path), filepath.Base(b.path)+".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)

		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := temp.Sync(); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)

		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, b.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to replace %s: %w", b.path, err)
	}

	return nil
}

// Name implements Backend.
func (b *FileBackend) Name() string {
	return "file"
}

// Close implements Backend.
func (b *FileBackend) Close() error {
	return nil
}
