package receipt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Storage persists a rendered receipt and returns where it was written.
type Storage interface {
	Store(ctx context.Context, name, contentType string, data []byte) (location string, err error)
}

// FileStorage writes receipts under a directory on the local filesystem.
type FileStorage struct {
	dir string
}

func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{dir: dir}
}

func (s *FileStorage) Store(ctx context.Context, name, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid receipt name %q", name)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create receipt dir: %w", err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write receipt %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("write receipt %s: %w", name, err)
	}
	return path, nil
}
