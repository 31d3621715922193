// Package blob abstracts the blob store used for media and avatar uploads.
package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store uploads opaque bytes to a destination path and returns a public URL.
type Store interface {
	Put(ctx context.Context, r io.Reader, destPath string) (string, error)
}

// LocalDir is a Store that writes under a base directory and returns
// file:// URLs. It stands in for the real blob service during development
// and tests.
type LocalDir struct {
	Base string
}

// Put implements Store.
func (d *LocalDir) Put(ctx context.Context, r io.Reader, destPath string) (string, error) {
	full := filepath.Join(d.Base, filepath.FromSlash(destPath))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", fmt.Errorf("failed to create blob directory: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("failed to create blob file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}

	return "file://" + filepath.ToSlash(full), nil
}
