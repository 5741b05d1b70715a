// Package file stores cart blobs as files in a directory, one per key.
package file

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"cartflow/pkg/cart"
)

// Slot persists cart blobs on the local filesystem.
type Slot struct {
	dir string
}

// New creates a file slot rooted at dir, creating dir if needed.
func New(dir string) (*Slot, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create slot dir: %w", err)
	}
	return &Slot{dir: dir}, nil
}

// keys like "@cartflow:cart" are not portable file names
func (s *Slot) path(key string) string {
	return filepath.Join(s.dir, hex.EncodeToString([]byte(key))+".json")
}

// Read returns the value stored under key.
func (s *Slot) Read(ctx context.Context, key string) (string, error) {
	b, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", cart.ErrSlotEmpty
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Write replaces the value under key. The file is swapped in with a rename
// so a crash never leaves a half-written blob behind.
func (s *Slot) Write(ctx context.Context, key, value string) error {
	tmp, err := os.CreateTemp(s.dir, ".slot-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path(key))
}

// Delete removes the file of key.
func (s *Slot) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return cart.ErrSlotEmpty
	}
	return err
}
