package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes under dir and reads absolute or cwd-relative paths.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("upload directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStore{dir: abs}, nil
}

func (s *LocalStore) Dir() string {
	return s.dir
}

// Put writes body to dir/key via a temp file and rename. It returns the
// absolute path, which is what gets persisted.
func (s *LocalStore) Put(ctx context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	target, err := s.keyPath(key)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.Rename(tmpName, target); err != nil {
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}
	committed = true
	return target, nil
}

func (s *LocalStore) Get(_ context.Context, path string) (*Object, error) {
	f, err := os.Open(s.readPath(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, ErrNotFound
	}
	return &Object{Body: f, Size: info.Size()}, nil
}

func (s *LocalStore) Delete(_ context.Context, path string) error {
	err := os.Remove(s.readPath(path))
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

func (s *LocalStore) keyPath(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.dir, key), nil
}

// readPath accepts stored paths as-is: absolute, or relative to the working
// directory. Values come from the database, never from a request.
func (s *LocalStore) readPath(path string) string {
	return filepath.Clean(path)
}
