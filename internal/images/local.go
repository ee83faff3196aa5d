package images

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps images in one directory.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		dir = "./data/images"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve images dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create images dir: %w", err)
	}
	return &LocalStore{dir: abs}, nil
}

func (s *LocalStore) Location(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *LocalStore) Save(_ context.Context, name, _ string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create images dir: %w", err)
	}
	f, err := os.OpenFile(s.Location(name), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create image: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write image: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync image: %w", err)
	}
	return f.Close()
}

func (s *LocalStore) Open(_ context.Context, name string) (*Object, error) {
	f, err := os.Open(s.Location(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat image: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, ErrNotFound
	}
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &Object{Body: f, ContentType: ct, Size: info.Size()}, nil
}

// Delete removes name, falling back to a case-insensitive match.
func (s *LocalStore) Delete(_ context.Context, name string) (bool, error) {
	target := s.Location(name)
	info, err := os.Stat(target)
	if err == nil && !info.IsDir() {
		if err := os.Remove(target); err != nil {
			return false, fmt.Errorf("delete image: %w", err)
		}
		return true, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat image: %w", err)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return false, fmt.Errorf("list images dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(entry.Name(), name) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			return false, fmt.Errorf("delete image: %w", err)
		}
		return true, nil
	}
	return false, nil
}
