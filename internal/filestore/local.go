package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type localStore struct {
	root string
}

var _ Store = (*localStore)(nil)

// NewLocal creates a filesystem-backed store rooted at dir. Keys resolve
// beneath the root; path traversal is rejected.
func NewLocal(dir string) (Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("filestore: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create root: %w", err)
	}
	return &localStore{root: abs}, nil
}

func (s *localStore) resolve(key string) (string, error) {
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if !strings.HasPrefix(path, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("filestore: key %q escapes store root", key)
	}
	return path, nil
}

func (s *localStore) Save(_ context.Context, key, _ string, content io.Reader) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("filestore: create dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("filestore: create file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, content); err != nil {
		return fmt.Errorf("filestore: write file: %w", err)
	}
	return nil
}

func (s *localStore) Open(_ context.Context, key string) ([]byte, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("filestore: read file: %w", err)
	}
	return data, nil
}

func (s *localStore) Exists(_ context.Context, key string) (bool, error) {
	path, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("filestore: stat file: %w", err)
	}
	return true, nil
}

func (s *localStore) Delete(_ context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("filestore: delete file: %w", err)
	}
	return nil
}

// URL is empty for local storage; documents are served through the API.
func (s *localStore) URL(context.Context, string) (string, error) {
	return "", nil
}
