package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// LocalStore keeps images on a filesystem rooted at a base directory.
type LocalStore struct {
	fs            afero.Fs
	publicBaseURL string
}

func NewLocalStore(dir, publicBaseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir %s: %w", dir, err)
	}
	return NewLocalStoreFs(afero.NewBasePathFs(afero.NewOsFs(), dir), publicBaseURL), nil
}

func NewLocalStoreFs(fs afero.Fs, publicBaseURL string) *LocalStore {
	return &LocalStore{fs: fs, publicBaseURL: publicBaseURL}
}

func (s *LocalStore) Store(_ context.Context, path string, data []byte, _ string) error {
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (s *LocalStore) Remove(_ context.Context, path string) error {
	if err := s.fs.Remove(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

func (s *LocalStore) PublicURL(_ context.Context, path string) (string, error) {
	if s.publicBaseURL == "" {
		return "", ErrNoPublicURL
	}
	return url.JoinPath(s.publicBaseURL, path)
}

// FileSystem exposes stored images for static serving.
func (s *LocalStore) FileSystem() http.FileSystem {
	return afero.NewHttpFs(s.fs)
}
