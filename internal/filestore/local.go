package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type localConfig struct {
	Dir string `json:"dir"`
}

type localStore struct {
	dir string
}

func init() {
	Register("local", createLocalStore)
}

func createLocalStore(args interface{}) (Store, error) {
	config := &localConfig{}
	if err := decodeConfig(args, config); err != nil {
		return nil, err
	}
	if config.Dir == "" {
		return nil, fmt.Errorf("local store dir is required")
	}
	return NewLocalStore(config.Dir), nil
}

func NewLocalStore(dir string) Store {
	return &localStore{dir: dir}
}

func (s *localStore) Save(ctx context.Context, key string, r ReadSeekCloser, size int64) error {
	_ = ctx
	_ = size
	if err := checkKey(key); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return err
	}
	// write to a temp file first so readers never see a partial snapshot
	tmp, err := os.CreateTemp(s.dir, ".snapshot-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dir, key))
}

func (s *localStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	_ = ctx
	if err := checkKey(key); err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(s.dir, key))
}

func checkKey(key string) error {
	if key == "" || strings.Contains(key, "/") || strings.Contains(key, "\\") || strings.HasPrefix(key, ".") {
		return fmt.Errorf("invalid file key")
	}
	return nil
}
