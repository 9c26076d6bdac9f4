// Package filestore archives the raw markup of every analysed homepage.
package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/xxxsen/siteinsight/internal/config"
)

type Store interface {
	Save(ctx context.Context, key string, r ReadSeekCloser, size int64) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

type ReadSeekCloser interface {
	io.ReadSeeker
	io.Closer
}

type Factory func(args interface{}) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

// New builds the configured store. An empty type disables snapshots and
// returns a nil Store.
func New(cfg config.FileStoreConfig) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, nil
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported snapshot store type: %s", cfg.Type)
	}
	return factory(cfg.Data)
}

// SnapshotKey names the snapshot of pageURL taken at analyzedAt.
func SnapshotKey(pageURL string, analyzedAt int64) string {
	sum := sha256.Sum256([]byte(pageURL))
	return fmt.Sprintf("%s-%d.html", hex.EncodeToString(sum[:12]), analyzedAt)
}

// SaveSnapshot stores rawHTML under the snapshot key of pageURL.
func SaveSnapshot(ctx context.Context, store Store, pageURL string, analyzedAt int64, rawHTML string) (string, error) {
	key := SnapshotKey(pageURL, analyzedAt)
	r := nopCloser{strings.NewReader(rawHTML)}
	if err := store.Save(ctx, key, r, int64(len(rawHTML))); err != nil {
		return "", fmt.Errorf("save snapshot %s: %w", key, err)
	}
	return key, nil
}

type nopCloser struct {
	io.ReadSeeker
}

func (nopCloser) Close() error { return nil }

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("store config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode store config: %w", err)
	}
	return nil
}
