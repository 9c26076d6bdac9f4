// Package vectorstore keeps per-website chunk sets and answers nearest-neighbour
// queries over them by cosine distance.
package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xxxsen/siteinsight/internal/model"
)

// Store holds exactly one chunk generation per website URL.
//
// ReplaceChunks atomically discards every chunk of url and installs chunks; a
// concurrent TopK observes either the old or the new set, never a mix.
//
// TopK returns up to k chunks ordered by ascending cosine distance with ties
// broken by ascending SequenceIndex. It fails with ErrNotFound when url has no
// chunks and with ErrInvalid for k <= 0 or a query of the wrong dimension.
type Store interface {
	ReplaceChunks(ctx context.Context, url string, chunks []model.Chunk) error
	TopK(ctx context.Context, url string, query []float32, k int) ([]model.ScoredChunk, error)
	Close() error
}

// Dependencies are shared resources handed to every backend factory.
type Dependencies struct {
	Dimension int
	DB        *sql.DB
}

type Factory func(args interface{}, deps Dependencies) (Store, error)

var registry = map[string]Factory{}

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func New(name string, args interface{}, deps Dependencies) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("vector_store.type is required")
	}
	if deps.Dimension <= 0 {
		return nil, fmt.Errorf("vector store dimension must be positive")
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported vector store: %s", name)
	}
	return factory(args, deps)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode vector store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode vector store config: %w", err)
	}
	return nil
}
