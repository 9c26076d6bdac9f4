package vectorstore

import (
	"context"
	"sync"

	"github.com/xxxsen/siteinsight/internal/metrics"
	"github.com/xxxsen/siteinsight/internal/model"
)

// memoryStore is an exact brute-force store. Installed chunk slices are never
// mutated, so readers may scan them after releasing the lock.
type memoryStore struct {
	mu   sync.RWMutex
	dim  int
	sets map[string][]model.Chunk
}

func NewMemoryStore(dimension int) Store {
	return &memoryStore{
		dim:  dimension,
		sets: make(map[string][]model.Chunk),
	}
}

func (s *memoryStore) ReplaceChunks(ctx context.Context, url string, chunks []model.Chunk) error {
	if err := checkChunks(url, chunks, s.dim); err != nil {
		return err
	}
	set := make([]model.Chunk, len(chunks))
	for i, c := range chunks {
		c.WebsiteURL = url
		c.Embedding = append([]float32(nil), c.Embedding...)
		set[i] = c
	}
	s.mu.Lock()
	if len(set) == 0 {
		delete(s.sets, url)
	} else {
		s.sets[url] = set
	}
	s.mu.Unlock()
	metrics.ChunksReplaced.WithLabelValues("memory").Add(float64(len(set)))
	return nil
}

func (s *memoryStore) TopK(ctx context.Context, url string, query []float32, k int) ([]model.ScoredChunk, error) {
	if err := checkQuery(url, query, k, s.dim); err != nil {
		return nil, err
	}
	s.mu.RLock()
	set := s.sets[url]
	s.mu.RUnlock()
	if len(set) == 0 {
		return nil, notFound(url)
	}
	scored := make([]model.ScoredChunk, len(set))
	for i, c := range set {
		scored[i] = model.ScoredChunk{Chunk: c, Distance: CosineDistance(query, c.Embedding)}
		scored[i].Embedding = nil
	}
	return rank(scored, k), nil
}

func (s *memoryStore) Close() error {
	return nil
}

func createMemoryStore(args interface{}, deps Dependencies) (Store, error) {
	return NewMemoryStore(deps.Dimension), nil
}

func init() {
	Register("memory", createMemoryStore)
}
