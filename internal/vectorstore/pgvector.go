package vectorstore

import (
	"context"
	"fmt"

	"github.com/xxxsen/siteinsight/internal/metrics"
	"github.com/xxxsen/siteinsight/internal/model"
	"github.com/xxxsen/siteinsight/internal/repo"
)

// pgvectorStore keeps chunks in postgres; replacement is a single transaction
// so readers under READ COMMITTED see either generation whole.
type pgvectorStore struct {
	repo *repo.ChunkRepo
	dim  int
}

func NewPgvectorStore(chunks *repo.ChunkRepo, dimension int) Store {
	return &pgvectorStore{repo: chunks, dim: dimension}
}

func (s *pgvectorStore) ReplaceChunks(ctx context.Context, url string, chunks []model.Chunk) error {
	if err := checkChunks(url, chunks, s.dim); err != nil {
		return err
	}
	if err := s.repo.Replace(ctx, url, chunks); err != nil {
		return fmt.Errorf("replace chunks: %w", err)
	}
	metrics.ChunksReplaced.WithLabelValues("pgvector").Add(float64(len(chunks)))
	return nil
}

func (s *pgvectorStore) TopK(ctx context.Context, url string, query []float32, k int) ([]model.ScoredChunk, error) {
	if err := checkQuery(url, query, k, s.dim); err != nil {
		return nil, err
	}
	items, err := s.repo.Search(ctx, url, query, k)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	if len(items) == 0 {
		return nil, notFound(url)
	}
	return rank(items, k), nil
}

func (s *pgvectorStore) Close() error {
	return nil
}

func createPgvectorStore(args interface{}, deps Dependencies) (Store, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("pgvector store requires a database")
	}
	return NewPgvectorStore(repo.NewChunkRepo(deps.DB), deps.Dimension), nil
}

func init() {
	Register("pgvector", createPgvectorStore)
}
