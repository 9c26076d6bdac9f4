package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/siteinsight/internal/model"
	appErr "github.com/xxxsen/siteinsight/internal/pkg/errors"
	"github.com/xxxsen/siteinsight/internal/repo"
	"github.com/xxxsen/siteinsight/test/testutil"
)

type insightStore interface {
	Save(ctx context.Context, rec *model.InsightRecord) error
	Get(ctx context.Context, url string) (*model.InsightRecord, error)
}

func strPtr(s string) *string { return &s }

func sampleInsight(url string) *model.InsightRecord {
	return &model.InsightRecord{
		URL:         url,
		Industry:    "Aerospace",
		Location:    strPtr("Springfield"),
		Products:    []string{"rockets"},
		ContactInfo: model.ContactInfo{Emails: []string{"a@acme.com"}},
		AnalyzedAt:  time.Now().Unix(),
	}
}

func checkInsightStore(t *testing.T, store insightStore, url string) {
	ctx := context.Background()
	_, err := store.Get(ctx, url)
	require.True(t, appErr.IsNotFound(err))

	rec := sampleInsight(url)
	require.NoError(t, store.Save(ctx, rec))
	rec.Products[0] = "mutated"

	got, err := store.Get(ctx, url)
	require.NoError(t, err)
	require.Equal(t, "Aerospace", got.Industry)
	require.Equal(t, []string{"rockets"}, got.Products)
	require.Equal(t, "Springfield", *got.Location)
	require.Nil(t, got.CompanySize)

	next := sampleInsight(url)
	next.Industry = "Logistics"
	require.NoError(t, store.Save(ctx, next))
	got, err = store.Get(ctx, url)
	require.NoError(t, err)
	require.Equal(t, "Logistics", got.Industry)
}

func TestMemoryInsightRepo(t *testing.T) {
	checkInsightStore(t, repo.NewMemoryInsightRepo(), "https://acme.example")
}

func TestInsightRepoPostgres(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	url := "https://test.repo/insight"
	defer func() { _, _ = db.Exec(`DELETE FROM websites WHERE url = $1`, url) }()

	checkInsightStore(t, repo.NewInsightRepo(db), url)
}

func TestInsightRepoIgnoresChunkOnlyWebsite(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	url := "https://test.repo/chunks-only"
	defer func() { _, _ = db.Exec(`DELETE FROM websites WHERE url = $1`, url) }()

	chunks := repo.NewChunkRepo(db)
	require.NoError(t, chunks.Replace(context.Background(), url, []model.Chunk{
		{ID: "chunks-only-0", WebsiteURL: url, Text: "hello", SequenceIndex: 0, Embedding: []float32{1, 0}},
	}))
	n, err := chunks.Count(context.Background(), url)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = repo.NewInsightRepo(db).Get(context.Background(), url)
	require.True(t, appErr.IsNotFound(err))
}

func TestEmbeddingCacheRepo(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	cache := repo.NewEmbeddingCacheRepo(db)
	defer func() { _, _ = db.Exec(`DELETE FROM embedding_cache WHERE model_name = 'test:repo'`) }()

	_, ok, err := cache.Get(ctx, "test:repo", "RETRIEVAL_QUERY", "h1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cache.Save(ctx, &model.EmbeddingCache{
		ModelName:   "test:repo",
		TaskType:    "RETRIEVAL_QUERY",
		ContentHash: "h1",
		Embedding:   []float32{0.5, 0.5},
		Ctime:       1,
	}))
	vec, ok, err := cache.Get(ctx, "test:repo", "RETRIEVAL_QUERY", "h1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []float32{0.5, 0.5}, vec)

	removed, err := cache.DeleteBefore(ctx, 2)
	require.NoError(t, err)
	require.GreaterOrEqual(t, removed, int64(1))
}
