package embedcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/siteinsight/internal/ai"
	"github.com/xxxsen/siteinsight/internal/model"
)

type countingEmbedder struct {
	calls int
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) ModelName() string {
	return "counting"
}

type mapStore struct {
	items   map[string]*model.EmbeddingCache
	getErr  error
	saveErr error
}

func newMapStore() *mapStore {
	return &mapStore{items: map[string]*model.EmbeddingCache{}}
}

func (m *mapStore) Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	item, ok := m.items[modelName+"|"+taskType+"|"+contentHash]
	if !ok {
		return nil, false, nil
	}
	return item.Embedding, true, nil
}

func (m *mapStore) Save(ctx context.Context, item *model.EmbeddingCache) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.items[item.ModelName+"|"+item.TaskType+"|"+item.ContentHash] = item
	return nil
}

func TestLruCacheReturnsCopies(t *testing.T) {
	next := &countingEmbedder{}
	e := WrapLruCacheToEmbedder(next, 16, time.Minute)
	first, err := e.Embed(context.Background(), "rockets", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	first[0] = 99

	second, err := e.Embed(context.Background(), "rockets", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Equal(t, []float32{7, 1}, second)
	require.Equal(t, 1, next.calls)

	_, err = e.Embed(context.Background(), "rockets", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	require.Equal(t, 2, next.calls)
	require.Equal(t, "counting", e.ModelName())
}

func TestCacheWrappersWithoutNext(t *testing.T) {
	for _, e := range []struct {
		name     string
		embedder ai.IEmbedder
	}{
		{name: "lru", embedder: &lruEmbedder{}},
		{name: "lru_nil", embedder: (*lruEmbedder)(nil)},
		{name: "db", embedder: &dbEmbedder{}},
		{name: "db_nil", embedder: (*dbEmbedder)(nil)},
	} {
		t.Run(e.name, func(t *testing.T) {
			_, err := e.embedder.Embed(context.Background(), "rockets", "RETRIEVAL_QUERY")
			require.True(t, errors.Is(err, ai.ErrUnavailable))
			require.Empty(t, e.embedder.ModelName())
		})
	}
}

func TestLruCacheDisabled(t *testing.T) {
	next := &countingEmbedder{}
	require.Same(t, next, WrapLruCacheToEmbedder(next, 0, time.Minute))
}

func TestDBCacheStoresAndReuses(t *testing.T) {
	next := &countingEmbedder{}
	store := newMapStore()
	e := WrapDBCacheToEmbedder(next, store)
	_, err := e.Embed(context.Background(), "rockets", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Len(t, store.items, 1)
	for _, item := range store.items {
		require.Equal(t, 2, item.Dimension)
		require.Equal(t, "counting", item.ModelName)
	}
	vec, err := e.Embed(context.Background(), "rockets", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Equal(t, []float32{7, 1}, vec)
	require.Equal(t, 1, next.calls)
}

func TestDBCacheFailuresFallThrough(t *testing.T) {
	next := &countingEmbedder{}
	store := newMapStore()
	store.getErr = errors.New("db down")
	store.saveErr = errors.New("db down")
	e := WrapDBCacheToEmbedder(next, store)
	vec, err := e.Embed(context.Background(), "rockets", "")
	require.NoError(t, err)
	require.Equal(t, []float32{7, 1}, vec)

	failing := WrapDBCacheToEmbedder(&countingEmbedder{err: errors.New("quota")}, newMapStore())
	_, err = failing.Embed(context.Background(), "rockets", "")
	require.Error(t, err)
}
