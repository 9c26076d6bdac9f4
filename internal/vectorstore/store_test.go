package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/siteinsight/internal/model"
	appErr "github.com/xxxsen/siteinsight/internal/pkg/errors"
	"github.com/xxxsen/siteinsight/internal/repo"
	"github.com/xxxsen/siteinsight/test/testutil"
)

type storeCase struct {
	name string
	open func(t *testing.T) Store
}

func storeCases() []storeCase {
	return []storeCase{
		{name: "memory", open: func(t *testing.T) Store { return NewMemoryStore(2) }},
		{name: "chromem", open: func(t *testing.T) Store {
			s, err := NewChromemStore("", false, 2)
			require.NoError(t, err)
			return s
		}},
		{name: "chromem_persistent", open: func(t *testing.T) Store {
			s, err := NewChromemStore(t.TempDir(), false, 2)
			require.NoError(t, err)
			return s
		}},
		{name: "pgvector", open: func(t *testing.T) Store {
			conn, cleanup := testutil.OpenTestDB(t)
			t.Cleanup(func() {
				_, _ = conn.Exec(`DELETE FROM websites WHERE url LIKE 'https://test.vectorstore/%'`)
				cleanup()
			})
			return NewPgvectorStore(repo.NewChunkRepo(conn), 2)
		}},
	}
}

func chunk(url string, seq int, text string, vec ...float32) model.Chunk {
	return model.Chunk{
		ID:            fmt.Sprintf("%s-%d-%s", strings.ReplaceAll(url, "/", "_"), seq, text),
		WebsiteURL:    url,
		Text:          text,
		SequenceIndex: seq,
		Embedding:     vec,
	}
}

func texts(items []model.ScoredChunk) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Text)
	}
	return out
}

func TestStoreContract(t *testing.T) {
	for _, tc := range storeCases() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			t.Run("retrieval order", func(t *testing.T) {
				s := tc.open(t)
				url := "https://test.vectorstore/order"
				require.NoError(t, s.ReplaceChunks(ctx, url, []model.Chunk{
					chunk(url, 0, "first", 1, 0),
					chunk(url, 1, "second", 0, 1),
					chunk(url, 2, "third", 0.9, 0.1),
				}))
				got, err := s.TopK(ctx, url, []float32{1, 0}, 2)
				require.NoError(t, err)
				require.Equal(t, []string{"first", "third"}, texts(got))
				require.InDelta(t, 0, got[0].Distance, 1e-5)
				require.Less(t, got[0].Distance, got[1].Distance)

				got, err = s.TopK(ctx, url, []float32{1, 0}, 10)
				require.NoError(t, err)
				require.Equal(t, []string{"first", "third", "second"}, texts(got))
			})

			t.Run("ties by sequence", func(t *testing.T) {
				s := tc.open(t)
				url := "https://test.vectorstore/ties"
				require.NoError(t, s.ReplaceChunks(ctx, url, []model.Chunk{
					chunk(url, 2, "c", 0, 1),
					chunk(url, 1, "b", 0, 1),
					chunk(url, 0, "a", 0, 1),
				}))
				got, err := s.TopK(ctx, url, []float32{0, 2}, 3)
				require.NoError(t, err)
				require.Equal(t, []string{"a", "b", "c"}, texts(got))
			})

			t.Run("fresh start", func(t *testing.T) {
				s := tc.open(t)
				url := "https://test.vectorstore/fresh"
				other := "https://test.vectorstore/other"
				require.NoError(t, s.ReplaceChunks(ctx, url, []model.Chunk{
					chunk(url, 0, "old-0", 1, 0),
					chunk(url, 1, "old-1", 0, 1),
					chunk(url, 2, "old-2", 1, 1),
				}))
				require.NoError(t, s.ReplaceChunks(ctx, other, []model.Chunk{chunk(other, 0, "other", 1, 0)}))
				require.NoError(t, s.ReplaceChunks(ctx, url, []model.Chunk{chunk(url, 0, "new-0", 1, 0)}))

				got, err := s.TopK(ctx, url, []float32{1, 0}, 10)
				require.NoError(t, err)
				require.Equal(t, []string{"new-0"}, texts(got))

				got, err = s.TopK(ctx, other, []float32{1, 0}, 10)
				require.NoError(t, err)
				require.Equal(t, []string{"other"}, texts(got))

				require.NoError(t, s.ReplaceChunks(ctx, url, nil))
				_, err = s.TopK(ctx, url, []float32{1, 0}, 1)
				require.True(t, errors.Is(err, appErr.ErrNotFound))
			})

			t.Run("errors", func(t *testing.T) {
				s := tc.open(t)
				url := "https://test.vectorstore/errors"
				_, err := s.TopK(ctx, url, []float32{1, 0}, 1)
				require.True(t, errors.Is(err, appErr.ErrNotFound))

				err = s.ReplaceChunks(ctx, url, []model.Chunk{chunk(url, 0, "bad", 1, 0, 0)})
				require.True(t, errors.Is(err, appErr.ErrInvalid))

				require.NoError(t, s.ReplaceChunks(ctx, url, []model.Chunk{chunk(url, 0, "ok", 1, 0)}))
				_, err = s.TopK(ctx, url, []float32{1, 0, 0}, 1)
				require.True(t, errors.Is(err, appErr.ErrInvalid))
				_, err = s.TopK(ctx, url, []float32{1, 0}, 0)
				require.True(t, errors.Is(err, appErr.ErrInvalid))
				_, err = s.TopK(ctx, url, []float32{0, 0}, 1)
				require.True(t, errors.Is(err, appErr.ErrInvalid))
			})

			t.Run("concurrent replace never mixes generations", func(t *testing.T) {
				s := tc.open(t)
				url := "https://test.vectorstore/race"
				setA := []model.Chunk{
					chunk(url, 0, "a-0", 1, 0),
					chunk(url, 1, "a-1", 0, 1),
					chunk(url, 2, "a-2", 1, 1),
				}
				setB := []model.Chunk{
					chunk(url, 0, "b-0", 1, 0),
					chunk(url, 1, "b-1", 0, 1),
					chunk(url, 2, "b-2", 1, 1),
					chunk(url, 3, "b-3", 1, 2),
					chunk(url, 4, "b-4", 2, 1),
				}
				require.NoError(t, s.ReplaceChunks(ctx, url, setA))

				var wg sync.WaitGroup
				errCh := make(chan error, 64)
				for w := 0; w < 2; w++ {
					wg.Add(1)
					go func(w int) {
						defer wg.Done()
						for i := 0; i < 10; i++ {
							set := setA
							if (i+w)%2 == 0 {
								set = setB
							}
							if err := s.ReplaceChunks(ctx, url, set); err != nil {
								errCh <- err
								return
							}
						}
					}(w)
				}
				for r := 0; r < 4; r++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						for i := 0; i < 20; i++ {
							got, err := s.TopK(ctx, url, []float32{1, 0}, 10)
							if err != nil {
								errCh <- err
								return
							}
							prefix := got[0].Text[:2]
							want := 3
							if prefix == "b-" {
								want = 5
							}
							if len(got) != want {
								errCh <- fmt.Errorf("got %d chunks for generation %s", len(got), prefix)
								return
							}
							for _, item := range got {
								if !strings.HasPrefix(item.Text, prefix) {
									errCh <- fmt.Errorf("mixed generations: %v", texts(got))
									return
								}
							}
						}
					}()
				}
				wg.Wait()
				close(errCh)
				for err := range errCh {
					require.NoError(t, err)
				}
			})
		})
	}
}

func TestChromemRecoversNewestGeneration(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	url := "https://test.vectorstore/persist"
	s, err := NewChromemStore(dir, false, 2)
	require.NoError(t, err)
	require.NoError(t, s.ReplaceChunks(ctx, url, []model.Chunk{chunk(url, 0, "old", 1, 0)}))
	require.NoError(t, s.ReplaceChunks(ctx, url, []model.Chunk{chunk(url, 0, "new", 1, 0)}))
	require.NoError(t, s.Close())

	reopened, err := NewChromemStore(dir, false, 2)
	require.NoError(t, err)
	got, err := reopened.TopK(ctx, url, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Equal(t, []string{"new"}, texts(got))
}

func TestRegistry(t *testing.T) {
	s, err := New("MEMORY", nil, Dependencies{Dimension: 2})
	require.NoError(t, err)
	require.NotNil(t, s)

	_, err = New("pgvector", nil, Dependencies{Dimension: 2})
	require.Error(t, err)
	_, err = New("unknown", nil, Dependencies{Dimension: 2})
	require.Error(t, err)
	_, err = New("memory", nil, Dependencies{})
	require.Error(t, err)
}

func TestCollectionNameRoundTrip(t *testing.T) {
	name := collectionName(siteKey("https://acme.example"), 42)
	key, gen, ok := parseCollectionName(name)
	require.True(t, ok)
	require.Equal(t, siteKey("https://acme.example"), key)
	require.Equal(t, uint64(42), gen)
	_, _, ok = parseCollectionName("unrelated")
	require.False(t, ok)
}
