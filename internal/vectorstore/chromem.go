package vectorstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/philippgille/chromem-go"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/siteinsight/internal/metrics"
	"github.com/xxxsen/siteinsight/internal/model"
)

const (
	chromemPrefix  = "site_"
	metaURL        = "url"
	metaSeq        = "seq"
	generationSize = 20
)

type chromemConfig struct {
	Path     string `json:"path"`
	Compress bool   `json:"compress"`
}

// chromemStore keeps one chromem collection per website generation. A
// replacement fills a fresh collection, swaps it in under the lock and only
// then drops the previous one.
type chromemStore struct {
	db   *chromem.DB
	dim  int
	gen  atomic.Uint64
	mu   sync.RWMutex
	live map[string]string
}

func NewChromemStore(path string, compress bool, dimension int) (Store, error) {
	db := chromem.NewDB()
	if path != "" {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", path, err)
		}
		var err error
		db, err = chromem.NewPersistentDB(path, compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
	}
	s := &chromemStore{
		db:   db,
		dim:  dimension,
		live: make(map[string]string),
	}
	if err := s.recover(); err != nil {
		return nil, err
	}
	return s, nil
}

// recover rebuilds the live table from persisted collections, keeping the
// newest generation per site and dropping any older leftovers.
func (s *chromemStore) recover() error {
	var maxGen uint64
	for name := range s.db.ListCollections() {
		key, gen, ok := parseCollectionName(name)
		if !ok {
			continue
		}
		if gen > maxGen {
			maxGen = gen
		}
		current, exists := s.live[key]
		if !exists {
			s.live[key] = name
			continue
		}
		_, currentGen, _ := parseCollectionName(current)
		stale := name
		if gen > currentGen {
			s.live[key] = name
			stale = current
		}
		if err := s.db.DeleteCollection(stale); err != nil {
			return fmt.Errorf("deleting stale collection %s: %w", stale, err)
		}
	}
	s.gen.Store(maxGen)
	return nil
}

func (s *chromemStore) ReplaceChunks(ctx context.Context, url string, chunks []model.Chunk) error {
	if err := checkChunks(url, chunks, s.dim); err != nil {
		return err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("url", url))
	key := siteKey(url)

	var fresh string
	if len(chunks) > 0 {
		fresh = collectionName(key, s.gen.Add(1))
		col, err := s.db.CreateCollection(fresh, map[string]string{metaURL: url}, noEmbedding)
		if err != nil {
			return fmt.Errorf("creating collection %s: %w", fresh, err)
		}
		docs := make([]chromem.Document, len(chunks))
		for i, c := range chunks {
			id := c.ID
			if id == "" {
				id = fmt.Sprintf("%s#%d", key, c.SequenceIndex)
			}
			docs[i] = chromem.Document{
				ID:        id,
				Content:   c.Text,
				Metadata:  map[string]string{metaURL: url, metaSeq: strconv.Itoa(c.SequenceIndex)},
				Embedding: append([]float32(nil), c.Embedding...),
			}
		}
		if err := col.AddDocuments(ctx, docs, 1); err != nil {
			if derr := s.db.DeleteCollection(fresh); derr != nil {
				logger.Warn("failed to drop unfinished collection", zap.String("collection", fresh), zap.Error(derr))
			}
			return fmt.Errorf("adding documents: %w", err)
		}
	}

	s.mu.Lock()
	old := s.live[key]
	if fresh == "" {
		delete(s.live, key)
	} else {
		s.live[key] = fresh
	}
	s.mu.Unlock()

	if old != "" {
		if err := s.db.DeleteCollection(old); err != nil {
			logger.Warn("failed to drop superseded collection", zap.String("collection", old), zap.Error(err))
		}
	}
	metrics.ChunksReplaced.WithLabelValues("chromem").Add(float64(len(chunks)))
	logger.Debug("chromem chunks replaced", zap.String("collection", fresh), zap.Int("count", len(chunks)))
	return nil
}

func (s *chromemStore) TopK(ctx context.Context, url string, query []float32, k int) ([]model.ScoredChunk, error) {
	if err := checkQuery(url, query, k, s.dim); err != nil {
		return nil, err
	}
	// Resolve the collection under the lock; a replacement may drop it from the
	// DB afterwards but the handle keeps serving the old set.
	s.mu.RLock()
	name := s.live[siteKey(url)]
	var col *chromem.Collection
	if name != "" {
		col = s.db.GetCollection(name, noEmbedding)
	}
	s.mu.RUnlock()
	if col == nil {
		return nil, notFound(url)
	}
	n := col.Count()
	if n == 0 {
		return nil, notFound(url)
	}
	// chromem orders by similarity only; fetch the whole set so sequence ties rank deterministically.
	results, err := col.QueryEmbedding(ctx, append([]float32(nil), query...), n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", name, err)
	}
	scored := make([]model.ScoredChunk, 0, len(results))
	for _, r := range results {
		seq, err := strconv.Atoi(r.Metadata[metaSeq])
		if err != nil {
			return nil, fmt.Errorf("chunk %s has bad sequence metadata: %w", r.ID, err)
		}
		scored = append(scored, model.ScoredChunk{
			Chunk: model.Chunk{
				ID:            r.ID,
				WebsiteURL:    url,
				Text:          r.Content,
				SequenceIndex: seq,
			},
			Distance: 1 - float64(r.Similarity),
		})
	}
	return rank(scored, k), nil
}

func (s *chromemStore) Close() error {
	return nil
}

var errNoEmbedding = errors.New("chunks must carry precomputed embeddings")

func noEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, errNoEmbedding
}

func siteKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:8])
}

func collectionName(key string, gen uint64) string {
	return fmt.Sprintf("%s%s_%0*d", chromemPrefix, key, generationSize, gen)
}

func parseCollectionName(name string) (string, uint64, bool) {
	if !strings.HasPrefix(name, chromemPrefix) {
		return "", 0, false
	}
	rest := strings.TrimPrefix(name, chromemPrefix)
	idx := strings.LastIndexByte(rest, '_')
	if idx <= 0 {
		return "", 0, false
	}
	gen, err := strconv.ParseUint(rest[idx+1:], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return rest[:idx], gen, true
}

func createChromemStore(args interface{}, deps Dependencies) (Store, error) {
	cfg := &chromemConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	return NewChromemStore(strings.TrimSpace(cfg.Path), cfg.Compress, deps.Dimension)
}

func init() {
	Register("chromem", createChromemStore)
}
