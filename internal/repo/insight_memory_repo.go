package repo

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/xxxsen/siteinsight/internal/model"
	appErr "github.com/xxxsen/siteinsight/internal/pkg/errors"
)

// MemoryInsightRepo keeps insight records in process memory. Records are stored
// as encoded snapshots so callers never share state with the repo.
type MemoryInsightRepo struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func NewMemoryInsightRepo() *MemoryInsightRepo {
	return &MemoryInsightRepo{items: make(map[string][]byte)}
}

func (r *MemoryInsightRepo) Save(ctx context.Context, rec *model.InsightRecord) error {
	blob, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.items[rec.URL] = blob
	r.mu.Unlock()
	return nil
}

func (r *MemoryInsightRepo) Get(ctx context.Context, url string) (*model.InsightRecord, error) {
	r.mu.RLock()
	blob, ok := r.items[url]
	r.mu.RUnlock()
	if !ok {
		return nil, appErr.ErrNotFound
	}
	var rec model.InsightRecord
	if err := json.Unmarshal(blob, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
