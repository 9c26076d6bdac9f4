package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const defaultCacheMaxAgeDays = 30

type CacheSweeper interface {
	DeleteBefore(ctx context.Context, cutoff int64) (int64, error)
}

// EmbeddingCacheCleanupJob drops persisted embeddings older than maxAgeDays.
type EmbeddingCacheCleanupJob struct {
	cache      CacheSweeper
	maxAgeDays int
	now        func() time.Time
}

func NewEmbeddingCacheCleanupJob(cache CacheSweeper, maxAgeDays int) *EmbeddingCacheCleanupJob {
	if maxAgeDays <= 0 {
		maxAgeDays = defaultCacheMaxAgeDays
	}
	return &EmbeddingCacheCleanupJob{cache: cache, maxAgeDays: maxAgeDays, now: time.Now}
}

func (j *EmbeddingCacheCleanupJob) Name() string {
	return "embedding_cache_cleanup"
}

func (j *EmbeddingCacheCleanupJob) Run(ctx context.Context) error {
	if j.cache == nil {
		return nil
	}
	cutoff := j.now().Add(-time.Duration(j.maxAgeDays) * 24 * time.Hour).Unix()
	removed, err := j.cache.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("embedding cache swept",
		zap.Int64("removed", removed),
		zap.Int64("cutoff", cutoff),
	)
	return nil
}
