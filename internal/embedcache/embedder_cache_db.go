package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/siteinsight/internal/ai"
	"github.com/xxxsen/siteinsight/internal/metrics"
	"github.com/xxxsen/siteinsight/internal/model"
)

// Store persists embeddings keyed by model, task type and content hash.
type Store interface {
	Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error)
	Save(ctx context.Context, item *model.EmbeddingCache) error
}

func WrapDBCacheToEmbedder(e ai.IEmbedder, store Store) ai.IEmbedder {
	if e == nil || store == nil {
		return e
	}
	return &dbEmbedder{next: e, store: store}
}

type dbEmbedder struct {
	next  ai.IEmbedder
	store Store
}

func (d *dbEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if d == nil || d.next == nil {
		return nil, ai.ErrUnavailable
	}
	logger := logutil.GetLogger(ctx)
	_, contentHash, modelName := buildCacheKey(d.next.ModelName(), taskType, text)
	values, ok, err := d.store.Get(ctx, modelName, taskType, contentHash)
	if err != nil {
		logger.Warn("embedding cache lookup failed", zap.Error(err))
	}
	if ok {
		metrics.EmbeddingCacheTotal.WithLabelValues("db", "hit").Inc()
		logger.Debug("embedding cache hit (db)", zap.String("task_type", taskType))
		return values, nil
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("db", "miss").Inc()
	res, err := d.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	if err := d.store.Save(ctx, &model.EmbeddingCache{
		ModelName:   modelName,
		TaskType:    taskType,
		ContentHash: contentHash,
		Dimension:   len(res),
		Embedding:   res,
		Ctime:       time.Now().Unix(),
	}); err != nil {
		logger.Warn("failed to cache embedding", zap.Error(err))
	}
	return res, nil
}

func (d *dbEmbedder) ModelName() string {
	if d == nil || d.next == nil {
		return ""
	}
	return d.next.ModelName()
}

func buildCacheKey(modelName, taskType, text string) (string, string, string) {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		modelName = "unknown"
	}
	hash := sha256.Sum256([]byte(text))
	contentHash := hex.EncodeToString(hash[:])
	return "embed:" + modelName + ":" + taskType + ":" + contentHash, contentHash, modelName
}
