package ai

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/siteinsight/internal/metrics"
	appErr "github.com/xxxsen/siteinsight/internal/pkg/errors"
)

type ManagerConfig struct {
	Timeout          int
	MaxInputChars    int
	EmbedConcurrency int
	Dimension        int
	HistoryTurns     int
}

type Manager struct {
	insight  IGenerator
	answer   IGenerator
	embedder IEmbedder
	cfg      ManagerConfig
}

func NewManager(insight IGenerator, answer IGenerator, embedder IEmbedder, cfg ManagerConfig) *Manager {
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = 4
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 10
	}
	return &Manager{
		insight:  insight,
		answer:   answer,
		embedder: embedder,
		cfg:      cfg,
	}
}

// Embed returns a vector of the configured dimension. Every failure is an ErrEmbedding.
func (m *Manager) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if m.embedder == nil {
		return nil, appErr.Wrap(appErr.ErrEmbedding, ErrUnavailable)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty input", appErr.ErrEmbedding)
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	vec, err := m.embedder.Embed(ctx, text, taskType)
	metrics.AIRequestsTotal.WithLabelValues("embed", metrics.Result(err)).Inc()
	if err != nil {
		return nil, appErr.Wrap(appErr.ErrEmbedding, err)
	}
	if m.cfg.Dimension > 0 && len(vec) != m.cfg.Dimension {
		return nil, fmt.Errorf("%w: got dimension %d, want %d", appErr.ErrEmbedding, len(vec), m.cfg.Dimension)
	}
	if norm := vectorNorm(vec); norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, fmt.Errorf("%w: provider returned a vector with norm %v", appErr.ErrEmbedding, norm)
	}
	return vec, nil
}

func vectorNorm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// EmbedBatch embeds texts with bounded concurrency; out[i] belongs to texts[i].
func (m *Manager) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	start := time.Now()
	defer metrics.ObserveStage("embed", start)

	out := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.EmbedConcurrency)
	for i, text := range texts {
		g.Go(func() error {
			vec, err := m.Embed(gCtx, text, taskType)
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", i, err)
			}
			out[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Debug("batch embedded",
		zap.Int("count", len(texts)),
		zap.String("model", m.EmbeddingModelName()),
		zap.Duration("cost", time.Since(start)),
	)
	return out, nil
}

func (m *Manager) generateText(ctx context.Context, gen IGenerator, req *Request) (string, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	resp, err := gen.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return text, nil
}

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
	}
	return ctx, func() {}
}

func (m *Manager) MaxInputChars() int {
	return m.cfg.MaxInputChars
}

func (m *Manager) Dimension() int {
	return m.cfg.Dimension
}

func (m *Manager) EmbeddingModelName() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ModelName()
}

func truncateRunes(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

func stripFences(output string) string {
	clean := strings.TrimSpace(output)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```JSON")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)
	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start >= 0 && end > start {
		clean = clean[start : end+1]
	}
	return clean
}
