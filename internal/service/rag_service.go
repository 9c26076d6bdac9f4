package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/siteinsight/internal/ai"
	"github.com/xxxsen/siteinsight/internal/chunker"
	"github.com/xxxsen/siteinsight/internal/extract"
	"github.com/xxxsen/siteinsight/internal/fetch"
	"github.com/xxxsen/siteinsight/internal/filestore"
	"github.com/xxxsen/siteinsight/internal/metrics"
	"github.com/xxxsen/siteinsight/internal/model"
	appErr "github.com/xxxsen/siteinsight/internal/pkg/errors"
	"github.com/xxxsen/siteinsight/internal/vectorstore"
)

const (
	defaultTopK  = 5
	writeStripes = 64
)

type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

type InsightRepository interface {
	Save(ctx context.Context, rec *model.InsightRecord) error
	Get(ctx context.Context, url string) (*model.InsightRecord, error)
}

// RAGDeps wires the pipeline. Snapshots is optional; when set the raw markup
// of every successful ingest is archived.
type RAGDeps struct {
	Fetcher   PageFetcher
	Extractor *extract.Extractor
	Chunker   *chunker.Chunker
	Manager   *ai.Manager
	Store     vectorstore.Store
	Insights  InsightRepository
	Snapshots filestore.Store
	TopK      int
}

type RAGService struct {
	fetcher   PageFetcher
	extractor *extract.Extractor
	chunker   *chunker.Chunker
	manager   *ai.Manager
	store     vectorstore.Store
	insights  InsightRepository
	snapshots filestore.Store
	topK      int
	writeMu   [writeStripes]sync.Mutex
	now       func() time.Time
}

func NewRAGService(deps RAGDeps) *RAGService {
	if deps.TopK <= 0 {
		deps.TopK = defaultTopK
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.New(extract.Config{})
	}
	if deps.Chunker == nil {
		deps.Chunker = chunker.New()
	}
	return &RAGService{
		fetcher:   deps.Fetcher,
		extractor: deps.Extractor,
		chunker:   deps.Chunker,
		manager:   deps.Manager,
		store:     deps.Store,
		insights:  deps.Insights,
		snapshots: deps.Snapshots,
		topK:      deps.TopK,
		now:       time.Now,
	}
}

// Ingest fetches the homepage at url and analyses it.
func (s *RAGService) Ingest(ctx context.Context, url string, questions []string) (*model.InsightRecord, error) {
	url, err := fetch.NormalizeURL(url)
	if err != nil {
		return nil, err
	}
	if s.fetcher == nil {
		return nil, fmt.Errorf("%w: no fetcher configured", appErr.ErrFetch)
	}
	start := time.Now()
	rawHTML, err := s.fetcher.Fetch(ctx, url)
	metrics.ObserveStage("fetch", start)
	if err != nil {
		metrics.IngestTotal.WithLabelValues(ingestResult(err)).Inc()
		logutil.GetLogger(ctx).Error("fetch homepage failed", zap.String("url", url), zap.Error(err))
		return nil, appErr.Wrap(appErr.ErrFetch, err)
	}
	return s.IngestHTML(ctx, url, rawHTML, questions)
}

// IngestHTML analyses markup the caller already holds. Nothing is written
// unless extraction, embedding and synthesis all succeed; the chunk set and
// insight record of url are then replaced together.
func (s *RAGService) IngestHTML(ctx context.Context, url string, rawHTML string, questions []string) (rec *model.InsightRecord, err error) {
	url, err = fetch.NormalizeURL(url)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	logger := logutil.GetLogger(ctx).With(zap.String("url", url))
	defer func() {
		metrics.IngestTotal.WithLabelValues(ingestResult(err)).Inc()
		metrics.ObserveStage("ingest", start)
		if err != nil {
			logger.Error("ingest failed", zap.Error(err))
		}
	}()

	doc, err := s.extractor.Extract(url, rawHTML)
	if err != nil {
		return nil, err
	}
	texts := s.chunker.Chunk(doc)
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: no chunks produced for %s", appErr.ErrParse, url)
	}

	var vectors [][]float32
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vectors, err = s.manager.EmbedBatch(gctx, texts, ai.TaskRetrievalDocument)
		return err
	})
	g.Go(func() error {
		var err error
		rec, err = s.manager.Synthesize(gctx, doc, cleanQuestions(questions))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	chunks := make([]model.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = model.Chunk{
			ID:            uuid.NewString(),
			WebsiteURL:    url,
			Text:          text,
			SequenceIndex: i,
			Embedding:     vectors[i],
		}
	}
	rec.URL = url
	rec.AnalyzedAt = s.now().Unix()

	if err := s.commit(ctx, url, chunks, rec); err != nil {
		return nil, err
	}
	s.archive(ctx, url, rec.AnalyzedAt, rawHTML)
	logger.Info("website analysed",
		zap.Int("chunks", len(chunks)),
		zap.String("industry", rec.Industry),
		zap.Duration("cost", time.Since(start)),
	)
	return rec, nil
}

// commit pairs the chunk replacement with the insight overwrite so concurrent
// ingests of one url cannot interleave them.
func (s *RAGService) commit(ctx context.Context, url string, chunks []model.Chunk, rec *model.InsightRecord) error {
	mu := &s.writeMu[stripe(url)]
	mu.Lock()
	defer mu.Unlock()
	if err := s.store.ReplaceChunks(ctx, url, chunks); err != nil {
		return fmt.Errorf("replace chunks: %w", err)
	}
	if err := s.insights.Save(ctx, rec); err != nil {
		return fmt.Errorf("save insight: %w", err)
	}
	return nil
}

func (s *RAGService) archive(ctx context.Context, url string, analyzedAt int64, rawHTML string) {
	if s.snapshots == nil {
		return
	}
	key, err := filestore.SaveSnapshot(ctx, s.snapshots, url, analyzedAt, rawHTML)
	if err != nil {
		logutil.GetLogger(ctx).Warn("archive homepage snapshot failed", zap.String("url", url), zap.Error(err))
		return
	}
	logutil.GetLogger(ctx).Debug("homepage snapshot archived", zap.String("url", url), zap.String("key", key))
}

// Answer replies to question from the chunks of an analysed url and returns
// history extended by exactly one user turn and one assistant turn.
func (s *RAGService) Answer(ctx context.Context, url string, question string, history []model.Turn) (out *model.AnswerRecord, err error) {
	start := time.Now()
	defer func() {
		metrics.QueryTotal.WithLabelValues(queryResult(err)).Inc()
		metrics.ObserveStage("query", start)
	}()

	url, err = fetch.NormalizeURL(url)
	if err != nil {
		return nil, err
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", appErr.ErrInvalid)
	}
	if err := validateHistory(history); err != nil {
		return nil, err
	}
	if _, err := s.insights.Get(ctx, url); err != nil {
		if appErr.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s has not been analysed", appErr.ErrNotFound, url)
		}
		return nil, err
	}

	query, err := s.manager.Embed(ctx, question, ai.TaskRetrievalQuery)
	if err != nil {
		return nil, err
	}
	retrieveStart := time.Now()
	chunks, err := s.store.TopK(ctx, url, query, s.topK)
	metrics.ObserveStage("retrieve", retrieveStart)
	if err != nil {
		return nil, err
	}
	answer, err := s.manager.Answer(ctx, question, chunks, history)
	if err != nil {
		return nil, err
	}

	sources := make([]string, 0, len(chunks))
	for _, c := range chunks {
		sources = append(sources, c.Text)
	}
	extended := make([]model.Turn, 0, len(history)+2)
	extended = append(extended, history...)
	extended = append(extended,
		model.Turn{Role: model.RoleUser, Content: question},
		model.Turn{Role: model.RoleAssistant, Content: answer},
	)
	logutil.GetLogger(ctx).Info("question answered",
		zap.String("url", url),
		zap.Int("sources", len(sources)),
		zap.Duration("cost", time.Since(start)),
	)
	return &model.AnswerRecord{
		Answer:       answer,
		SourceChunks: sources,
		History:      extended,
	}, nil
}

func (s *RAGService) GetInsight(ctx context.Context, url string) (*model.InsightRecord, error) {
	url, err := fetch.NormalizeURL(url)
	if err != nil {
		return nil, err
	}
	return s.insights.Get(ctx, url)
}

func validateHistory(history []model.Turn) error {
	for i, turn := range history {
		if turn.Role != model.RoleUser && turn.Role != model.RoleAssistant {
			return fmt.Errorf("%w: history turn %d has role %q", appErr.ErrInvalid, i, turn.Role)
		}
	}
	return nil
}

func cleanQuestions(questions []string) []string {
	out := make([]string, 0, len(questions))
	for _, q := range questions {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func stripe(url string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(url))
	return int(h.Sum32() % writeStripes)
}

func ingestResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, appErr.ErrInvalid):
		return "invalid"
	case errors.Is(err, appErr.ErrFetch):
		return "fetch"
	case errors.Is(err, appErr.ErrParse):
		return "parse"
	case errors.Is(err, appErr.ErrEmbedding):
		return "embedding"
	case errors.Is(err, appErr.ErrSynthesis):
		return "synthesis"
	default:
		return "error"
	}
}

func queryResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, appErr.ErrInvalid):
		return "invalid"
	case errors.Is(err, appErr.ErrNotFound):
		return "not_found"
	case errors.Is(err, appErr.ErrEmbedding):
		return "embedding"
	case errors.Is(err, appErr.ErrAnswer):
		return "answer"
	default:
		return "error"
	}
}
