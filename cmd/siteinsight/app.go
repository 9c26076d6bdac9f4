package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/siteinsight/internal/ai"
	"github.com/xxxsen/siteinsight/internal/chunker"
	"github.com/xxxsen/siteinsight/internal/config"
	"github.com/xxxsen/siteinsight/internal/db"
	"github.com/xxxsen/siteinsight/internal/embedcache"
	"github.com/xxxsen/siteinsight/internal/extract"
	"github.com/xxxsen/siteinsight/internal/fetch"
	"github.com/xxxsen/siteinsight/internal/filestore"
	"github.com/xxxsen/siteinsight/internal/repo"
	"github.com/xxxsen/siteinsight/internal/service"
	"github.com/xxxsen/siteinsight/internal/vectorstore"
)

type app struct {
	cfg        *config.Config
	db         *sql.DB
	store      vectorstore.Store
	embedCache *repo.EmbeddingCacheRepo
	svc        *service.RAGService
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := logutil.GetLogger(ctx)
	a := &app{cfg: cfg}

	if cfg.Database.Enabled() {
		conn, err := db.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		if err := db.ApplyMigrations(conn); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		a.db = conn
		a.embedCache = repo.NewEmbeddingCacheRepo(conn)
	}

	manager, err := buildManager(cfg, a.embedCache)
	if err != nil {
		a.Close()
		return nil, err
	}

	store, err := vectorstore.New(cfg.VectorStore.Type, cfg.VectorStore.Data, vectorstore.Dependencies{
		Dimension: cfg.Embedding.Dimension,
		DB:        a.db,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init vector store: %w", err)
	}
	a.store = store

	snapshots, err := filestore.New(cfg.SnapshotStore)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init snapshot store: %w", err)
	}

	var insights service.InsightRepository = repo.NewMemoryInsightRepo()
	if a.db != nil {
		insights = repo.NewInsightRepo(a.db)
	}

	a.svc = service.NewRAGService(service.RAGDeps{
		Fetcher: fetch.New(fetch.Config{
			Timeout:   time.Duration(cfg.Fetch.Timeout) * time.Second,
			MaxBytes:  cfg.Fetch.MaxBytes,
			UserAgent: cfg.Fetch.UserAgent,
		}),
		Extractor: extract.New(extract.Config{
			MinBlockChars:       cfg.Extract.MinBlockChars,
			BoilerplateKeywords: cfg.Extract.BoilerplateKeywords,
		}),
		Chunker:   chunker.New(chunker.WithChunkSize(cfg.Chunk.MaxChars), chunker.WithOverlap(cfg.Chunk.OverlapChars)),
		Manager:   manager,
		Store:     store,
		Insights:  insights,
		Snapshots: snapshots,
		TopK:      cfg.Retrieval.TopK,
	})
	logger.Info("pipeline ready",
		zap.String("vector_store", cfg.VectorStore.Type),
		zap.String("embed_model", manager.EmbeddingModelName()),
		zap.Int("dimension", cfg.Embedding.Dimension),
		zap.Bool("database", a.db != nil),
		zap.Bool("snapshots", snapshots != nil),
	)
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logutil.GetLogger(context.Background()).Warn("close vector store failed", zap.Error(err))
		}
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func buildManager(cfg *config.Config, cacheRepo *repo.EmbeddingCacheRepo) (*ai.Manager, error) {
	limiter := ai.NewLimiter(cfg.AI.RateLimit.RPS, cfg.AI.RateLimit.Burst)

	insight, err := buildGenerator(cfg.AI.Providers, cfg.AI.Insight)
	if err != nil {
		return nil, fmt.Errorf("init insight models: %w", err)
	}
	answer, err := buildGenerator(cfg.AI.Providers, cfg.AI.Answer)
	if err != nil {
		return nil, fmt.Errorf("init answer models: %w", err)
	}

	embedRef := cfg.AI.Embed
	embedProviderCfg := cfg.AI.Providers[embedRef.Provider]
	embedProvider, err := ai.NewEmbedProvider(embedProviderCfg.Type, embedProviderCfg.Data)
	if err != nil {
		return nil, fmt.Errorf("init embed provider %s: %w", embedRef.Provider, err)
	}
	embedder := ai.WithEmbedderLimit(ai.NewEmbedder(embedProvider, embedRef.Model), limiter)
	if cfg.Embedding.DBCache && cacheRepo != nil {
		embedder = embedcache.WrapDBCacheToEmbedder(embedder, cacheRepo)
	}
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.Embedding.LRUSize, time.Duration(cfg.Embedding.LRUTTLSeconds)*time.Second)

	return ai.NewManager(
		ai.WithGeneratorLimit(insight, limiter),
		ai.WithGeneratorLimit(answer, limiter),
		embedder,
		ai.ManagerConfig{
			Timeout:          cfg.AI.Timeout,
			MaxInputChars:    cfg.AI.MaxInputChars,
			EmbedConcurrency: cfg.AI.EmbedConcurrency,
			Dimension:        cfg.Embedding.Dimension,
			HistoryTurns:     cfg.Retrieval.HistoryTurns,
		},
	), nil
}

// buildGenerator chains refs into a fallback group, tried in order.
func buildGenerator(providers map[string]config.ProviderConfig, refs []config.ModelRef) (ai.IGenerator, error) {
	built := make(map[string]ai.IAIProvider, len(refs))
	entries := make([]ai.GeneratorEntry, 0, len(refs))
	for _, ref := range refs {
		p, ok := built[ref.Provider]
		if !ok {
			pc := providers[ref.Provider]
			var err error
			p, err = ai.NewProvider(pc.Type, pc.Data)
			if err != nil {
				return nil, fmt.Errorf("provider %s: %w", ref.Provider, err)
			}
			built[ref.Provider] = p
		}
		entries = append(entries, ai.GeneratorEntry{
			Name:      ref.Provider + ":" + ref.Model,
			Generator: ai.NewGenerator(p, ref.Model),
		})
	}
	return ai.NewGroupGenerator(entries), nil
}
