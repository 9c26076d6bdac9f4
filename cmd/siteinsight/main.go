package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/siteinsight/internal/config"
	"github.com/xxxsen/siteinsight/internal/handler"
	"github.com/xxxsen/siteinsight/internal/job"
	"github.com/xxxsen/siteinsight/internal/middleware"
	"github.com/xxxsen/siteinsight/internal/model"
	"github.com/xxxsen/siteinsight/internal/schedule"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "siteinsight",
		Short: "homepage insight and question answering service",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run siteinsight server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}

	var questions []string
	ingestCmd := &cobra.Command{
		Use:   "ingest <url>",
		Short: "analyse a homepage and print its insight record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			rec, err := a.svc.Ingest(cmd.Context(), args[0], questions)
			if err != nil {
				return err
			}
			return printJSON(rec)
		},
	}
	ingestCmd.Flags().StringArrayVar(&questions, "question", nil, "custom question to answer during analysis (repeatable)")

	var ingestFirst bool
	askCmd := &cobra.Command{
		Use:   "ask <url> <question>",
		Short: "answer a question about an analysed homepage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			if ingestFirst {
				if _, err := a.svc.Ingest(cmd.Context(), args[0], nil); err != nil {
					return err
				}
			}
			out, err := a.svc.Answer(cmd.Context(), args[0], args[1], []model.Turn{})
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	askCmd.Flags().BoolVar(&ingestFirst, "ingest", false, "analyse the homepage before answering")

	rootCmd.AddCommand(runCmd, ingestCmd, askCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logutil.GetLogger(context.Background()).Fatal("command failed", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runServer(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	scheduler := schedule.NewCronScheduler()
	if a.embedCache != nil && cfg.Embedding.DBCache {
		cleanup := job.NewEmbeddingCacheCleanupJob(a.embedCache, cfg.Jobs.EmbeddingCacheMaxAgeDays)
		if err := scheduler.AddJob(cleanup, cfg.Jobs.EmbeddingCacheCleanup); err != nil {
			return fmt.Errorf("schedule %s: %w", cleanup.Name(), err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	deps := handler.RouterDeps{
		Insights:      handler.NewInsightHandler(a.svc),
		APIToken:      cfg.APIToken,
		RequestWindow: time.Duration(cfg.RequestWindow) * time.Millisecond,
	}
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(ctx).Info("http server listening",
		zap.String("addr", addr),
		zap.Bool("auth", cfg.APIToken != ""),
	)

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
