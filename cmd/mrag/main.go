package main

import (
	"context"
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

	"github.com/xxxsen/mrag/internal/config"
	"github.com/xxxsen/mrag/internal/handler"
	"github.com/xxxsen/mrag/internal/job"
	"github.com/xxxsen/mrag/internal/middleware"
	"github.com/xxxsen/mrag/internal/schedule"
)

const apiPrefix = "/api/v1"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "mrag",
		Short: "multi-tenant retrieval augmented generation service",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json or config.yaml")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run mrag server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(newTokenCmd(&configPath))
	rootCmd.AddCommand(newIngestCmd(&configPath))
	rootCmd.AddCommand(newAskCmd(&configPath))
	rootCmd.AddCommand(newAnalyzeCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
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

func runServer(cfg *config.Config) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("vector_store", cfg.VectorStore.Type),
		zap.Strings("embed", cfg.AI.Embed),
		zap.Strings("chat", cfg.AI.Chat),
	)
	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	deps := handler.RouterDeps{
		Ingest:    handler.NewIngestHandler(a.ingest, int64(cfg.MaxUploadMB)*1024*1024),
		Chat:      handler.NewChatHandler(a.chat),
		JWTSecret: []byte(cfg.JWTSecret),
		RateLimit: time.Duration(cfg.RateLimitSeconds) * time.Second,
	}

	engine, err := webapi.NewEngine(
		apiPrefix,
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{apiPrefix + "/chat"})),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewWorkspaceSweepJob(a.fetcher.WorkspaceDir(),
		time.Duration(cfg.Repo.WorkspaceTTLMinutes)*time.Minute), "*/10 * * * *"); err != nil {
		return fmt.Errorf("schedule workspace sweep: %w", err)
	}
	if a.embedStore != nil {
		if err := scheduler.AddJob(job.NewEmbedCacheGCJob(a.embedStore, 0), "17 * * * *"); err != nil {
			return fmt.Errorf("schedule embed cache gc: %w", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
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
