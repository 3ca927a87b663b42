package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/ai"
	"github.com/xxxsen/mrag/internal/config"
	"github.com/xxxsen/mrag/internal/db"
	"github.com/xxxsen/mrag/internal/embedcache"
	"github.com/xxxsen/mrag/internal/extract"
	"github.com/xxxsen/mrag/internal/filestore"
	"github.com/xxxsen/mrag/internal/github"
	"github.com/xxxsen/mrag/internal/gitrepo"
	"github.com/xxxsen/mrag/internal/service"
	"github.com/xxxsen/mrag/internal/vectorstore"
)

// app holds everything constructed from the config. Components are built
// once here and injected, nothing is global.
type app struct {
	cfg        *config.Config
	db         *sql.DB
	store      vectorstore.Store
	embedStore *embedcache.Store
	fetcher    *gitrepo.Fetcher
	analyzer   *github.Analyzer
	ingest     *service.IngestService
	chat       *service.ChatService
}

func buildApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()
	logger := logutil.GetLogger(context.Background())

	if cfg.Database.Enabled() {
		conn, err := db.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		a.db = conn
		if err := db.ApplyMigrations(conn); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	store, err := vectorstore.New(cfg.VectorStore.Type, cfg.VectorStore.Data, vectorstore.Deps{DB: a.db})
	if err != nil {
		return nil, fmt.Errorf("init vector store: %w", err)
	}
	a.store = store

	aiCfg := managerConfig(cfg.AI)
	embedder, streamer, err := ai.Build(aiCfg)
	if err != nil {
		return nil, fmt.Errorf("init ai providers: %w", err)
	}
	if embedder == nil {
		return nil, fmt.Errorf("no embedding provider configured")
	}
	if cfg.EmbedCache.BadgerDir != "" {
		a.embedStore, err = embedcache.OpenStore(cfg.EmbedCache.BadgerDir, time.Duration(cfg.EmbedCache.BadgerTTLHours)*time.Hour)
		if err != nil {
			return nil, fmt.Errorf("open embed cache: %w", err)
		}
		embedder = embedcache.WrapStoreCacheToEmbedder(embedder, a.embedStore)
	}
	if cfg.EmbedCache.LRUSize > 0 {
		embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.EmbedCache.LRUSize, time.Duration(cfg.EmbedCache.LRUTTLMinutes)*time.Minute)
	}
	manager := ai.NewManager(embedder, streamer, aiCfg)

	a.analyzer = github.NewAnalyzer(github.Config{
		BaseURL:    cfg.GitHub.BaseURL,
		GraphQLURL: cfg.GitHub.GraphQLURL,
		Token:      cfg.GitHub.Token,
		Timeout:    time.Duration(cfg.GitHub.TimeoutSeconds) * time.Second,
	})
	a.fetcher, err = gitrepo.NewFetcher(gitrepo.NewGitCloner(cfg.GitHub.Token), gitrepo.FetcherConfig{
		WorkspaceDir:        cfg.Repo.WorkspaceDir,
		MaxConcurrentClones: cfg.Repo.MaxConcurrentClones,
		MaxFileBytes:        cfg.Repo.MaxFileBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("init repo fetcher: %w", err)
	}
	files, err := filestore.New(cfg.FileStore)
	if err != nil {
		return nil, fmt.Errorf("init file store: %w", err)
	}

	a.ingest = service.NewIngestService(embedder, store, a.analyzer, a.fetcher, extract.New(), files, service.IngestOptions{
		ChunkWindow:  cfg.Chunker.Window,
		ChunkOverlap: cfg.Chunker.Overlap,
		ProfileScope: cfg.GitHub.ProfileScope,
	})
	a.chat = service.NewChatService(embedder, store, manager, service.ChatOptions{
		TopK:          cfg.Retrieval.TopK,
		IncludeShared: cfg.Retrieval.IncludeShared,
	})
	logger.Info("pipeline ready",
		zap.String("vector_store", cfg.VectorStore.Type),
		zap.String("embed_model", manager.EmbeddingModelName()),
		zap.Bool("chat_enabled", streamer != nil),
		zap.Bool("badger_cache", a.embedStore != nil),
		zap.String("file_store", cfg.FileStore.Type),
	)
	ok = true
	return a, nil
}

func managerConfig(cfg config.AIConfig) ai.ManagerConfig {
	providers := make([]ai.ProviderConfig, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		providers = append(providers, ai.ProviderConfig{Name: p.Name, Type: p.Type, Data: p.Data})
	}
	temperature := 0.7
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	return ai.ManagerConfig{
		Providers:      providers,
		Embed:          cfg.Embed,
		Chat:           cfg.Chat,
		Temperature:    temperature,
		Timeout:        cfg.Timeout,
		EmbedBatchSize: cfg.EmbedBatchSize,
	}
}

func (a *app) Close() {
	logger := logutil.GetLogger(context.Background())
	if a.fetcher != nil {
		a.fetcher.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Error("close vector store failed", zap.Error(err))
		}
	}
	if a.embedStore != nil {
		if err := a.embedStore.Close(); err != nil {
			logger.Error("close embed cache failed", zap.Error(err))
		}
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
