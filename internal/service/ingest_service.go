package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/ai"
	"github.com/xxxsen/mrag/internal/chunker"
	"github.com/xxxsen/mrag/internal/config"
	"github.com/xxxsen/mrag/internal/filestore"
	"github.com/xxxsen/mrag/internal/github"
	"github.com/xxxsen/mrag/internal/gitrepo"
	"github.com/xxxsen/mrag/internal/model"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
	"github.com/xxxsen/mrag/internal/vectorstore"
)

type ProfileAnalyzer interface {
	Analyze(ctx context.Context, profileURL string) *model.ProfileSummary
}

type RepoFetcher interface {
	Fetch(ctx context.Context, target gitrepo.Target) ([]model.SourceDocument, error)
}

type TextExtractor interface {
	Extract(filename, contentType string, data []byte) (string, error)
}

type IngestOptions struct {
	ChunkWindow  int
	ChunkOverlap int
	// ProfileScope decides the tenant of profile summaries: config.ProfileScopeShared
	// stores them under model.SharedTenant, config.ProfileScopeOwner under the caller.
	ProfileScope string
}

type IngestService struct {
	embedder  ai.IEmbedder
	store     vectorstore.Store
	splitter  *chunker.Splitter
	analyzer  ProfileAnalyzer
	fetcher   RepoFetcher
	extractor TextExtractor
	files     filestore.Store
	opts      IngestOptions
}

func NewIngestService(embedder ai.IEmbedder, store vectorstore.Store, analyzer ProfileAnalyzer,
	fetcher RepoFetcher, extractor TextExtractor, files filestore.Store, opts IngestOptions) *IngestService {
	if opts.ProfileScope == "" {
		opts.ProfileScope = config.ProfileScopeShared
	}
	return &IngestService{
		embedder:  embedder,
		store:     store,
		splitter:  chunker.New(opts.ChunkWindow, opts.ChunkOverlap),
		analyzer:  analyzer,
		fetcher:   fetcher,
		extractor: extractor,
		files:     files,
		opts:      opts,
	}
}

// Ingest routes the input: a GitHub profile URL is analyzed, a repository
// URL is cloned and loaded, anything else is ingested as text.
func (s *IngestService) Ingest(ctx context.Context, req model.IngestRequest) (*model.IngestResult, error) {
	target := gitrepo.Classify(req.Text)
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", req.UserID), zap.String("kind", target.Kind.String()))
	switch target.Kind {
	case gitrepo.KindProfile:
		if s.analyzer == nil {
			return nil, fmt.Errorf("profile analysis is not configured: %w", appErr.ErrInvalid)
		}
		summary, err := s.IngestProfile(ctx, target.URL, req.UserID)
		if err != nil {
			return nil, err
		}
		logger.Info("profile ingested", zap.String("source", target.URL), zap.Bool("degraded", summary.Degraded()))
		return &model.IngestResult{Kind: model.IngestKindProfile, Source: target.URL, Chunks: 1, Profile: summary}, nil
	case gitrepo.KindRepo:
		if s.fetcher == nil {
			return nil, fmt.Errorf("repository ingestion is not configured: %w", appErr.ErrInvalid)
		}
		n, err := s.IngestRepo(ctx, target, req.UserID)
		if err != nil {
			return nil, err
		}
		logger.Info("repository ingested", zap.String("source", target.URL), zap.Int("chunks", n))
		return &model.IngestResult{Kind: model.IngestKindRepo, Source: target.URL, Chunks: n}, nil
	}
	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = "user_input"
	}
	n, err := s.IngestText(ctx, req.Text, source, req.UserID)
	if err != nil {
		return nil, err
	}
	logger.Info("text ingested", zap.String("source", source), zap.Int("chunks", n))
	return &model.IngestResult{Kind: model.IngestKindText, Source: source, Chunks: n}, nil
}

// IngestText chunks, embeds and stores one text document for userID and
// returns the number of stored chunks.
func (s *IngestService) IngestText(ctx context.Context, text, source, userID string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, fmt.Errorf("text is empty: %w", appErr.ErrInvalid)
	}
	if strings.TrimSpace(userID) == "" {
		return 0, fmt.Errorf("user id is empty: %w", appErr.ErrInvalid)
	}
	chunks := s.buildChunks([]model.SourceDocument{{Text: text, Source: source}}, userID, model.ChunkTypeText)
	return s.persist(ctx, chunks)
}

// IngestRepo clones target and stores its text files tagged with the
// repository URL.
func (s *IngestService) IngestRepo(ctx context.Context, target gitrepo.Target, userID string) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, fmt.Errorf("user id is empty: %w", appErr.ErrInvalid)
	}
	docs, err := s.fetcher.Fetch(ctx, target)
	if err != nil {
		return 0, fmt.Errorf("load repository: %w", err)
	}
	chunks := s.buildChunks(docs, userID, model.ChunkTypeRepo)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("repository %s has no text files: %w", target.URL, appErr.ErrInvalid)
	}
	return s.persist(ctx, chunks)
}

// IngestProfile analyzes a profile and stores the summary as one chunk. The
// analysis itself never fails; only embedding or storage errors are returned.
func (s *IngestService) IngestProfile(ctx context.Context, profileURL, userID string) (*model.ProfileSummary, error) {
	summary := s.analyzer.Analyze(ctx, profileURL)
	tenant := model.SharedTenant
	if s.opts.ProfileScope == config.ProfileScopeOwner && strings.TrimSpace(userID) != "" {
		tenant = userID
	}
	chunk := model.Chunk{
		ID:   uuid.NewString(),
		Text: github.RenderSummary(summary),
		Metadata: model.ChunkMetadata{
			Source: profileURL,
			UserID: tenant,
			Type:   model.ChunkTypeProfile,
		},
		Ctime: time.Now().Unix(),
	}
	if _, err := s.persist(ctx, []model.Chunk{chunk}); err != nil {
		return summary, err
	}
	return summary, nil
}

// IngestFile archives the upload when a file store is configured, extracts
// its text and ingests it with the file name as source.
func (s *IngestService) IngestFile(ctx context.Context, filename, contentType string, data []byte, userID string) (int, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." {
		return 0, fmt.Errorf("file name is empty: %w", appErr.ErrInvalid)
	}
	if s.files != nil {
		key := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
		if err := s.files.Save(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
			logutil.GetLogger(ctx).Warn("archive upload failed", zap.String("file", filename), zap.Error(err))
		} else {
			logutil.GetLogger(ctx).Debug("upload archived", zap.String("file", filename), zap.String("key", key))
		}
	}
	text, err := s.extractor.Extract(filename, contentType, data)
	if err != nil {
		return 0, err
	}
	return s.IngestText(ctx, text, filename, userID)
}

func (s *IngestService) buildChunks(docs []model.SourceDocument, userID string, chunkType model.ChunkType) []model.Chunk {
	now := time.Now().Unix()
	var chunks []model.Chunk
	for _, doc := range docs {
		for _, part := range s.splitter.Split(doc.Text) {
			if strings.TrimSpace(part) == "" {
				continue
			}
			chunks = append(chunks, model.Chunk{
				ID:   uuid.NewString(),
				Text: part,
				Metadata: model.ChunkMetadata{
					Source: doc.Source,
					UserID: userID,
					Type:   chunkType,
				},
				Ctime: now,
			})
		}
	}
	return chunks
}

// persist embeds chunks in one order preserving batch and writes them.
func (s *IngestService) persist(ctx context.Context, chunks []model.Chunk) (int, error) {
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		if errors.Is(err, appErr.ErrInvalid) {
			return 0, err
		}
		return 0, fmt.Errorf("embed chunks: %w: %w", appErr.ErrEmbeddingUnavailable, err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks: %w", len(vectors), len(chunks), appErr.ErrEmbeddingUnavailable)
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}
	persisted, err := s.store.Add(ctx, chunks)
	if err != nil {
		logutil.GetLogger(ctx).Error("store chunks failed", zap.Int("persisted", persisted), zap.Int("total", len(chunks)), zap.Error(err))
		return persisted, &appErr.StorageError{Persisted: persisted, Total: len(chunks), Err: err}
	}
	return persisted, nil
}
