package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/mrag/internal/model"
	"go.uber.org/zap"
)

const defaultCollection = "documents"

type chromemConfig struct {
	Path       string `json:"path"`
	Collection string `json:"collection"`
	Compress   bool   `json:"compress"`
}

type chromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	// chromem rejects queries for more results than stored documents, so
	// count and query must observe the same snapshot.
	mu sync.RWMutex
}

// NewChromem opens a chromem collection. An empty path keeps it in memory.
func NewChromem(path, collection string, compress bool) (Store, error) {
	var (
		db  *chromem.DB
		err error
	)
	if strings.TrimSpace(path) == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}
	if collection == "" {
		collection = defaultCollection
	}
	col, err := db.GetOrCreateCollection(collection, map[string]string{"hnsw:space": "cosine"}, nil)
	if err != nil {
		return nil, fmt.Errorf("open chromem collection: %w", err)
	}
	return &chromemStore{db: db, collection: col}, nil
}

func (s *chromemStore) Add(ctx context.Context, chunks []model.Chunk) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return i, fmt.Errorf("chunk %s has no embedding", chunk.ID)
		}
		doc := chromem.Document{
			ID:        chunk.ID,
			Metadata:  chunk.Metadata.Map(),
			Embedding: chunk.Embedding,
			Content:   chunk.Text,
		}
		if err := s.collection.AddDocument(ctx, doc); err != nil {
			return i, fmt.Errorf("add chromem document: %w", err)
		}
	}
	logutil.GetLogger(ctx).Debug("chromem add", zap.Int("chunks", len(chunks)), zap.Int("total", s.collection.Count()))
	return len(chunks), nil
}

func (s *chromemStore) Search(ctx context.Context, vec []float32, k int, filter map[string]string) ([]model.SearchResult, error) {
	if k <= 0 {
		return []model.SearchResult{}, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := s.collection.Count()
	if count == 0 {
		return []model.SearchResult{}, nil
	}
	if k > count {
		k = count
	}
	var where map[string]string
	if len(filter) > 0 {
		where = filter
	}
	res, err := s.collection.QueryEmbedding(ctx, vec, k, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query chromem: %w", err)
	}
	out := make([]model.SearchResult, 0, len(res))
	for _, item := range res {
		out = append(out, model.SearchResult{
			Chunk: model.Chunk{
				ID:        item.ID,
				Text:      item.Content,
				Embedding: item.Embedding,
				Metadata:  model.MetadataFromMap(item.Metadata),
			},
			Score: item.Similarity,
		})
	}
	return out, nil
}

func (s *chromemStore) Close() error {
	return nil
}

func createChromemFactory(args interface{}, deps Deps) (Store, error) {
	cfg := &chromemConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	return NewChromem(cfg.Path, cfg.Collection, cfg.Compress)
}

func init() {
	Register("chromem", createChromemFactory)
}
