package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xxxsen/mrag/internal/model"
)

// Store is the adapter every vector backend implements. Add returns the
// number of chunks durably written, also on failure. Search results are
// ordered by descending score and only match chunks whose metadata equals
// every filter entry.
type Store interface {
	Add(ctx context.Context, chunks []model.Chunk) (int, error)
	Search(ctx context.Context, vec []float32, k int, filter map[string]string) ([]model.SearchResult, error)
	Close() error
}

// Deps carries shared resources a backend may need.
type Deps struct {
	DB *sql.DB
}

type Factory func(args interface{}, deps Deps) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(name string, args interface{}, deps Deps) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported vector store: %s", name)
	}
	return factory(args, deps)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode vector store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode vector store config: %w", err)
	}
	return nil
}
