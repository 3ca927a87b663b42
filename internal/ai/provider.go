package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
)

var ErrUnavailable = appErr.ErrUnavailable

type ChatRequest struct {
	System      string
	Prompt      string
	Temperature float64
}

// TokenFunc receives generated text as it is produced. Returning an error
// stops the generation.
type TokenFunc func(token string) error

type IChatProvider interface {
	Name() string
	Stream(ctx context.Context, model string, req ChatRequest, fn TokenFunc) error
}

type IEmbedProvider interface {
	Name() string
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}

type IStreamer interface {
	Stream(ctx context.Context, req ChatRequest, fn TokenFunc) error
	ModelName() string
}

// IEmbedder returns L2-normalized vectors; EmbedBatch preserves input order.
type IEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

type streamer struct {
	provider IChatProvider
	model    string
}

func NewStreamer(p IChatProvider, model string) IStreamer {
	return &streamer{provider: p, model: model}
}

func (s *streamer) Stream(ctx context.Context, req ChatRequest, fn TokenFunc) error {
	return s.provider.Stream(ctx, s.model, req, fn)
}

func (s *streamer) ModelName() string {
	return s.provider.Name() + ":" + s.model
}

type ChatFactory func(args interface{}) (IChatProvider, error)

type EmbedFactory func(args interface{}) (IEmbedProvider, error)

var (
	registryMu    sync.RWMutex
	chatRegistry  = map[string]ChatFactory{}
	embedRegistry = map[string]EmbedFactory{}
)

func Register(name string, factory ChatFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	chatRegistry[key] = factory
	registryMu.Unlock()
}

func RegisterEmbed(name string, factory EmbedFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	embedRegistry[key] = factory
	registryMu.Unlock()
}

func NewChatProvider(name string, args interface{}) (IChatProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai provider type is required")
	}
	registryMu.RLock()
	factory := chatRegistry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported chat provider: %s", name)
	}
	return factory(args)
}

func NewEmbedProvider(name string, args interface{}) (IEmbedProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai provider type is required")
	}
	registryMu.RLock()
	factory := embedRegistry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported embed provider: %s", name)
	}
	return factory(args)
}

func SupportsChat(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := chatRegistry[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

func SupportsEmbed(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := embedRegistry[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ai provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ai provider config: %w", err)
	}
	return nil
}
