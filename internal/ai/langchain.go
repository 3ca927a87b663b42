package ai

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
)

// streamModel runs one chat completion against a langchaingo model and
// forwards streamed chunks to fn.
func streamModel(ctx context.Context, client llms.Model, model string, req ChatRequest, fn TokenFunc) error {
	content := make([]llms.MessageContent, 0, 2)
	if req.System != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))
	opts := []llms.CallOption{
		llms.WithTemperature(req.Temperature),
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			return fn(string(chunk))
		}),
	}
	if model != "" {
		opts = append(opts, llms.WithModel(model))
	}
	if _, err := client.GenerateContent(ctx, content, opts...); err != nil {
		return fmt.Errorf("generate content: %w", err)
	}
	return nil
}

type embedderBuilder func(model string) (embeddings.Embedder, error)

// embedderCache keeps one langchaingo embedder per model since the
// embedding model is bound when the client is created.
type embedderCache struct {
	mu    sync.Mutex
	build embedderBuilder
	items map[string]embeddings.Embedder
}

func newEmbedderCache(build embedderBuilder) *embedderCache {
	return &embedderCache{build: build, items: make(map[string]embeddings.Embedder)}
}

func (c *embedderCache) get(model string) (embeddings.Embedder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.items[model]; ok {
		return e, nil
	}
	e, err := c.build(model)
	if err != nil {
		return nil, err
	}
	c.items[model] = e
	return e, nil
}

func embedWith(ctx context.Context, cache *embedderCache, model string, texts []string) ([][]float32, error) {
	e, err := cache.get(model)
	if err != nil {
		return nil, err
	}
	vecs, err := e.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	return vecs, nil
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		if v == "" {
			continue
		}
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}
