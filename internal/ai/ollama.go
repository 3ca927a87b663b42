package ai

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

const defaultOllamaURL = "http://localhost:11434"

type ollamaConfig struct {
	BaseURL string `json:"base_url"`
}

type ollamaProvider struct {
	serverURL string
	embeds    *embedderCache
}

func newOllamaProvider(args interface{}) (*ollamaProvider, error) {
	cfg := &ollamaConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	serverURL := strings.TrimSpace(cfg.BaseURL)
	if serverURL == "" {
		serverURL = defaultOllamaURL
	}
	p := &ollamaProvider{serverURL: strings.TrimRight(serverURL, "/")}
	p.embeds = newEmbedderCache(func(model string) (embeddings.Embedder, error) {
		client, err := p.newClient(model)
		if err != nil {
			return nil, err
		}
		return embeddings.NewEmbedder(client)
	})
	return p, nil
}

func (p *ollamaProvider) newClient(model string) (*ollama.LLM, error) {
	return ollama.New(
		ollama.WithServerURL(p.serverURL),
		ollama.WithModel(model),
	)
}

func (p *ollamaProvider) Name() string {
	return "ollama"
}

func (p *ollamaProvider) Stream(ctx context.Context, model string, req ChatRequest, fn TokenFunc) error {
	client, err := p.newClient(model)
	if err != nil {
		return err
	}
	return streamModel(ctx, client, model, req, fn)
}

func (p *ollamaProvider) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	return embedWith(ctx, p.embeds, model, texts)
}

func init() {
	Register("ollama", func(args interface{}) (IChatProvider, error) {
		return newOllamaProvider(args)
	})
	RegisterEmbed("ollama", func(args interface{}) (IEmbedProvider, error) {
		return newOllamaProvider(args)
	})
}
