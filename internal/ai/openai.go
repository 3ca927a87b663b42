package ai

import (
	"context"
	"net/http"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	defaultOpenAIBaseURL     = "https://api.openai.com/v1"
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

type openAIConfig struct {
	APIKey      string `json:"api_key"`
	BaseURL     string `json:"base_url"`
	HTTPReferer string `json:"http_referer"`
	XTitle      string `json:"x_title"`
}

type openAIProvider struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
	embeds  *embedderCache
}

func newOpenAIProvider(name string, defaultBaseURL string, args interface{}) (*openAIProvider, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	p := &openAIProvider{
		name:    name,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{Transport: &headerTransport{
			base: http.DefaultTransport,
			headers: map[string]string{
				"HTTP-Referer": strings.TrimSpace(cfg.HTTPReferer),
				"X-Title":      strings.TrimSpace(cfg.XTitle),
			},
		}},
	}
	p.embeds = newEmbedderCache(func(model string) (embeddings.Embedder, error) {
		client, err := p.newClient(model)
		if err != nil {
			return nil, err
		}
		return embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	})
	return p, nil
}

func (p *openAIProvider) newClient(model string) (*openai.LLM, error) {
	return openai.New(
		openai.WithToken(p.apiKey),
		openai.WithBaseURL(p.baseURL),
		openai.WithModel(model),
		openai.WithEmbeddingModel(model),
		openai.WithHTTPClient(p.client),
	)
}

func (p *openAIProvider) Name() string {
	return p.name
}

func (p *openAIProvider) Stream(ctx context.Context, model string, req ChatRequest, fn TokenFunc) error {
	if p.apiKey == "" {
		return ErrUnavailable
	}
	client, err := p.newClient(model)
	if err != nil {
		return err
	}
	return streamModel(ctx, client, model, req, fn)
}

func (p *openAIProvider) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	return embedWith(ctx, p.embeds, model, texts)
}

func createOpenAIFactory(args interface{}) (IChatProvider, error) {
	return newOpenAIProvider("openai", defaultOpenAIBaseURL, args)
}

func createOpenAIEmbedFactory(args interface{}) (IEmbedProvider, error) {
	return newOpenAIProvider("openai", defaultOpenAIBaseURL, args)
}

func createOpenRouterFactory(args interface{}) (IChatProvider, error) {
	return newOpenAIProvider("openrouter", defaultOpenRouterBaseURL, args)
}

func init() {
	Register("openai", createOpenAIFactory)
	RegisterEmbed("openai", createOpenAIEmbedFactory)
	Register("openrouter", createOpenRouterFactory)
}
