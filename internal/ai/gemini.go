package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"
)

type geminiConfig struct {
	APIKey   string `json:"api_key"`
	TaskType string `json:"task_type"`
}

type geminiProvider struct {
	apiKey   string
	taskType string

	once      sync.Once
	client    *genai.Client
	clientErr error
}

func (p *geminiProvider) Name() string {
	return "gemini"
}

func (p *geminiProvider) getClient(ctx context.Context) (*genai.Client, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	p.once.Do(func() {
		p.client, p.clientErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  p.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	return p.client, p.clientErr
}

func (p *geminiProvider) Stream(ctx context.Context, model string, req ChatRequest, fn TokenFunc) error {
	client, err := p.getClient(ctx)
	if err != nil {
		return err
	}
	temperature := float32(req.Temperature)
	config := &genai.GenerateContentConfig{
		Temperature: &temperature,
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{{Text: req.Prompt}}}}
	for resp, err := range client.Models.GenerateContentStream(ctx, model, contents, config) {
		if err != nil {
			return fmt.Errorf("gemini stream: %w", err)
		}
		text := resp.Text()
		if text == "" {
			continue
		}
		if err := fn(text); err != nil {
			return err
		}
	}
	return nil
}

func (p *geminiProvider) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	client, err := p.getClient(ctx)
	if err != nil {
		return nil, err
	}
	var config *genai.EmbedContentConfig
	if p.taskType != "" {
		config = &genai.EmbedContentConfig{
			TaskType: p.taskType,
		}
	}
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, &genai.Content{Parts: []*genai.Part{{Text: text}}})
	}
	resp, err := client.Models.EmbedContent(ctx, model, contents, config)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	out := make([][]float32, 0, len(resp.Embeddings))
	for _, item := range resp.Embeddings {
		out = append(out, item.Values)
	}
	return out, nil
}

func newGeminiProvider(args interface{}) (*geminiProvider, error) {
	cfg := &geminiConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	return &geminiProvider{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		taskType: strings.TrimSpace(cfg.TaskType),
	}, nil
}

func init() {
	Register("gemini", func(args interface{}) (IChatProvider, error) {
		return newGeminiProvider(args)
	})
	RegisterEmbed("gemini", func(args interface{}) (IEmbedProvider, error) {
		return newGeminiProvider(args)
	})
}
