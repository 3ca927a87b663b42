package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultSbertURL = "http://localhost:8001"

type sbertConfig struct {
	BaseURL string `json:"base_url"`
	Timeout int    `json:"timeout"`
}

type sbertRequest struct {
	Texts []string `json:"texts"`
}

type sbertResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Dimensions int         `json:"dimensions"`
}

// sbertProvider talks to a sentence-transformers sidecar that exposes
// POST /embed/batch. The model is fixed by the sidecar, so the model
// argument is only used for naming.
type sbertProvider struct {
	baseURL string
	client  *http.Client
}

func (p *sbertProvider) Name() string {
	return "sbert"
}

func (p *sbertProvider) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	data, err := json.Marshal(sbertRequest{Texts: texts})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embed/batch", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sbert request: %w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("sbert request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var out sbertResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode sbert response: %w", err)
	}
	for i, vec := range out.Embeddings {
		if out.Dimensions > 0 && len(vec) != out.Dimensions {
			return nil, fmt.Errorf("sbert embedding %d has %d dims, want %d", i, len(vec), out.Dimensions)
		}
	}
	return out.Embeddings, nil
}

func createSbertEmbedFactory(args interface{}) (IEmbedProvider, error) {
	cfg := &sbertConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultSbertURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60
	}
	return &sbertProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}, nil
}

func init() {
	RegisterEmbed("sbert", createSbertEmbedFactory)
}
