package ai

import (
	"context"
	"fmt"
	"math"
	"strings"

	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
)

const defaultEmbedBatchSize = 64

type embedder struct {
	provider  IEmbedProvider
	model     string
	batchSize int
}

func NewEmbedder(p IEmbedProvider, model string, batchSize int) IEmbedder {
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}
	return &embedder{provider: p, model: model, batchSize: batchSize}
}

func (e *embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

// EmbedBatch sends sequential sub-batches so one oversized request cannot
// exhaust the provider.
func (e *embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty embedding input: %w", appErr.ErrInvalid)
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("empty text at index %d: %w", i, appErr.ErrInvalid)
		}
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := e.provider.Embed(ctx, e.model, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("%s returned %d embeddings for %d texts", e.provider.Name(), len(vectors), end-start)
		}
		for _, v := range vectors {
			out = append(out, Normalize(v))
		}
	}
	return out, nil
}

func (e *embedder) ModelName() string {
	return e.provider.Name() + ":" + e.model
}

// Normalize returns v scaled to unit length. Zero vectors are returned as is.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
