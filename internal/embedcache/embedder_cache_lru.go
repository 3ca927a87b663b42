package embedcache

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/ai"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
)

func WrapLruCacheToEmbedder(e ai.IEmbedder, size int, ttl time.Duration) ai.IEmbedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &lruEmbedder{
		next:  e,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type lruEmbedder struct {
	next  ai.IEmbedder
	cache *expirable.LRU[string, []float32]
}

func (l *lruEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := l.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

func (l *lruEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	modelName := l.next.ModelName()
	return embedThrough(ctx, texts, func(text string) ([]float32, bool) {
		cached, ok := l.cache.Get(buildCacheKey(modelName, text))
		if !ok {
			return nil, false
		}
		return cloneEmbedding(cached), true
	}, l.next.EmbedBatch, func(text string, vec []float32) {
		l.cache.Add(buildCacheKey(modelName, text), cloneEmbedding(vec))
	}, "lru")
}

func (l *lruEmbedder) ModelName() string {
	return l.next.ModelName()
}

type lookupFunc func(text string) ([]float32, bool)

type storeFunc func(text string, vec []float32)

// embedThrough serves hits from lookup, embeds only the misses in one
// batch and writes them back through store. Output order matches texts.
func embedThrough(ctx context.Context, texts []string, lookup lookupFunc,
	next func(ctx context.Context, texts []string) ([][]float32, error), store storeFunc, layer string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missText := make([]string, 0, len(texts))
	for i, text := range texts {
		if vec, ok := lookup(text); ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missText = append(missText, text)
	}
	if hits := len(texts) - len(missIdx); hits > 0 {
		logutil.GetLogger(ctx).Debug("embedding cache hit", zap.String("layer", layer), zap.Int("hits", hits), zap.Int("total", len(texts)))
	}
	if len(missText) == 0 {
		return out, nil
	}
	res, err := next(ctx, missText)
	if err != nil {
		return nil, err
	}
	if len(res) != len(missText) {
		return nil, fmt.Errorf("%s cache: embedder returned %d vectors for %d texts: %w",
			layer, len(res), len(missText), appErr.ErrEmbeddingUnavailable)
	}
	for j, idx := range missIdx {
		out[idx] = res[j]
		store(missText[j], res[j])
	}
	return out, nil
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
