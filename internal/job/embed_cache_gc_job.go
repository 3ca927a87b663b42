package job

import (
	"context"
)

const defaultDiscardRatio = 0.5

type valueLogCollector interface {
	GC(discardRatio float64) error
}

// EmbedCacheGCJob reclaims space of expired embedding cache entries.
type EmbedCacheGCJob struct {
	store        valueLogCollector
	discardRatio float64
}

func NewEmbedCacheGCJob(store valueLogCollector, discardRatio float64) *EmbedCacheGCJob {
	if discardRatio <= 0 || discardRatio >= 1 {
		discardRatio = defaultDiscardRatio
	}
	return &EmbedCacheGCJob{store: store, discardRatio: discardRatio}
}

func (j *EmbedCacheGCJob) Name() string {
	return "embed_cache_gc"
}

func (j *EmbedCacheGCJob) Run(ctx context.Context) error {
	if j.store == nil {
		return nil
	}
	return j.store.GC(j.discardRatio)
}
