package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type StreamerEntry struct {
	Name     string
	Streamer IStreamer
}

type EmbedderEntry struct {
	Name     string
	Embedder IEmbedder
}

type groupStreamer struct {
	items []StreamerEntry
}

func NewGroupStreamer(items []StreamerEntry) IStreamer {
	if len(items) == 0 {
		return nil
	}
	return &groupStreamer{items: items}
}

// Stream tries each streamer in order. Once any token reached the caller
// the stream is committed and later failures are returned as is.
func (g *groupStreamer) Stream(ctx context.Context, req ChatRequest, fn TokenFunc) error {
	var lastErr error
	for i, item := range g.items {
		if item.Streamer == nil {
			continue
		}
		emitted := false
		err := item.Streamer.Stream(ctx, req, func(token string) error {
			emitted = true
			return fn(token)
		})
		if err == nil {
			return nil
		}
		if emitted || ctx.Err() != nil {
			return err
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("streamer failed", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
	}
	if lastErr == nil {
		return fmt.Errorf("streamer not configured")
	}
	return lastErr
}

func (g *groupStreamer) ModelName() string {
	names := make([]string, 0, len(g.items))
	for _, item := range g.items {
		if item.Name == "" {
			continue
		}
		names = append(names, item.Name)
	}
	return strings.Join(names, "|")
}

type groupEmbedder struct {
	items []EmbedderEntry
}

// NewGroupEmbedder falls back across embedders. All entries must share a
// dimensionality, otherwise vectors from different entries are not comparable.
func NewGroupEmbedder(items []EmbedderEntry) IEmbedder {
	if len(items) == 0 {
		return nil
	}
	return &groupEmbedder{items: items}
}

func (g *groupEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

func (g *groupEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for i, item := range g.items {
		if item.Embedder == nil {
			continue
		}
		res, err := item.Embedder.EmbedBatch(ctx, texts)
		if err == nil {
			return res, nil
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("embedder failed", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
	}
	if lastErr == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	return nil, lastErr
}

func (g *groupEmbedder) ModelName() string {
	names := make([]string, 0, len(g.items))
	for _, item := range g.items {
		if item.Name == "" {
			continue
		}
		names = append(names, item.Name)
	}
	if len(names) == 0 {
		return ""
	}
	return strings.Join(names, "|")
}
