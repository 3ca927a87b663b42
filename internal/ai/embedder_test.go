package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
)

type fakeEmbedProvider struct {
	calls [][]string
	err   error
}

func (f *fakeEmbedProvider) Name() string {
	return "fake"
}

func (f *fakeEmbedProvider) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, append([]string(nil), texts...))
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, []float32{float32(len(text)), 1})
	}
	return out, nil
}

func TestEmbedder_BatchesAndPreservesOrder(t *testing.T) {
	p := &fakeEmbedProvider{}
	e := NewEmbedder(p, "m", 2)
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)
	require.Len(t, vecs, 5)
	require.Len(t, p.calls, 3)
	require.Equal(t, []string{"eeeee"}, p.calls[2])
	for i, v := range vecs {
		want := Normalize([]float32{float32(i + 1), 1})
		require.InDeltaSlice(t, want, v, 1e-6)
	}
	require.Equal(t, "fake:m", e.ModelName())
}

func TestEmbedder_RejectsBlankInput(t *testing.T) {
	p := &fakeEmbedProvider{}
	e := NewEmbedder(p, "m", 0)
	_, err := e.EmbedBatch(context.Background(), nil)
	require.True(t, errors.Is(err, appErr.ErrInvalid))
	_, err = e.EmbedBatch(context.Background(), []string{"ok", "   "})
	require.True(t, errors.Is(err, appErr.ErrInvalid))
	require.Empty(t, p.calls)
}

func TestNormalize_UnitLength(t *testing.T) {
	v := Normalize([]float32{3, 4})
	require.InDelta(t, 0.6, v[0], 1e-6)
	require.InDelta(t, 0.8, v[1], 1e-6)

	zero := Normalize([]float32{0, 0})
	require.Equal(t, []float32{0, 0}, zero)
}
