package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type scriptedStreamer struct {
	tokens []string
	err    error
	calls  int
}

func (s *scriptedStreamer) Stream(ctx context.Context, req ChatRequest, fn TokenFunc) error {
	s.calls++
	for _, tok := range s.tokens {
		if err := fn(tok); err != nil {
			return err
		}
	}
	return s.err
}

func (s *scriptedStreamer) ModelName() string {
	return "scripted"
}

func collect(t *testing.T, st IStreamer) (string, error) {
	t.Helper()
	var out string
	err := st.Stream(context.Background(), ChatRequest{Prompt: "q"}, func(token string) error {
		out += token
		return nil
	})
	return out, err
}

func TestGroupStreamer_FallsBackBeforeFirstToken(t *testing.T) {
	first := &scriptedStreamer{err: errors.New("down")}
	second := &scriptedStreamer{tokens: []string{"hel", "lo"}}
	g := NewGroupStreamer([]StreamerEntry{{Name: "a", Streamer: first}, {Name: "b", Streamer: second}})
	out, err := collect(t, g)
	require.NoError(t, err)
	require.Equal(t, "hello", out)
	require.Equal(t, 1, second.calls)
	require.Equal(t, "a|b", g.ModelName())
}

func TestGroupStreamer_NoFallbackAfterEmit(t *testing.T) {
	first := &scriptedStreamer{tokens: []string{"par"}, err: errors.New("cut")}
	second := &scriptedStreamer{tokens: []string{"other"}}
	g := NewGroupStreamer([]StreamerEntry{{Name: "a", Streamer: first}, {Name: "b", Streamer: second}})
	out, err := collect(t, g)
	require.Error(t, err)
	require.Equal(t, "par", out)
	require.Equal(t, 0, second.calls)
}

func TestGroupStreamer_Empty(t *testing.T) {
	require.Nil(t, NewGroupStreamer(nil))
	require.Nil(t, NewGroupEmbedder(nil))
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, ErrUnavailable
}

func (failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, ErrUnavailable
}

func (failingEmbedder) ModelName() string {
	return "failing"
}

func TestGroupEmbedder_FallsBack(t *testing.T) {
	g := NewGroupEmbedder([]EmbedderEntry{
		{Name: "x", Embedder: failingEmbedder{}},
		{Name: "y", Embedder: NewEmbedder(&fakeEmbedProvider{}, "m", 8)},
	})
	vec, err := g.Embed(context.Background(), "abc")
	require.NoError(t, err)
	require.Len(t, vec, 2)

	only := NewGroupEmbedder([]EmbedderEntry{{Name: "x", Embedder: failingEmbedder{}}})
	_, err = only.EmbedBatch(context.Background(), []string{"abc"})
	require.ErrorIs(t, err, ErrUnavailable)
}
