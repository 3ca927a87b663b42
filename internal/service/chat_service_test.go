package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mrag/internal/model"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
	"github.com/xxxsen/mrag/internal/vectorstore"
)

func seed(t *testing.T, store vectorstore.Store, emb *hashEmbedder, userID string, docs map[string]string) {
	t.Helper()
	svc := NewIngestService(emb, store, nil, nil, nil, nil, IngestOptions{})
	for source, text := range docs {
		_, err := svc.IngestText(context.Background(), text, source, userID)
		require.NoError(t, err)
	}
}

func TestChat_RejectsEmptyQuestion(t *testing.T) {
	svc := NewChatService(&hashEmbedder{}, newMemoryStore(t), &scriptedGenerator{}, ChatOptions{})
	ans := svc.Answer(context.Background(), "   ", "u1")
	require.True(t, errors.Is(ans.Err, appErr.ErrInvalid))
	require.Nil(t, ans.Tokens)

	ans = svc.Ask(context.Background(), nil, "u1")
	require.True(t, errors.Is(ans.Err, appErr.ErrInvalid))
}

func TestChat_StreamsTokensWithSources(t *testing.T) {
	emb := &hashEmbedder{}
	store := newMemoryStore(t)
	seed(t, store, emb, "u1", map[string]string{
		"cats.txt":   "cats purr and sleep all day",
		"dogs.txt":   "dogs bark at the mail carrier",
		"boats.txt":  "boats float on the water",
		"planes.txt": "planes fly above the clouds",
	})
	gen := &scriptedGenerator{tokens: []string{"Cats ", "purr."}}
	svc := NewChatService(emb, store, gen, ChatOptions{TopK: 3})

	ans := svc.Ask(context.Background(), []model.ChatMessage{
		{Role: "user", Content: "ignored"},
		{Role: "user", Content: "why do cats purr"},
	}, "u1")
	text, err := drain(t, ans)
	require.NoError(t, err)
	require.Equal(t, "Cats purr.", text)
	require.Len(t, ans.Sources, 3)
	require.Contains(t, ans.Sources, model.Source{Source: "cats.txt"})

	ranked, err := store.Search(context.Background(), emb.vector("why do cats purr"), 3, map[string]string{model.MetaUserID: "u1"})
	require.NoError(t, err)
	want := make([]model.Source, 0, len(ranked))
	for _, r := range ranked {
		want = append(want, model.Source{Source: r.Chunk.Metadata.Source})
	}
	require.ElementsMatch(t, want, ans.Sources)
	if ranked[0].Score > ranked[1].Score {
		require.Equal(t, want[0], ans.Sources[0])
	}
	require.Equal(t, "why do cats purr", gen.lastQ)
	require.Contains(t, gen.lastCtx, "cats purr and sleep all day")
}

func TestChat_EmptyStoreStillAnswers(t *testing.T) {
	gen := &scriptedGenerator{tokens: []string{"I don't know."}}
	svc := NewChatService(&hashEmbedder{}, newMemoryStore(t), gen, ChatOptions{})
	ans := svc.Answer(context.Background(), "anything", "u1")
	text, err := drain(t, ans)
	require.NoError(t, err)
	require.Equal(t, "I don't know.", text)
	require.Empty(t, ans.Sources)
	require.Equal(t, "", gen.lastCtx)
}

func TestChat_GenerationFailsBeforeFirstToken(t *testing.T) {
	gen := &scriptedGenerator{err: appErr.ErrUnavailable}
	svc := NewChatService(&hashEmbedder{}, newMemoryStore(t), gen, ChatOptions{})
	ans := svc.Answer(context.Background(), "hello", "u1")
	require.Error(t, ans.Err)
	require.True(t, errors.Is(ans.Err, appErr.ErrUnavailable))
	require.Nil(t, ans.Tokens)
}

func TestChat_GenerationFailsMidStream(t *testing.T) {
	gen := &scriptedGenerator{tokens: []string{"partial"}, err: errors.New("stream reset")}
	svc := NewChatService(&hashEmbedder{}, newMemoryStore(t), gen, ChatOptions{})
	ans := svc.Answer(context.Background(), "hello", "u1")
	text, err := drain(t, ans)
	require.Equal(t, "partial", text)
	require.EqualError(t, err, "stream reset")
}

func TestChat_EmbeddingUnavailable(t *testing.T) {
	svc := NewChatService(&hashEmbedder{err: errors.New("timeout")}, newMemoryStore(t), &scriptedGenerator{}, ChatOptions{})
	ans := svc.Answer(context.Background(), "hello", "u1")
	require.True(t, errors.Is(ans.Err, appErr.ErrEmbeddingUnavailable))
}

func TestChat_TenantIsolation(t *testing.T) {
	emb := &hashEmbedder{}
	store := newMemoryStore(t)
	seed(t, store, emb, "alice", map[string]string{"alice.txt": "secret launch codes for project blue"})
	seed(t, store, emb, "bob", map[string]string{"bob.txt": "bob grows tomatoes in the garden"})

	gen := &scriptedGenerator{tokens: []string{"ok"}}
	svc := NewChatService(emb, store, gen, ChatOptions{TopK: 5})
	ans := svc.Answer(context.Background(), "what are the secret launch codes", "bob")
	_, err := drain(t, ans)
	require.NoError(t, err)
	for _, s := range ans.Sources {
		require.Equal(t, "bob.txt", s.Source)
	}
	require.NotContains(t, gen.lastCtx, "launch codes")
}

func TestChat_IncludeShared(t *testing.T) {
	emb := &hashEmbedder{}
	store := newMemoryStore(t)
	seed(t, store, emb, "u1", map[string]string{"mine.txt": "my notes about gardening"})
	seed(t, store, emb, model.SharedTenant, map[string]string{"https://github.com/octocat": "octocat has many repositories"})

	strict := NewChatService(emb, store, &scriptedGenerator{tokens: []string{"x"}}, ChatOptions{TopK: 3})
	ans := strict.Answer(context.Background(), "octocat repositories", "u1")
	_, err := drain(t, ans)
	require.NoError(t, err)
	require.Equal(t, []model.Source{{Source: "mine.txt"}}, ans.Sources)

	merged := NewChatService(emb, store, &scriptedGenerator{tokens: []string{"x"}}, ChatOptions{TopK: 3, IncludeShared: true})
	ans = merged.Answer(context.Background(), "octocat repositories", "u1")
	_, err = drain(t, ans)
	require.NoError(t, err)
	require.Len(t, ans.Sources, 2)
	require.Equal(t, "https://github.com/octocat", ans.Sources[0].Source)
}

func TestChat_CancelStopsStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &scriptedGenerator{tokens: []string{"a", "b", "c", "d", "e"}}
	svc := NewChatService(&hashEmbedder{}, newMemoryStore(t), gen, ChatOptions{})
	ans := svc.Answer(ctx, "hello", "u1")
	require.NoError(t, ans.Err)
	cancel()
	done := make(chan struct{})
	go func() {
		for range ans.Tokens {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("token stream was not closed after cancel")
	}
}

func TestMergeResults(t *testing.T) {
	own := []model.SearchResult{{Score: 0.9}, {Score: 0.5}}
	shared := []model.SearchResult{{Score: 0.7}, {Score: 0.1}}
	out := mergeResults(own, shared, 3)
	require.Len(t, out, 3)
	require.Equal(t, float32(0.9), out[0].Score)
	require.Equal(t, float32(0.7), out[1].Score)
	require.Equal(t, float32(0.5), out[2].Score)
}

func TestBuildContext(t *testing.T) {
	text, sources := BuildContext([]model.SearchResult{
		{Chunk: model.Chunk{Text: "one", Metadata: model.ChunkMetadata{Source: "a"}}},
		{Chunk: model.Chunk{Text: "two"}},
	})
	require.Equal(t, "one\n\ntwo", text)
	require.Equal(t, []model.Source{{Source: "a"}, {Source: "unknown"}}, sources)
}

func TestChat_EndToEndTenantScopedSources(t *testing.T) {
	emb := &hashEmbedder{}
	store := newMemoryStore(t)
	ingest := NewIngestService(emb, store, nil, nil, nil, nil, IngestOptions{})
	n, err := ingest.IngestText(context.Background(), "The sky is blue. Grass is green.", "note", "u1")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	gen := &scriptedGenerator{tokens: []string{"Blue."}}
	svc := NewChatService(emb, store, gen, ChatOptions{})

	ans := svc.Answer(context.Background(), "What color is the sky?", "u1")
	text, err := drain(t, ans)
	require.NoError(t, err)
	require.Equal(t, "Blue.", text)
	require.Equal(t, []model.Source{{Source: "note"}}, ans.Sources)
	require.Equal(t, "The sky is blue. Grass is green.", gen.lastCtx)

	ans = svc.Answer(context.Background(), "What color is the sky?", "u2")
	text, err = drain(t, ans)
	require.NoError(t, err)
	require.Equal(t, "Blue.", text)
	require.NotNil(t, ans.Sources)
	require.Empty(t, ans.Sources)
	require.Equal(t, "", gen.lastCtx)
}
