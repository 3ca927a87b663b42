package service

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/mrag/internal/ai"
	"github.com/xxxsen/mrag/internal/gitrepo"
	"github.com/xxxsen/mrag/internal/model"
	"github.com/xxxsen/mrag/internal/vectorstore"
)

const testDims = 32

// hashEmbedder maps words into a fixed bag-of-words vector so texts sharing
// words are similar.
type hashEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (h *hashEmbedder) vector(text string) []float32 {
	vec := make([]float32, testDims)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		f := fnv.New32a()
		_, _ = f.Write([]byte(strings.Trim(w, ".,?!")))
		vec[f.Sum32()%testDims]++
	}
	vec[testDims-1] += 0.01
	return ai.Normalize(vec)
}

func (h *hashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := h.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

func (h *hashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	if h.err != nil {
		return nil, h.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, h.vector(t))
	}
	return out, nil
}

func (h *hashEmbedder) ModelName() string {
	return "hash"
}

// failingStore persists the first okCount chunks of every Add then fails.
type failingStore struct {
	vectorstore.Store
	okCount int
}

func (f *failingStore) Add(ctx context.Context, chunks []model.Chunk) (int, error) {
	n := f.okCount
	if n > len(chunks) {
		n = len(chunks)
	}
	if _, err := f.Store.Add(ctx, chunks[:n]); err != nil {
		return 0, err
	}
	if n < len(chunks) {
		return n, errors.New("disk full")
	}
	return n, nil
}

type fakeAnalyzer struct{}

func (fakeAnalyzer) Analyze(ctx context.Context, profileURL string) *model.ProfileSummary {
	return &model.ProfileSummary{Username: "octocat", URL: profileURL, Repos: 8, TotalContributions: 100}
}

type fakeFetcher struct {
	docs    []model.SourceDocument
	err     error
	targets []gitrepo.Target
}

func (f *fakeFetcher) Fetch(ctx context.Context, target gitrepo.Target) ([]model.SourceDocument, error) {
	f.targets = append(f.targets, target)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.SourceDocument, 0, len(f.docs))
	for _, d := range f.docs {
		out = append(out, model.SourceDocument{Text: d.Text, Source: target.URL})
	}
	return out, nil
}

type scriptedGenerator struct {
	tokens  []string
	err     error
	lastCtx string
	lastQ   string
}

func (g *scriptedGenerator) Answer(ctx context.Context, contextText, question string, fn ai.TokenFunc) error {
	g.lastCtx = contextText
	g.lastQ = question
	for _, tok := range g.tokens {
		if err := fn(tok); err != nil {
			return err
		}
	}
	return g.err
}

func newMemoryStore(t *testing.T) vectorstore.Store {
	t.Helper()
	store, err := vectorstore.NewChromem("", "", false)
	require.NoError(t, err)
	return store
}

func searchAll(t *testing.T, store vectorstore.Store, emb *hashEmbedder, userID string) []model.SearchResult {
	t.Helper()
	res, err := store.Search(context.Background(), emb.vector("anything"), 1000, map[string]string{model.MetaUserID: userID})
	require.NoError(t, err)
	return res
}

func drain(t *testing.T, ans *Answer) (string, error) {
	t.Helper()
	require.NoError(t, ans.Err)
	var sb strings.Builder
	for tok := range ans.Tokens {
		if tok.Err != nil {
			return sb.String(), tok.Err
		}
		sb.WriteString(tok.Text)
	}
	return sb.String(), nil
}
