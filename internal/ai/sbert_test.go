package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSbertProvider_EmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embed/batch", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		var req sbertRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := sbertResponse{Dimensions: 3}
		for i := range req.Texts {
			resp.Embeddings = append(resp.Embeddings, []float32{float32(i + 1), 0, 0})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p, err := NewEmbedProvider("sbert", map[string]interface{}{"base_url": srv.URL + "/"})
	require.NoError(t, err)
	vecs, err := p.Embed(context.Background(), "all-MiniLM-L6-v2", []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, [][]float32{{1, 0, 0}, {2, 0, 0}}, vecs)
}

func TestSbertProvider_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := NewEmbedProvider("sbert", map[string]interface{}{"base_url": srv.URL})
	require.NoError(t, err)
	_, err = p.Embed(context.Background(), "m", []string{"a"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")
}

func TestSbertProvider_DimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sbertResponse{Dimensions: 3, Embeddings: [][]float32{{1, 2}}})
	}))
	defer srv.Close()

	p, err := NewEmbedProvider("sbert", map[string]interface{}{"base_url": srv.URL})
	require.NoError(t, err)
	_, err = p.Embed(context.Background(), "m", []string{"a"})
	require.Error(t, err)
}
