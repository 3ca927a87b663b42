package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_JSONDefaults(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("MRAG_JWT_SECRET", "")
	path := writeFile(t, t.TempDir(), "config.json", `{
		"jwt_secret": "s",
		"ai": {"embed": ["sbert:all-MiniLM-L6-v2"]}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "chromem", cfg.VectorStore.Type)
	require.Equal(t, 1000, cfg.Chunker.Window)
	require.Equal(t, 200, cfg.Chunker.Overlap)
	require.Equal(t, 3, cfg.Retrieval.TopK)
	require.False(t, cfg.Retrieval.IncludeShared)
	require.Equal(t, ProfileScopeShared, cfg.GitHub.ProfileScope)
	require.InDelta(t, 0.7, *cfg.AI.Temperature, 1e-9)
	require.Equal(t, "info", cfg.LogConfig.Level)
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("MRAG_JWT_SECRET", "")
	writeFile(t, dir, ".env", "GITHUB_TOKEN=from-dotenv\n")
	path := writeFile(t, dir, "config.yaml", `
jwt_secret: yaml-secret
port: 9000
ai:
  embed: ["ollama:nomic-embed-text"]
  chat: ["ollama:llama3"]
  temperature: 0
retrieval:
  top_k: 5
  include_shared: true
github:
  profile_scope: owner
vector_store:
  type: chromem
  data:
    path: ""
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Port)
	require.Equal(t, "yaml-secret", cfg.JWTSecret)
	require.Equal(t, "from-dotenv", cfg.GitHub.Token)
	require.Equal(t, 5, cfg.Retrieval.TopK)
	require.True(t, cfg.Retrieval.IncludeShared)
	require.Equal(t, ProfileScopeOwner, cfg.GitHub.ProfileScope)
	require.InDelta(t, 0.0, *cfg.AI.Temperature, 1e-9)
}

func TestLoad_Validation(t *testing.T) {
	t.Setenv("MRAG_JWT_SECRET", "")
	dir := t.TempDir()
	cases := []string{
		`{"ai": {"embed": ["a:b"]}}`,
		`{"jwt_secret": "s"}`,
		`{"jwt_secret": "s", "ai": {"embed": ["a:b"]}, "vector_store": {"type": "pgvector"}}`,
		`{"jwt_secret": "s", "ai": {"embed": ["a:b"]}, "chunker": {"window": 100, "overlap": 100}}`,
		`{"jwt_secret": "s", "ai": {"embed": ["a:b"]}, "github": {"profile_scope": "everyone"}}`,
	}
	for i, c := range cases {
		path := writeFile(t, dir, "bad.json", c)
		_, err := Load(path)
		require.Error(t, err, "case %d", i)
	}
}
