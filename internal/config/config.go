package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/xxxsen/common/logger"
	"gopkg.in/yaml.v3"
)

const (
	ProfileScopeShared = "shared"
	ProfileScopeOwner  = "owner"
)

type Config struct {
	Port             int               `json:"port"`
	JWTSecret        string            `json:"jwt_secret"`
	JWTTTLHours      int               `json:"jwt_ttl_hours"`
	LogConfig        logger.LogConfig  `json:"log_config"`
	CORSOrigins      []string          `json:"cors_origins"`
	Database         DatabaseConfig    `json:"database"`
	VectorStore      VectorStoreConfig `json:"vector_store"`
	AI               AIConfig          `json:"ai"`
	EmbedCache       EmbedCacheConfig  `json:"embed_cache"`
	Chunker          ChunkerConfig     `json:"chunker"`
	Retrieval        RetrievalConfig   `json:"retrieval"`
	GitHub           GitHubConfig      `json:"github"`
	Repo             RepoConfig        `json:"repo"`
	FileStore        FileStoreConfig   `json:"file_store"`
	RateLimitSeconds int               `json:"rate_limit_seconds"`
	MaxUploadMB      int               `json:"max_upload_mb"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

func (c DatabaseConfig) Enabled() bool {
	return c.DSN != "" || c.Host != ""
}

type VectorStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AIProviderConfig struct {
	Name string      `json:"name"`
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AIConfig struct {
	Providers      []AIProviderConfig `json:"providers"`
	Embed          []string           `json:"embed"`
	Chat           []string           `json:"chat"`
	Temperature    *float64           `json:"temperature"`
	Timeout        int                `json:"timeout"`
	EmbedBatchSize int                `json:"embed_batch_size"`
}

type EmbedCacheConfig struct {
	LRUSize        int    `json:"lru_size"`
	LRUTTLMinutes  int    `json:"lru_ttl_minutes"`
	BadgerDir      string `json:"badger_dir"`
	BadgerTTLHours int    `json:"badger_ttl_hours"`
}

type ChunkerConfig struct {
	Window  int `json:"window"`
	Overlap int `json:"overlap"`
}

type RetrievalConfig struct {
	TopK          int  `json:"top_k"`
	IncludeShared bool `json:"include_shared"`
}

type GitHubConfig struct {
	Token          string `json:"token"`
	BaseURL        string `json:"base_url"`
	GraphQLURL     string `json:"graphql_url"`
	ProfileScope   string `json:"profile_scope"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type RepoConfig struct {
	WorkspaceDir        string `json:"workspace_dir"`
	MaxConcurrentClones int    `json:"max_concurrent_clones"`
	MaxFileBytes        int64  `json:"max_file_bytes"`
	WorkspaceTTLMinutes int    `json:"workspace_ttl_minutes"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Load reads a JSON or YAML (by extension) config file, applies .env and
// environment overrides, then validates and fills defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		raw, err = yamlToJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	// a missing .env file is not an error
	dotenv, _ := godotenv.Read(filepath.Join(filepath.Dir(path), ".env"))
	applyEnv(&cfg, dotenv)
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func yamlToJSON(raw []byte) ([]byte, error) {
	var data map[string]interface{}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return json.Marshal(data)
}

// applyEnv overrides secrets from the process environment, falling back to
// values read from .env.
func applyEnv(cfg *Config, dotenv map[string]string) {
	lookup := func(key string) string {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
		return strings.TrimSpace(dotenv[key])
	}
	if v := lookup("GITHUB_TOKEN"); v != "" {
		cfg.GitHub.Token = v
	}
	if v := lookup("MRAG_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
}

func (c *Config) normalize() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.JWTTTLHours == 0 {
		c.JWTTTLHours = 72
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if c.VectorStore.Type == "" {
		c.VectorStore.Type = "chromem"
	}
	if c.VectorStore.Type == "pgvector" && !c.Database.Enabled() {
		return fmt.Errorf("database is required for pgvector store")
	}
	if len(c.AI.Embed) == 0 {
		return fmt.Errorf("ai.embed requires at least one provider:model")
	}
	if c.AI.Temperature == nil {
		t := 0.7
		c.AI.Temperature = &t
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = 120
	}
	if c.AI.EmbedBatchSize <= 0 {
		c.AI.EmbedBatchSize = 64
	}
	if c.EmbedCache.LRUTTLMinutes <= 0 {
		c.EmbedCache.LRUTTLMinutes = 120
	}
	if c.EmbedCache.BadgerTTLHours <= 0 {
		c.EmbedCache.BadgerTTLHours = 24 * 30
	}
	if c.Chunker.Window <= 0 {
		c.Chunker.Window = 1000
		if c.Chunker.Overlap == 0 {
			c.Chunker.Overlap = 200
		}
	}
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.Window {
		return fmt.Errorf("chunker.overlap must be in [0, window)")
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 3
	}
	switch c.GitHub.ProfileScope {
	case "":
		c.GitHub.ProfileScope = ProfileScopeShared
	case ProfileScopeShared, ProfileScopeOwner:
	default:
		return fmt.Errorf("github.profile_scope must be shared or owner")
	}
	if c.GitHub.TimeoutSeconds <= 0 {
		c.GitHub.TimeoutSeconds = 15
	}
	if c.Repo.MaxConcurrentClones <= 0 {
		c.Repo.MaxConcurrentClones = 2
	}
	if c.Repo.MaxFileBytes <= 0 {
		c.Repo.MaxFileBytes = 1 << 20
	}
	if c.Repo.WorkspaceTTLMinutes <= 0 {
		c.Repo.WorkspaceTTLMinutes = 60
	}
	if c.RateLimitSeconds < 0 {
		c.RateLimitSeconds = 0
	}
	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = 20
	}
	return nil
}
