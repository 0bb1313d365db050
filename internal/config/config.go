// Package config provides configuration loading for the docquery server.
// Settings come from an optional YAML file overridden by environment
// variables; a .env file in the working directory is honored when present.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	AppName    string          `yaml:"app_name"`
	AppVersion string          `yaml:"app_version"`
	Debug      bool            `yaml:"debug"`
	Server     ServerConfig    `yaml:"server"`
	LLM        LLMConfig       `yaml:"llm"`
	Embedding  EmbeddingConfig `yaml:"embedding"`
	Vector     VectorConfig    `yaml:"vector"`
	Storage    StorageConfig   `yaml:"storage"`
	RAG        RAGConfig       `yaml:"rag"`
	Watch      WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Concurrency caps simultaneous in-flight API requests.
	Concurrency int `yaml:"concurrency"`
	// MonitorToken, when set, is required as a bearer token on /api/stats.
	MonitorToken string `yaml:"monitor_token"`
}

// LLMConfig holds chat-completion settings.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// EmbeddingConfig holds remote embedding settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	Dimensions int    `yaml:"dimensions"`
	CacheSize  int    `yaml:"cache_size"`
}

// VectorConfig selects and configures the vector index backend.
type VectorConfig struct {
	// Backend is "memory" or "redis".
	Backend string `yaml:"backend"`
	// SnapshotPath persists the memory backend across restarts.
	SnapshotPath string `yaml:"snapshot_path"`
	IndexName    string `yaml:"index_name"`
	RedisAddr    string `yaml:"redis_addr"`
	RedisPass    string `yaml:"redis_password"`
}

// StorageConfig holds catalog and upload paths.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	UploadDir      string `yaml:"upload_dir"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// RAGConfig holds chunking, retrieval, and answer-shaping settings.
type RAGConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	DefaultTopK  int `yaml:"default_top_k"`
	MaxTopK      int `yaml:"max_top_k"`
	// Confidence label thresholds on the best retrieval similarity:
	// >= HighConfidence -> high, >= MediumConfidence -> medium, else low.
	HighConfidence   float64 `yaml:"high_confidence"`
	MediumConfidence float64 `yaml:"medium_confidence"`
	// MaxPromptChars bounds the assembled context passed to the LLM.
	MaxPromptChars int `yaml:"max_prompt_chars"`
	// SnippetLength bounds per-source citation excerpts (runes).
	SnippetLength int `yaml:"snippet_length"`
}

// WatchConfig controls upload-directory watching.
type WatchConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load builds the config: optional YAML file at path (empty path skips the
// file), then environment overrides, then defaults and validation. A .env
// file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides cfg fields from environment variables.
func applyEnv(cfg *Config) {
	setString(&cfg.AppName, "APP_NAME")
	setString(&cfg.AppVersion, "APP_VERSION")
	setBool(&cfg.Debug, "DEBUG")

	setString(&cfg.Server.Host, "SERVER_HOST")
	setInt(&cfg.Server.Port, "SERVER_PORT")
	setInt(&cfg.Server.Concurrency, "CONCURRENCY")
	setString(&cfg.Server.MonitorToken, "MONITOR_TOKEN")

	setString(&cfg.LLM.APIKey, "LLM_API_KEY")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")

	setString(&cfg.Embedding.APIKey, "EMBEDDING_API_KEY")
	setString(&cfg.Embedding.Model, "EMBEDDING_MODEL")
	setString(&cfg.Embedding.BaseURL, "EMBEDDING_BASE_URL")
	setInt(&cfg.Embedding.Dimensions, "EMBEDDING_DIMENSIONS")
	setInt(&cfg.Embedding.CacheSize, "EMBEDDING_CACHE_SIZE")

	setString(&cfg.Vector.Backend, "VECTOR_BACKEND")
	setString(&cfg.Vector.SnapshotPath, "VECTOR_SNAPSHOT_PATH")
	setString(&cfg.Vector.IndexName, "VECTOR_INDEX_NAME")
	setString(&cfg.Vector.RedisAddr, "REDIS_ADDR")
	setString(&cfg.Vector.RedisPass, "REDIS_PASSWORD")

	setString(&cfg.Storage.DatabasePath, "DATABASE_PATH")
	setString(&cfg.Storage.UploadDir, "UPLOAD_DIR")
	setInt64(&cfg.Storage.MaxUploadBytes, "MAX_UPLOAD_SIZE")

	setInt(&cfg.RAG.ChunkSize, "CHUNK_SIZE")
	setInt(&cfg.RAG.ChunkOverlap, "CHUNK_OVERLAP")
	setInt(&cfg.RAG.DefaultTopK, "RETRIEVAL_TOP_K")
	setInt(&cfg.RAG.MaxTopK, "RETRIEVAL_MAX_TOP_K")
	setFloat(&cfg.RAG.HighConfidence, "HIGH_CONFIDENCE_THRESHOLD")
	setFloat(&cfg.RAG.MediumConfidence, "MEDIUM_CONFIDENCE_THRESHOLD")
	setInt(&cfg.RAG.MaxPromptChars, "MAX_PROMPT_CHARS")
	setInt(&cfg.RAG.SnippetLength, "SNIPPET_LENGTH")

	setBool(&cfg.Watch.Enabled, "WATCH_UPLOADS")
}

// Validate checks cross-field constraints after defaults are applied.
func (c *Config) Validate() error {
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive")
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, chunk_size)")
	}
	if c.RAG.DefaultTopK <= 0 || c.RAG.MaxTopK < c.RAG.DefaultTopK {
		return fmt.Errorf("retrieval top_k bounds are inconsistent")
	}
	if c.RAG.MediumConfidence > c.RAG.HighConfidence {
		return fmt.Errorf("medium confidence threshold exceeds high threshold")
	}
	if c.Storage.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}
	if c.Server.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	switch c.Vector.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown vector backend %q", c.Vector.Backend)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
