package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/dshills/gustavo-mcp/internal/embedder"
	"github.com/dshills/gustavo-mcp/internal/responder"
	"github.com/dshills/gustavo-mcp/internal/session"
	"github.com/dshills/gustavo-mcp/internal/storage"
	"github.com/dshills/gustavo-mcp/pkg/types"
)

// Artifact file names inside the data directory
const (
	IndexFileName    = "intents.index"
	MetadataFileName = "intents_meta.json"
	DatabaseFileName = "intents.db"
)

type Config struct {
	App       AppConfig
	Index     IndexConfig
	Session   SessionConfig
	Embedding EmbeddingConfig
}

type AppConfig struct {
	Environment string `validate:"oneof=development production test"`
	LogFilePath string // Empty disables the rotating file log
	LogLevel    string `validate:"oneof=debug info warn error"`
}

type IndexConfig struct {
	CatalogPath string `validate:"required"`
	DataDir     string `validate:"required"`
	Backend     string `validate:"oneof=file sqlite"`
	StalePolicy string `validate:"oneof=warn rebuild"`
	Workers     int    `validate:"gte=0"`
	BatchSize   int    `validate:"gte=0,lte=100"`
}

type SessionConfig struct {
	Store         string        `validate:"oneof=ttl lru"`
	TTL           time.Duration `validate:"gt=0"`
	MaxSessions   int           `validate:"gt=0"`
	NHistory      int           `validate:"gt=0"`
	MaxHistory    int           `validate:"gt=0"`
	Threshold     float64       `validate:"gte=-1,lte=1"`
	FallbackReply string        `validate:"required"`
}

type EmbeddingConfig struct {
	Provider      string `validate:"omitempty,oneof=jina openai local"`
	Model         string // Empty keeps the provider default
	JinaAPIKey    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	CacheSize     int `validate:"gte=0"`
}

// Load reads an optional .env file (or the given files) and the environment.
// A missing .env is not an error; an invalid configuration is.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && len(envFiles) > 0 {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getEnv("GUSTAVO_ENV", "development"),
			LogFilePath: getEnv("GUSTAVO_LOG_FILE", ""),
			LogLevel:    strings.ToLower(getEnv("GUSTAVO_LOG_LEVEL", "info")),
		},
		Index: IndexConfig{
			CatalogPath: getEnv("GUSTAVO_CATALOG", "intents.json"),
			DataDir:     getEnv("GUSTAVO_DATA_DIR", "data"),
			Backend:     strings.ToLower(getEnv("GUSTAVO_INDEX_BACKEND", storage.BackendFile)),
			StalePolicy: strings.ToLower(getEnv("STALE_INDEX_POLICY", "warn")),
			Workers:     getEnvAsInt("GUSTAVO_INDEX_WORKERS", 0),
			BatchSize:   getEnvAsInt("GUSTAVO_INDEX_BATCH_SIZE", embedder.DefaultBatchSize),
		},
		Session: SessionConfig{
			Store:         strings.ToLower(getEnv("GUSTAVO_SESSION_STORE", session.StoreTTL)),
			TTL:           getEnvAsDuration("GUSTAVO_SESSION_TTL", time.Hour),
			MaxSessions:   getEnvAsInt("GUSTAVO_SESSION_MAX", 10000),
			NHistory:      getEnvAsInt("GUSTAVO_N_HISTORY", session.DefaultNHistory),
			MaxHistory:    getEnvAsInt("GUSTAVO_MAX_HISTORY", session.DefaultMaxHistory),
			Threshold:     getEnvAsFloat("GUSTAVO_THRESHOLD", session.DefaultThreshold),
			FallbackReply: getEnv("GUSTAVO_FALLBACK_REPLY", responder.DefaultFallback),
		},
		Embedding: EmbeddingConfig{
			Provider:      strings.ToLower(getEnv(embedder.EnvProvider, "")),
			Model:         getEnv(embedder.EnvModel, ""),
			JinaAPIKey:    getEnv(embedder.EnvJinaAPIKey, ""),
			OpenAIAPIKey:  getEnv(embedder.EnvOpenAIAPIKey, ""),
			OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
			CacheSize:     getEnvAsInt("GUSTAVO_EMBEDDING_CACHE", embedder.DefaultCacheSize),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return types.ConfigurationErrorf("invalid settings: %v", err)
	}
	return nil
}

// IndexPath is the primary artifact path for the configured backend
func (c IndexConfig) IndexPath() string {
	if c.Backend == storage.BackendSQLite {
		return filepath.Join(c.DataDir, DatabaseFileName)
	}
	return filepath.Join(c.DataDir, IndexFileName)
}

// MetadataPath is the JSON metadata path used by the file backend
func (c IndexConfig) MetadataPath() string {
	return filepath.Join(c.DataDir, MetadataFileName)
}

// ResolvedProvider returns the configured provider, or the one implied by the
// available API keys
func (c EmbeddingConfig) ResolvedProvider() string {
	switch {
	case c.Provider != "":
		return c.Provider
	case c.JinaAPIKey != "":
		return embedder.ProviderJina
	case c.OpenAIAPIKey != "":
		return embedder.ProviderOpenAI
	default:
		return embedder.ProviderLocal
	}
}

// EmbedderConfig converts the settings for embedder.New
func (c EmbeddingConfig) EmbedderConfig() embedder.Config {
	cfg := embedder.Config{
		Provider:  c.ResolvedProvider(),
		Model:     c.Model,
		CacheSize: c.CacheSize,
	}
	switch cfg.Provider {
	case embedder.ProviderJina:
		cfg.APIKey = c.JinaAPIKey
	case embedder.ProviderOpenAI:
		cfg.APIKey = c.OpenAIAPIKey
		cfg.BaseURL = c.OpenAIBaseURL
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
