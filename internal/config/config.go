// Package config provides configuration for jiraindex. Unlike the
// package-global singleton some prior systems use, Config is constructed
// explicitly by the caller and passed to each component's constructor
// rather than retrieved via a lazily-initialized global.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/thebtf/jiraindex/internal/errkind"
)

// EmbeddingProviderKind selects which EmbeddingProvider implementation the
// pipeline constructs.
type EmbeddingProviderKind string

const (
	ProviderOpenAI EmbeddingProviderKind = "openai"
	ProviderLocal  EmbeddingProviderKind = "local"
)

// Config holds every environment-derived setting named in the external
// interfaces section: db path, provider selection, sync cadence, batching
// and concurrency limits, and search tuning knobs.
type Config struct {
	DBPath string

	EmbeddingProvider   EmbeddingProviderKind
	EmbeddingModel      string
	EmbeddingDimensions int
	EmbeddingAPIKey     string
	EmbeddingBaseURL    string

	SyncEnabled         bool
	SyncIntervalMinutes int
	SyncProjects        []string // nil/empty means "all"
	SyncComments        bool
	SyncLookbackDays    int // default full-sync floor, ~1 year

	BatchSize               int
	MaxConcurrentEmbeddings int
	CacheEmbeddings         bool
	CacheMaxEntries         int

	SelfQueryModel string

	FTSWeight          float64
	DefaultMinScore    float64
	DuplicateThreshold float64
	SimilarThreshold   float64
}

// Default returns a Config populated with the defaults named throughout the
// component design (batch_size=100, max_concurrent_embeddings=5,
// cache max_entries=100000, sync_interval_minutes=60, etc).
func Default() *Config {
	return &Config{
		DBPath: filepath.Join("data", "jiraindex"),

		EmbeddingProvider:   ProviderOpenAI,
		EmbeddingModel:      "text-embedding-3-small",
		EmbeddingDimensions: 1536,
		EmbeddingBaseURL:    "https://api.openai.com/v1",

		SyncEnabled:         true,
		SyncIntervalMinutes: 60,
		SyncComments:        true,
		SyncLookbackDays:    365,

		BatchSize:               100,
		MaxConcurrentEmbeddings: 5,
		CacheEmbeddings:         true,
		CacheMaxEntries:         100_000,

		SelfQueryModel: "gpt-4o-mini",

		FTSWeight:          0.3,
		DefaultMinScore:    0.2,
		DuplicateThreshold: 0.85,
		SimilarThreshold:   0.8,
	}
}

// CachePath returns the embedding cache SQLite file path.
func (c *Config) CachePath() string {
	return filepath.Join(c.DBPath, "embedding_cache.db")
}

// SyncStatePath returns the persisted sync state JSON file path.
func (c *Config) SyncStatePath() string {
	return filepath.Join(c.DBPath, "sync_state.json")
}

// EnsureDataDir creates DBPath if it doesn't exist, owner-only permissions.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DBPath, 0o700)
}

// LoadFromEnv builds a Config by merging environment variables over
// Default(). Recognized variables match §6's "Configuration
// (environment-derived)" list.
func LoadFromEnv() (*Config, error) {
	cfg := Default()

	if v := os.Getenv("JIRAINDEX_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("JIRAINDEX_EMBEDDING_PROVIDER"); v != "" {
		switch EmbeddingProviderKind(v) {
		case ProviderOpenAI, ProviderLocal:
			cfg.EmbeddingProvider = EmbeddingProviderKind(v)
		default:
			return nil, errkind.New(errkind.Configuration, "LoadFromEnv",
				fmt.Errorf("unknown embedding provider %q", v))
		}
	}
	if v := os.Getenv("JIRAINDEX_EMBEDDING_MODEL"); v != "" {
		cfg.EmbeddingModel = v
	}
	if v := os.Getenv("JIRAINDEX_EMBEDDING_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EmbeddingDimensions = n
		}
	}
	if v := os.Getenv("JIRAINDEX_EMBEDDING_API_KEY"); v != "" {
		cfg.EmbeddingAPIKey = v
	}
	if v := os.Getenv("JIRAINDEX_EMBEDDING_BASE_URL"); v != "" {
		cfg.EmbeddingBaseURL = v
	}

	if v := os.Getenv("JIRAINDEX_SYNC_ENABLED"); v != "" {
		cfg.SyncEnabled = parseBool(v, cfg.SyncEnabled)
	}
	if v := os.Getenv("JIRAINDEX_SYNC_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SyncIntervalMinutes = n
		}
	}
	if v := os.Getenv("JIRAINDEX_SYNC_PROJECTS"); v != "" && v != "*" {
		cfg.SyncProjects = splitTrim(v)
	}
	if v := os.Getenv("JIRAINDEX_SYNC_COMMENTS"); v != "" {
		cfg.SyncComments = parseBool(v, cfg.SyncComments)
	}

	if v := os.Getenv("JIRAINDEX_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BatchSize = n
		}
	}
	if v := os.Getenv("JIRAINDEX_MAX_CONCURRENT_EMBEDDINGS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxConcurrentEmbeddings = n
		}
	}
	if v := os.Getenv("JIRAINDEX_CACHE_EMBEDDINGS"); v != "" {
		cfg.CacheEmbeddings = parseBool(v, cfg.CacheEmbeddings)
	}
	if v := os.Getenv("JIRAINDEX_CACHE_MAX_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxEntries = n
		}
	}

	if v := os.Getenv("JIRAINDEX_SELF_QUERY_MODEL"); v != "" {
		cfg.SelfQueryModel = v
	}

	if v := os.Getenv("JIRAINDEX_FTS_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			cfg.FTSWeight = f
		}
	}
	if v := os.Getenv("JIRAINDEX_DEFAULT_MIN_SCORE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			cfg.DefaultMinScore = f
		}
	}
	if v := os.Getenv("JIRAINDEX_DUPLICATE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			cfg.DuplicateThreshold = f
		}
	}
	if v := os.Getenv("JIRAINDEX_SIMILAR_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			cfg.SimilarThreshold = f
		}
	}

	if cfg.EmbeddingProvider == ProviderOpenAI && cfg.EmbeddingAPIKey == "" {
		return nil, errkind.New(errkind.Configuration, "LoadFromEnv",
			fmt.Errorf("JIRAINDEX_EMBEDDING_API_KEY is required for the openai provider"))
	}

	return cfg, nil
}

func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}
