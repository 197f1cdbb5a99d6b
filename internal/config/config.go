// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (PSYBRARIAN_ prefix, runtime override)
//  2. Config file (~/.psybrarian/config.yaml)
//  3. Default values
//
// Categories:
//   - Providers: OpenAI embeddings, Exa web search
//   - Storage: PostgreSQL connection (see storage.go)
//   - Search: retrieval thresholds, featured domain, core trust list (see search.go)
//   - Observability: OTLP tracing (see observability.go)
//
// Sensitive values (API keys, passwords) are masked in MarshalJSON.
// Validation lives in validation.go and uses sentinel errors so callers can
// branch with errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidEmbedderModel indicates the embedder model name is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidThreshold indicates the chunk match threshold is out of range.
	ErrInvalidThreshold = errors.New("invalid match threshold")

	// ErrInvalidTopN indicates the chunk search topN is out of range.
	ErrInvalidTopN = errors.New("invalid topN")

	// ErrInvalidResultLimit indicates the web search result limit is out of range.
	ErrInvalidResultLimit = errors.New("invalid result limit")

	// ErrInvalidFeaturedDomain indicates the featured domain is malformed.
	ErrInvalidFeaturedDomain = errors.New("invalid featured domain")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidTimeout indicates a network timeout is out of range.
	ErrInvalidTimeout = errors.New("invalid timeout")
)

// Default retrieval parameters. The threshold is intentionally biased toward
// precision: a wrong local answer is worse than falling through to web search.
const (
	DefaultEmbedderModel  = "text-embedding-ada-002"
	DefaultEmbeddingDim   = 1536
	DefaultChunkThreshold = 0.90
	DefaultChunkTopN      = 3
	DefaultResultLimit    = 10
	DefaultMaxHistory     = 5
	DefaultTimeoutSecs    = 20
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields, update MarshalJSON.
type Config struct {
	// Provider credentials
	OpenAIAPIKey string `mapstructure:"openai_api_key" json:"openai_api_key"` // SENSITIVE: masked in MarshalJSON
	ExaAPIKey    string `mapstructure:"exa_api_key" json:"exa_api_key"`       // SENSITIVE: masked in MarshalJSON
	ExaBaseURL   string `mapstructure:"exa_base_url" json:"exa_base_url"`

	// Embedding configuration
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbeddingDim  int    `mapstructure:"embedding_dim" json:"embedding_dim"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Search configuration (see search.go)
	Search SearchConfig `mapstructure:"search" json:"search"`

	// HTTP server configuration (serve mode only)
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // Trust X-Real-IP/X-Forwarded-For (behind reverse proxy)
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`

	// Observability configuration (see observability.go)
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`

	// Logging
	LogJSON bool `mapstructure:"log_json" json:"log_json"`
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config // avoid recursion
	a := alias(c)
	a.OpenAIAPIKey = maskSecret(a.OpenAIAPIKey)
	a.ExaAPIKey = maskSecret(a.ExaAPIKey)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// maskSecret masks a secret value for display, keeping a short prefix so
// operators can tell which key is loaded.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****"
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PSYBRARIAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional; environment + defaults are enough to run.
	if dir, err := configDir(); err == nil {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, err
	}

	// Direct provider env vars win over everything, matching how the keys are
	// provisioned in deployment.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.OpenAIAPIKey = key
	}
	if key := os.Getenv("EXA_API_KEY"); key != "" {
		cfg.ExaAPIKey = key
	}

	return &cfg, nil
}

// configDir returns ~/.psybrarian, creating it if needed.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	dir := filepath.Join(home, ".psybrarian")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	return dir, nil
}

// setDefaults registers default values for all configuration keys.
func setDefaults(v *viper.Viper) {
	v.SetDefault("exa_base_url", "https://api.exa.ai")
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("embedding_dim", DefaultEmbeddingDim)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "psybrarian")
	v.SetDefault("postgres_db_name", "psybrarian")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("search.featured_domain", "psychedelics.com")
	v.SetDefault("search.chunk_threshold", DefaultChunkThreshold)
	v.SetDefault("search.chunk_top_n", DefaultChunkTopN)
	v.SetDefault("search.result_limit", DefaultResultLimit)
	v.SetDefault("search.max_history", DefaultMaxHistory)
	v.SetDefault("search.timeout_seconds", DefaultTimeoutSecs)

	v.SetDefault("rate_burst", 60)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "psybrarian")
}
