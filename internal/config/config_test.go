package config

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// validConfig returns a configuration that passes ValidateServe.
func validConfig() *Config {
	return &Config{
		OpenAIAPIKey:     "sk-test-key-000000",
		ExaAPIKey:        "exa-test-key",
		ExaBaseURL:       "https://api.exa.ai",
		EmbedderModel:    DefaultEmbedderModel,
		EmbeddingDim:     DefaultEmbeddingDim,
		PostgresHost:     "localhost",
		PostgresPort:     5432,
		PostgresUser:     "psybrarian",
		PostgresPassword: "secret",
		PostgresDBName:   "psybrarian",
		PostgresSSLMode:  "disable",
		Search: SearchConfig{
			FeaturedDomain: "psychedelics.com",
			ChunkThreshold: DefaultChunkThreshold,
			ChunkTopN:      DefaultChunkTopN,
			ResultLimit:    DefaultResultLimit,
			MaxHistory:     DefaultMaxHistory,
			TimeoutSeconds: DefaultTimeoutSecs,
		},
	}
}

func TestValidateServe_Valid(t *testing.T) {
	t.Parallel()

	if err := validConfig().ValidateServe(); err != nil {
		t.Fatalf("ValidateServe() = %v, want nil", err)
	}
}

func TestValidateServe_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"missing openai key", func(c *Config) { c.OpenAIAPIKey = "" }, ErrMissingAPIKey},
		{"missing exa key", func(c *Config) { c.ExaAPIKey = " " }, ErrMissingAPIKey},
		{"empty embedder model", func(c *Config) { c.EmbedderModel = "" }, ErrInvalidEmbedderModel},
		{"threshold above one", func(c *Config) { c.Search.ChunkThreshold = 1.5 }, ErrInvalidThreshold},
		{"negative threshold", func(c *Config) { c.Search.ChunkThreshold = -0.1 }, ErrInvalidThreshold},
		{"zero topN", func(c *Config) { c.Search.ChunkTopN = 0 }, ErrInvalidTopN},
		{"huge result limit", func(c *Config) { c.Search.ResultLimit = 1000 }, ErrInvalidResultLimit},
		{"zero timeout", func(c *Config) { c.Search.TimeoutSeconds = 0 }, ErrInvalidTimeout},
		{"empty featured domain", func(c *Config) { c.Search.FeaturedDomain = "" }, ErrInvalidFeaturedDomain},
		{"featured domain with path", func(c *Config) { c.Search.FeaturedDomain = "psychedelics.com/blog" }, ErrInvalidFeaturedDomain},
		{"featured domain with space", func(c *Config) { c.Search.FeaturedDomain = "bad domain" }, ErrInvalidFeaturedDomain},
		{"empty host", func(c *Config) { c.PostgresHost = "" }, ErrInvalidPostgresHost},
		{"port out of range", func(c *Config) { c.PostgresPort = 70000 }, ErrInvalidPostgresPort},
		{"empty db name", func(c *Config) { c.PostgresDBName = "" }, ErrInvalidPostgresDBName},
		{"bad ssl mode", func(c *Config) { c.PostgresSSLMode = "maybe" }, ErrInvalidPostgresSSLMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.ValidateServe()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateServe() = %v, want errors.Is(%v)", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_NilConfig(t *testing.T) {
	t.Parallel()

	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("Validate() on nil = %v, want ErrConfigNil", err)
	}
}

func TestMarshalJSON_MasksSecrets(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.OpenAIAPIKey = "sk-verysecretvalue"
	cfg.ExaAPIKey = "exa-verysecretvalue"
	cfg.PostgresPassword = "hunter2-long-password"

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	out := string(data)
	for _, secret := range []string{"verysecretvalue", "hunter2-long-password"} {
		if strings.Contains(out, secret) {
			t.Errorf("secret %q leaked into JSON output", secret)
		}
	}
	if !strings.Contains(out, "sk-v****") {
		t.Errorf("expected masked key prefix in output, got %s", out)
	}
}

func TestPostgresConnectionString_QuotesPassword(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.PostgresPassword = "pa ss'word"

	dsn := cfg.PostgresConnectionString()
	if !strings.Contains(dsn, `password='pa ss\'word'`) {
		t.Errorf("password not quoted correctly: %s", dsn)
	}
}

func TestPostgresURL_EncodesCredentials(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.PostgresPassword = "p@ss/word"

	u := cfg.PostgresURL()
	if strings.Contains(u, "p@ss/word") {
		t.Errorf("special characters not encoded in URL: %s", u)
	}
	if !strings.HasPrefix(u, "postgres://") {
		t.Errorf("unexpected scheme: %s", u)
	}
}

func TestParseDatabaseURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "full url",
			url:  "postgres://admin:pw@db.internal:5433/kb?sslmode=require",
			check: func(t *testing.T, c *Config) {
				if c.PostgresHost != "db.internal" || c.PostgresPort != 5433 {
					t.Errorf("host/port = %s/%d", c.PostgresHost, c.PostgresPort)
				}
				if c.PostgresUser != "admin" || c.PostgresPassword != "pw" {
					t.Errorf("credentials not applied")
				}
				if c.PostgresDBName != "kb" || c.PostgresSSLMode != "require" {
					t.Errorf("dbname/sslmode = %s/%s", c.PostgresDBName, c.PostgresSSLMode)
				}
			},
		},
		{
			name:    "wrong scheme",
			url:     "mysql://root@localhost/db",
			wantErr: true,
		},
		{
			name: "partial url keeps defaults",
			url:  "postgres://db.internal/kb",
			check: func(t *testing.T, c *Config) {
				if c.PostgresPort != 5432 {
					t.Errorf("port should keep default, got %d", c.PostgresPort)
				}
				if c.PostgresHost != "db.internal" {
					t.Errorf("host = %s", c.PostgresHost)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", tt.url)

			cfg := validConfig()
			err := cfg.parseDatabaseURL()
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDatabaseURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}
