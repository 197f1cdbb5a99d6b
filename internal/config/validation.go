package config

import (
	"fmt"
	"net/url"
	"strings"
)

// validSSLModes are the PostgreSQL SSL modes accepted by pgx.
var validSSLModes = map[string]struct{}{
	"disable":     {},
	"allow":       {},
	"prefer":      {},
	"require":     {},
	"verify-ca":   {},
	"verify-full": {},
}

// Validate checks configuration needed by every mode (migrate, serve).
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port %d out of range 1-65535", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: database name is empty", ErrInvalidPostgresDBName)
	}
	if _, ok := validSSLModes[c.PostgresSSLMode]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	return nil
}

// ValidateServe checks configuration required to run the HTTP service,
// on top of the base Validate checks.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if strings.TrimSpace(c.OpenAIAPIKey) == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingAPIKey)
	}
	if strings.TrimSpace(c.ExaAPIKey) == "" {
		return fmt.Errorf("%w: EXA_API_KEY", ErrMissingAPIKey)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: model name is empty", ErrInvalidEmbedderModel)
	}

	s := c.Search
	if s.ChunkThreshold < 0 || s.ChunkThreshold > 1 {
		return fmt.Errorf("%w: %v not in [0, 1]", ErrInvalidThreshold, s.ChunkThreshold)
	}
	if s.ChunkTopN < 1 || s.ChunkTopN > 50 {
		return fmt.Errorf("%w: %d not in 1-50", ErrInvalidTopN, s.ChunkTopN)
	}
	if s.ResultLimit < 1 || s.ResultLimit > 100 {
		return fmt.Errorf("%w: %d not in 1-100", ErrInvalidResultLimit, s.ResultLimit)
	}
	if s.TimeoutSeconds < 1 || s.TimeoutSeconds > 120 {
		return fmt.Errorf("%w: %d not in 1-120 seconds", ErrInvalidTimeout, s.TimeoutSeconds)
	}

	// A domain is usable only if prefixing it with a scheme yields a valid
	// URL whose host matches the domain itself.
	featured := strings.TrimSpace(s.FeaturedDomain)
	if featured == "" {
		return fmt.Errorf("%w: featured domain is empty", ErrInvalidFeaturedDomain)
	}
	u, err := url.Parse("http://" + featured)
	if err != nil || u.Host != featured {
		return fmt.Errorf("%w: %q", ErrInvalidFeaturedDomain, s.FeaturedDomain)
	}

	return nil
}
