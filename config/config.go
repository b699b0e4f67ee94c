package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - backend.go: clinical API and session configuration
//   - database.go: Postgres, Redis and query cache configuration
//   - http.go: HTTP server and cookie configuration
//   - observability.go: metrics and logging configuration
type AppConfig struct {
	// IsDev relaxes cookie and logging defaults for local development.
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Clinical API the portal fronts.
	Backend BackendConfig

	// Server-side session records.
	Session SessionConfig

	// Access audit trail.
	Audit AuditConfig

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`
	Cache    CacheConfig

	// HTTP server configuration
	HTTP HTTPConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.detectDevMode()

	c.Backend.Sanitize()
	c.Session.Sanitize()
	c.Cache.Sanitize()
	c.HTTP.Sanitize(c.IsDev)
	c.Observability.Sanitize()
}

// Validate reports configuration that cannot work. Call it after Sanitize.
func (c *AppConfig) Validate() error {
	var errs []error
	if err := c.Backend.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.HTTP.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Session.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.RedisRequired() && !c.Redis.configured() {
		errs = append(errs, errors.New("redis session store or cache selected but REDIS_URI is empty"))
	}
	if c.Audit.Enabled && strings.TrimSpace(c.Postgres.Host) == "" {
		errs = append(errs, errors.New("AUDIT_ENABLED requires DB_HOST"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// RedisRequired reports whether any component needs a Redis connection.
func (c *AppConfig) RedisRequired() bool {
	return c.Session.Store == SessionStoreRedis || c.Cache.Backend == CacheBackendRedis
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}
