package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/target/clinic-portal/internal/data/cryptoutil"
)

const defaultRefreshPath = "/auth/refreshToken"

// BackendConfig points the portal at the clinical REST API.
type BackendConfig struct {
	// BaseURL is the API origin, e.g. "http://localhost:8001".
	BaseURL string `env:"BACKEND_BASE_URL" envDefault:"http://localhost:8001"`

	// AuthScheme prefixes the token in the Authorization header ("Bearer").
	// Empty sends the raw token, which is what the clinical API expects.
	AuthScheme string `env:"BACKEND_AUTH_SCHEME" envDefault:""`

	// RefreshPath is the GET endpoint exchanging the refresh cookie for a new token.
	RefreshPath string `env:"BACKEND_REFRESH_PATH" envDefault:"/auth/refreshToken"`

	// RefreshCookies limits which upstream cookies count as the refresh credential.
	// Empty tracks every cookie the API sets.
	RefreshCookies []string `env:"BACKEND_REFRESH_COOKIES" envSeparator:","`

	// CoalesceRefresh shares one in-flight refresh among concurrent requests
	// of the same session.
	CoalesceRefresh bool `env:"BACKEND_COALESCE_REFRESH" envDefault:"false"`

	// Timeout bounds each upstream request.
	Timeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"15s"`
}

// Sanitize normalises the backend settings.
func (c *BackendConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.AuthScheme = strings.TrimSpace(c.AuthScheme)
	if c.RefreshPath = strings.TrimSpace(c.RefreshPath); c.RefreshPath == "" {
		c.RefreshPath = defaultRefreshPath
	}
	if !strings.HasPrefix(c.RefreshPath, "/") {
		c.RefreshPath = "/" + c.RefreshPath
	}
	cookies := c.RefreshCookies[:0]
	for _, name := range c.RefreshCookies {
		if name = strings.TrimSpace(name); name != "" {
			cookies = append(cookies, name)
		}
	}
	c.RefreshCookies = cookies
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
}

// Validate checks that BaseURL is an absolute http(s) URL.
func (c *BackendConfig) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("BACKEND_BASE_URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("BACKEND_BASE_URL %q must be an absolute http or https URL", c.BaseURL)
	}
	return nil
}

// SessionStoreKind selects where session records live.
type SessionStoreKind string

const (
	// SessionStoreMemory keeps sessions in process; they do not survive restarts.
	SessionStoreMemory SessionStoreKind = "memory"
	// SessionStoreRedis keeps sessions in Redis, shared by every replica.
	SessionStoreRedis SessionStoreKind = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for SessionStoreKind.
func (k *SessionStoreKind) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "memory", "redis":
		*k = SessionStoreKind(v)
		return nil
	default:
		return fmt.Errorf("invalid SessionStoreKind: %q (valid options: memory, redis)", v)
	}
}

// SessionConfig controls server-side session records and the route guard.
type SessionConfig struct {
	Store SessionStoreKind `env:"SESSION_STORE" envDefault:"memory"`

	// TTL is how long an idle session record is kept.
	TTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// GuardSkew treats tokens expiring within this window as expired.
	GuardSkew time.Duration `env:"SESSION_GUARD_SKEW" envDefault:"30s"`

	// KeyPrefix namespaces session keys in Redis.
	KeyPrefix string `env:"SESSION_KEY_PREFIX" envDefault:"clinic:session:"`

	// EncryptionKey seals Redis session records with AES-256-GCM.
	// 64 hex characters or base64 of 32 bytes. Empty stores records in plaintext.
	EncryptionKey string `env:"SESSION_ENCRYPTION_KEY" envDefault:""`
}

// Validate checks the encryption key when one is set.
func (c *SessionConfig) Validate() error {
	if strings.TrimSpace(c.EncryptionKey) == "" {
		return nil
	}
	if _, err := cryptoutil.ParseKey(c.EncryptionKey); err != nil {
		return fmt.Errorf("SESSION_ENCRYPTION_KEY: %w", err)
	}
	return nil
}

// Sanitize applies guardrails to session settings.
func (c *SessionConfig) Sanitize() {
	if c.Store == "" {
		c.Store = SessionStoreMemory
	}
	if c.TTL <= 0 {
		c.TTL = 24 * time.Hour
	}
	if c.GuardSkew < 0 {
		c.GuardSkew = 0
	}
	if strings.TrimSpace(c.KeyPrefix) == "" {
		c.KeyPrefix = "clinic:session:"
	}
}

// AuditConfig controls the access audit trail.
type AuditConfig struct {
	// Enabled writes audit events to Postgres. Requires DB_* settings.
	Enabled bool `env:"AUDIT_ENABLED" envDefault:"false"`
}
