package config

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// CookieDomain is the domain for session cookies.
	// Leave empty to use the request domain.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	// CookieSecure forces the Secure attribute on the session cookie.
	// It is forced on outside development mode.
	CookieSecure bool `env:"APP_COOKIE_SECURE" envDefault:"false"`

	// TrustProxy takes the client address for audit events from X-Forwarded-For.
	TrustProxy bool `env:"HTTP_TRUST_PROXY" envDefault:"false"`

	// LoginPath is where browsers are sent when their session has ended.
	LoginPath string `env:"APP_LOGIN_PATH" envDefault:"/login"`

	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT"     envDefault:"30s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT"    envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize(isDev bool) {
	h.CookieDomain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(h.CookieDomain)), ".")
	if !isDev {
		h.CookieSecure = true
	}
	if h.LoginPath = strings.TrimSpace(h.LoginPath); !strings.HasPrefix(h.LoginPath, "/") {
		h.LoginPath = "/login"
	}
	if h.ReadTimeout <= 0 {
		h.ReadTimeout = 30 * time.Second
	}
	if h.WriteTimeout <= 0 {
		h.WriteTimeout = 30 * time.Second
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 10 * time.Second
	}
}

// Validate rejects a cookie domain that is a public suffix (e.g. "co.uk"),
// which browsers would refuse or share across unrelated sites.
func (h *HTTPConfig) Validate() error {
	if h.CookieDomain == "" || h.CookieDomain == "localhost" {
		return nil
	}
	if _, err := publicsuffix.EffectiveTLDPlusOne(h.CookieDomain); err != nil {
		return fmt.Errorf("APP_COOKIE_DOMAIN %q: %w", h.CookieDomain, err)
	}
	return nil
}
