package config

import (
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Backend.BaseURL != "http://localhost:8001" {
		t.Fatalf("unexpected base url %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.RefreshPath != "/auth/refreshToken" {
		t.Fatalf("unexpected refresh path %q", cfg.Backend.RefreshPath)
	}
	if cfg.Backend.AuthScheme != "" {
		t.Fatalf("expected raw token scheme, got %q", cfg.Backend.AuthScheme)
	}
	if cfg.Backend.CoalesceRefresh {
		t.Fatal("refresh coalescing must be off by default")
	}
	if cfg.Session.Store != SessionStoreMemory || cfg.Session.TTL != 24*time.Hour || cfg.Session.GuardSkew != 30*time.Second {
		t.Fatalf("unexpected session defaults: %#v", cfg.Session)
	}
	if cfg.Audit.Enabled {
		t.Fatal("audit must be disabled by default")
	}
	if cfg.Cache.Backend != CacheBackendLocal {
		t.Fatalf("unexpected cache backend %q", cfg.Cache.Backend)
	}
	if cfg.RedisRequired() {
		t.Fatal("defaults must not require redis")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestAppConfig_ParseBackendEnv(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", " https://api.clinic.example/ ")
	t.Setenv("BACKEND_AUTH_SCHEME", "Bearer")
	t.Setenv("BACKEND_REFRESH_PATH", "auth/refresh")
	t.Setenv("BACKEND_REFRESH_COOKIES", "jwt, ,refresh")
	t.Setenv("BACKEND_COALESCE_REFRESH", "true")
	t.Setenv("BACKEND_TIMEOUT", "5s")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	expected := BackendConfig{
		BaseURL:         "https://api.clinic.example",
		AuthScheme:      "Bearer",
		RefreshPath:     "/auth/refresh",
		RefreshCookies:  []string{"jwt", "refresh"},
		CoalesceRefresh: true,
		Timeout:         5 * time.Second,
	}
	if !reflect.DeepEqual(cfg.Backend, expected) {
		t.Fatalf("unexpected backend configuration:\nexpected: %#v\ngot:      %#v", expected, cfg.Backend)
	}
}

func TestAppConfig_ParseSessionAndCacheEnv(t *testing.T) {
	t.Setenv("SESSION_STORE", "Redis")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("SESSION_GUARD_SKEW", "-5s")
	t.Setenv("CACHE_BACKEND", "none")
	t.Setenv("AUDIT_ENABLED", "true")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Session.Store != SessionStoreRedis {
		t.Fatalf("expected redis session store, got %q", cfg.Session.Store)
	}
	if cfg.Session.TTL != 2*time.Hour {
		t.Fatalf("unexpected ttl %v", cfg.Session.TTL)
	}
	if cfg.Session.GuardSkew != 0 {
		t.Fatalf("negative skew must clamp to zero, got %v", cfg.Session.GuardSkew)
	}
	if cfg.Cache.Backend != CacheBackendNone {
		t.Fatalf("unexpected cache backend %q", cfg.Cache.Backend)
	}
	if !cfg.Audit.Enabled {
		t.Fatal("expected audit enabled")
	}
	if !cfg.RedisRequired() {
		t.Fatal("redis session store requires redis")
	}
}

func TestAppConfig_RejectsUnknownEnums(t *testing.T) {
	tests := map[string]string{
		"SESSION_STORE": "etcd",
		"CACHE_BACKEND": "memcached",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			var cfg AppConfig
			if err := env.Parse(&cfg); err == nil {
				t.Fatalf("expected %s=%s to be rejected", key, value)
			}
		})
	}
}

func TestBackendConfig_Validate(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{url: "http://localhost:8001", wantErr: false},
		{url: "https://api.example.com", wantErr: false},
		{url: "localhost:8001", wantErr: true},
		{url: "ftp://api.example.com", wantErr: true},
		{url: "", wantErr: true},
	}
	for _, tt := range tests {
		c := BackendConfig{BaseURL: tt.url}
		if err := c.Validate(); (err != nil) != tt.wantErr {
			t.Fatalf("Validate(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
		}
	}
}

func TestHTTPConfig_CookieDomain(t *testing.T) {
	tests := []struct {
		domain  string
		wantErr bool
	}{
		{domain: "", wantErr: false},
		{domain: "localhost", wantErr: false},
		{domain: ".clinic.example.com", wantErr: false},
		{domain: "portal.example.co.uk", wantErr: false},
		{domain: "co.uk", wantErr: true},
		{domain: "com", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			h := HTTPConfig{CookieDomain: tt.domain}
			h.Sanitize(true)
			if err := h.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate(%q) error = %v, wantErr %v", tt.domain, err, tt.wantErr)
			}
		})
	}
}

func TestHTTPConfig_Sanitize(t *testing.T) {
	h := HTTPConfig{LoginPath: "login"}
	h.Sanitize(false)
	if !h.CookieSecure {
		t.Fatal("cookies must be secure outside dev mode")
	}
	if h.LoginPath != "/login" {
		t.Fatalf("unexpected login path %q", h.LoginPath)
	}
	if h.ReadTimeout <= 0 || h.WriteTimeout <= 0 || h.ShutdownTimeout <= 0 {
		t.Fatalf("timeouts must be positive: %#v", h)
	}

	dev := HTTPConfig{}
	dev.Sanitize(true)
	if dev.CookieSecure {
		t.Fatal("dev mode keeps the configured Secure flag")
	}
}

func TestAppConfig_Validate(t *testing.T) {
	cfg := AppConfig{
		Backend: BackendConfig{BaseURL: "http://localhost:8001"},
		Session: SessionConfig{Store: SessionStoreRedis},
		Redis:   RedisConfig{URI: "localhost:6379"},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Redis.URI = " "
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "REDIS_URI") {
		t.Fatalf("expected redis error, got %v", err)
	}
	cfg.Redis.URI = "localhost:6379"

	cfg.Audit.Enabled = true
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "DB_HOST") {
		t.Fatalf("expected database error, got %v", err)
	}
	cfg.Postgres.Host = "db"

	cfg.Session.EncryptionKey = strings.Repeat("ab", 32)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("hex session key must validate: %v", err)
	}
	cfg.Session.EncryptionKey = "short"

	cfg.Backend.BaseURL = "nope"
	cfg.HTTP.CookieDomain = "co.uk"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"BACKEND_BASE_URL", "APP_COOKIE_DOMAIN", "SESSION_ENCRYPTION_KEY"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: "  ",
		Prefix:        " .clinic. ",
	}
	cfg.Sanitize()

	if cfg.Enabled {
		t.Fatalf("expected metrics disabled when address empty")
	}
	if cfg.IsEnabled() {
		t.Fatalf("IsEnabled should be false when disabled")
	}
	if cfg.Prefix != "clinic" {
		t.Fatalf("unexpected prefix %q", cfg.Prefix)
	}

	cfg = ObservabilityMetricsConfig{Enabled: true, StatsdAddress: " 127.0.0.1:8125 "}
	cfg.Sanitize()
	if !cfg.IsEnabled() || cfg.StatsdAddress != "127.0.0.1:8125" {
		t.Fatalf("unexpected metrics config: %#v", cfg)
	}
}

func TestLoggingConfig(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		c := LoggingConfig{Level: in}
		c.Sanitize()
		if got := c.SlogLevel(); got != want {
			t.Fatalf("level %q: expected %v, got %v", in, want, got)
		}
	}
}

func TestDBConfig_DSN(t *testing.T) {
	cfg := DBConfig{Host: "db", Port: 5433, User: "audit", Password: "p@ss/word", Name: "clinic", SSLMode: "require"}
	want := "postgres://audit:p%40ss%2Fword@db:5433/clinic?sslmode=require"
	if got := cfg.DSN(); got != want {
		t.Fatalf("DSN() = %q, want %q", got, want)
	}
}
