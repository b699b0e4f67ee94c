package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// DBConfig contains PostgreSQL database configuration. It is only used when
// the audit trail is enabled.
type DBConfig struct {
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"clinic"`
	Password string `env:"PASSWORD"                envDefault:"clinic"`
	Name     string `env:"NAME"                    envDefault:"clinic_portal"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// DSN renders the pgx connection URL. Credentials are escaped by url.URL.
func (c DBConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}

func (r RedisConfig) configured() bool {
	switch {
	case r.UseCluster:
		return len(r.ClusterNodes) > 0
	case r.UseSentinel:
		return len(r.SentinelNodes) > 0
	default:
		return strings.TrimSpace(r.URI) != ""
	}
}

// CacheBackend selects the query cache implementation.
type CacheBackend string

const (
	// CacheBackendLocal is an in-process LRU.
	CacheBackendLocal CacheBackend = "local"
	// CacheBackendRedis shares cached reads between replicas.
	CacheBackendRedis CacheBackend = "redis"
	// CacheBackendNone disables caching of upstream reads.
	CacheBackendNone CacheBackend = "none"
)

// UnmarshalText implements encoding.TextUnmarshaler for CacheBackend.
func (b *CacheBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "local", "redis", "none":
		*b = CacheBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid CacheBackend: %q (valid options: local, redis, none)", v)
	}
}

// CacheConfig controls the per-session cache of upstream reads.
type CacheConfig struct {
	Backend CacheBackend `env:"CACHE_BACKEND" envDefault:"local"`

	// LocalCapacity bounds the in-process LRU.
	LocalCapacity int `env:"CACHE_LOCAL_CAPACITY" envDefault:"10000"`

	// KeyPrefix namespaces cache keys.
	KeyPrefix string `env:"CACHE_KEY_PREFIX" envDefault:"clinic:query:"`
}

// Sanitize applies guardrails to cache settings.
func (c *CacheConfig) Sanitize() {
	if c.Backend == "" {
		c.Backend = CacheBackendLocal
	}
	if c.LocalCapacity <= 0 {
		c.LocalCapacity = 10000
	}
	if strings.TrimSpace(c.KeyPrefix) == "" {
		c.KeyPrefix = "clinic:query:"
	}
}
