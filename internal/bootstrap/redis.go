package bootstrap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/target/clinic-portal/config"
)

type redisMode int

const (
	redisDirect redisMode = iota
	redisSentinel
	redisCluster
)

// redisTarget is the resolved connection shape for one of the three Redis modes.
type redisTarget struct {
	mode       redisMode
	addrs      []string
	master     string
	username   string
	password   string
	sentinelPW string
	tls        *tls.Config
}

// describe returns a log-safe address description without credentials.
func (t redisTarget) describe() string {
	switch t.mode {
	case redisCluster:
		return "cluster:" + strings.Join(t.addrs, ",")
	case redisSentinel:
		return "sentinel:" + t.master
	default:
		return strings.Join(t.addrs, ",")
	}
}

// resolveRedisTarget turns RedisConfig into a redisTarget. REDIS_URI may be a
// bare host:port or a redis:// / rediss:// URL; in cluster mode it stands in
// for an empty REDIS_CLUSTER_NODES.
func resolveRedisTarget(cfg config.RedisConfig) (redisTarget, error) {
	t := redisTarget{password: cfg.Password}
	uri := strings.TrimSpace(cfg.URI)

	switch {
	case cfg.UseSentinel && !cfg.UseCluster:
		t.mode = redisSentinel
		t.addrs = trimNonEmpty(cfg.SentinelNodes)
		t.master = cfg.SentinelMasterName
		t.sentinelPW = cfg.SentinelPassword
		if len(t.addrs) == 0 {
			return redisTarget{}, errors.New("redis sentinel mode requires REDIS_SENTINEL_NODES")
		}
		return t, nil
	case cfg.UseCluster:
		t.mode = redisCluster
		t.addrs = trimNonEmpty(cfg.ClusterNodes)
		if len(t.addrs) > 0 {
			return t, nil
		}
	default:
		t.mode = redisDirect
	}

	if uri == "" {
		return redisTarget{}, errors.New("redis requires REDIS_URI or cluster nodes")
	}
	if !strings.HasPrefix(uri, "redis://") && !strings.HasPrefix(uri, "rediss://") {
		t.addrs = []string{uri}
		return t, nil
	}
	opt, err := redis.ParseURL(uri)
	if err != nil {
		return redisTarget{}, fmt.Errorf("parse REDIS_URI: %w", err)
	}
	t.addrs = []string{opt.Addr}
	t.username = opt.Username
	if opt.Password != "" {
		t.password = opt.Password
	}
	t.tls = opt.TLSConfig
	return t, nil
}

//nolint:ireturn // the concrete client depends on the configured mode.
func (t redisTarget) client() redis.UniversalClient {
	switch t.mode {
	case redisCluster:
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:     t.addrs,
			Username:  t.username,
			Password:  t.password,
			TLSConfig: t.tls,
		})
	case redisSentinel:
		return redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:       t.master,
			SentinelAddrs:    t.addrs,
			Password:         t.password,
			SentinelPassword: t.sentinelPW,
		})
	default:
		return redis.NewClient(&redis.Options{
			Addr:      t.addrs[0],
			Username:  t.username,
			Password:  t.password,
			TLSConfig: t.tls,
		})
	}
}

// ConnectRedis connects to Redis in direct, sentinel or cluster mode and pings it.
//
//nolint:ireturn // the concrete client depends on the configured mode.
func ConnectRedis(cfg DatabaseConfig) (redis.UniversalClient, error) {
	target, err := resolveRedisTarget(cfg.RedisConfig)
	if err != nil {
		return nil, err
	}
	client := target.client()

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if pingErr := client.Ping(ctx).Err(); pingErr != nil {
		if closeErr := client.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close redis client: %w", closeErr))
		}
		return nil, fmt.Errorf("ping redis: %w", pingErr)
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("redis connected", "addr", target.describe())
	}
	return client, nil
}

func trimNonEmpty(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
