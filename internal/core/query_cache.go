package core

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// QueryCache caches upstream GET results per browser session so repeated
// navigation within the stale window does not hit the clinical API.
// A nil *QueryCache is valid and caches nothing.
type QueryCache struct {
	cache  CacheRepository
	logger *slog.Logger
	prefix string
}

// QueryCacheOptions bundles dependencies for NewQueryCache.
type QueryCacheOptions struct {
	Cache  CacheRepository // Required
	Logger *slog.Logger    // Optional
	Prefix string          // Optional, defaults to "clinic:query:"
}

// CachedQuery identifies one cacheable upstream read.
type CachedQuery struct {
	SessionID string
	Path      string
	// TTL <= 0 disables caching for the query.
	TTL time.Duration
}

// NewQueryCache creates a QueryCache. It returns nil when no repository is given.
func NewQueryCache(opts QueryCacheOptions) *QueryCache {
	if opts.Cache == nil {
		return nil
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "clinic:query:"
	}
	return &QueryCache{cache: opts.Cache, logger: logger.With("component", "query_cache"), prefix: prefix}
}

// Key returns the cache key of path within a session.
func (q *QueryCache) Key(sessionID, path string) string {
	prefix := "clinic:query:"
	if q != nil {
		prefix = q.prefix
	}
	return prefix + sessionID + ":" + path
}

// Fetch returns the cached value of query or calls load and caches its result.
// Cache failures are logged and fall through to load.
func Fetch[T any](ctx context.Context, q *QueryCache, query CachedQuery, load func(context.Context) (T, error)) (T, error) {
	if q == nil || query.TTL <= 0 || query.SessionID == "" {
		return load(ctx)
	}

	key := q.Key(query.SessionID, query.Path)
	if raw, err := q.cache.Get(ctx, key); err != nil {
		q.logger.WarnContext(ctx, "query cache read failed", "path", query.Path, "error", err)
	} else if len(raw) > 0 {
		var cached T
		if decodeErr := json.Unmarshal(raw, &cached); decodeErr == nil {
			return cached, nil
		}
		q.drop(ctx, key)
	}

	out, err := load(ctx)
	if err != nil {
		return out, err
	}
	q.store(ctx, key, out, query.TTL)
	return out, nil
}

// Invalidate removes the cached results of paths for one session.
func (q *QueryCache) Invalidate(ctx context.Context, sessionID string, paths ...string) {
	if q == nil || sessionID == "" {
		return
	}
	for _, p := range paths {
		q.drop(ctx, q.Key(sessionID, p))
	}
}

func (q *QueryCache) store(ctx context.Context, key string, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		q.logger.WarnContext(ctx, "query cache encode failed", "error", err)
		return
	}
	if err := q.cache.Set(ctx, key, raw, ttl); err != nil {
		q.logger.WarnContext(ctx, "query cache write failed", "error", err)
	}
}

func (q *QueryCache) drop(ctx context.Context, key string) {
	if _, err := q.cache.Delete(ctx, key); err != nil {
		q.logger.WarnContext(ctx, "query cache delete failed", "error", err)
	}
}
