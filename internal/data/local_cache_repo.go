package data

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/target/clinic-portal/internal/core"
)

var _ core.CacheRepository = (*LocalCacheRepo)(nil)

// LocalCacheRepo is an in-process LRU with per-entry TTL. It backs the query
// cache when Redis is not configured. Safe for concurrent use.
type LocalCacheRepo struct {
	mu     sync.Mutex
	cap    int
	ll     *list.List // front = most recently used
	items  map[string]*list.Element
	now    func() time.Time
	hits   atomic.Uint64
	misses atomic.Uint64
	evicts atomic.Uint64
}

type cacheEntry struct {
	key    string
	value  []byte
	expiry time.Time // zero means no expiry
}

// LocalCacheConfig groups constructor options.
type LocalCacheConfig struct {
	Capacity int
	Now      func() time.Time
}

// LocalCacheStats are counters for the health endpoint and tests.
type LocalCacheStats struct {
	Hits, Misses, Evictions uint64
	Size, Capacity          int
}

const defaultLocalCacheCapacity = 1024

// NewLocalCacheRepo creates a LocalCacheRepo.
func NewLocalCacheRepo(cfg LocalCacheConfig) *LocalCacheRepo {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = defaultLocalCacheCapacity
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &LocalCacheRepo{
		cap:   capacity,
		ll:    list.New(),
		items: make(map[string]*list.Element, capacity),
		now:   nowFn,
	}
}

// Set inserts or replaces key. ttl <= 0 means no expiry.
func (c *LocalCacheRepo) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyCacheKey
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var exp time.Time
	if ttl > 0 {
		exp = c.now().Add(ttl)
	}
	stored := append([]byte(nil), value...)

	if el, ok := c.items[key]; ok {
		ent := el.Value.(*cacheEntry)
		ent.value = stored
		ent.expiry = exp
		c.ll.MoveToFront(el)
		return nil
	}

	c.items[key] = c.ll.PushFront(&cacheEntry{key: key, value: stored, expiry: exp})
	for c.ll.Len() > c.cap {
		c.remove(c.ll.Back())
		c.evicts.Add(1)
	}
	return nil
}

// Get returns the value for key, or nil when absent or expired.
func (c *LocalCacheRepo) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyCacheKey
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses.Add(1)
		return nil, nil
	}
	ent := el.Value.(*cacheEntry)
	if !ent.expiry.IsZero() && c.now().After(ent.expiry) {
		c.remove(el)
		c.misses.Add(1)
		return nil, nil
	}
	c.ll.MoveToFront(el)
	c.hits.Add(1)
	return append([]byte(nil), ent.value...), nil
}

// Delete removes key and reports whether it was present.
func (c *LocalCacheRepo) Delete(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyCacheKey
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false, nil
	}
	c.remove(el)
	return true, nil
}

// Health always succeeds.
func (c *LocalCacheRepo) Health(context.Context) error { return nil }

// Stats returns a snapshot of counters and sizes.
func (c *LocalCacheRepo) Stats() LocalCacheStats {
	c.mu.Lock()
	size := c.ll.Len()
	c.mu.Unlock()
	return LocalCacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evicts.Load(),
		Size:      size,
		Capacity:  c.cap,
	}
}

// remove requires c.mu.
func (c *LocalCacheRepo) remove(el *list.Element) {
	if el == nil {
		return
	}
	c.ll.Remove(el)
	delete(c.items, el.Value.(*cacheEntry).key)
}
