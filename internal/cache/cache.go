// Package cache provides an in-memory key/value store with per-entry TTL
// and single-flight de-duplication of concurrent fetches.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"marketpulse/internal/observability"
)

// entry holds one cached value with its expiry horizon.
type entry struct {
	value     any
	fetchedAt time.Time
	ttl       time.Duration
}

// expired reports whether the entry is past its TTL at time now.
func (e *entry) expired(now time.Time) bool {
	return now.After(e.fetchedAt.Add(e.ttl))
}

// FetchFunc produces a value for a cache miss.
type FetchFunc func(ctx context.Context) (any, error)

// Cache is a TTL key/value store. Eviction is passive: staleness is checked
// on read, and an optional janitor sweeps expired entries for memory bounding.
// Values are stored and returned as-is; callers must not retain pointers into
// mutable state they hand to Set.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	group   singleflight.Group
	metrics *observability.Metrics

	stopJanitor chan struct{}
	janitorOnce sync.Once

	// clock is overridable for tests.
	clock func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithSweepInterval starts a background janitor that removes expired
// entries every interval. Without it, eviction is purely passive.
func WithSweepInterval(interval time.Duration) Option {
	return func(c *Cache) {
		c.stopJanitor = make(chan struct{})
		go c.sweepLoop(interval)
	}
}

// WithMetrics records every read as a hit or miss.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// New creates an empty Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value for key. A value past its TTL is a miss.
func (c *Cache) Get(key string) (any, bool) {
	v, ok := c.get(key)
	c.metrics.ObserveCacheRead(ok)
	return v, ok
}

// get is Get without the hit/miss accounting, for internal re-checks.
func (c *Cache) get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if e.expired(c.clock()) {
		// Passive eviction on read.
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur == e {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the given TTL.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = &entry{value: value, fetchedAt: c.clock(), ttl: ttl}
	c.mu.Unlock()
}

// GetOrFetch returns the cached value for key, or invokes fetch on a miss
// and stores the result with the given TTL. A fetch returning a zero or
// empty value is still cached, so a failing upstream is not hammered.
// Concurrent callers for the same key share one in-flight fetch.
func (c *Cache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check under the flight: another caller may have just stored it.
		// Unmetered, so one logical read is not counted twice.
		if v, ok := c.get(key); ok {
			return v, nil
		}
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, v, ttl)
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Len returns the number of entries currently held, including expired
// entries not yet swept.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the janitor, if one was started.
func (c *Cache) Close() {
	if c.stopJanitor != nil {
		c.janitorOnce.Do(func() { close(c.stopJanitor) })
	}
}

// sweepLoop removes expired entries every interval until Close.
func (c *Cache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopJanitor:
			return
		case <-ticker.C:
			now := c.clock()
			c.mu.Lock()
			for k, e := range c.entries {
				if e.expired(now) {
					delete(c.entries, k)
				}
			}
			c.mu.Unlock()
		}
	}
}

// Fetch is a typed convenience wrapper over GetOrFetch.
func Fetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fetch func(ctx context.Context) (T, error)) (T, error) {
	v, err := c.GetOrFetch(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		var zero T
		return zero, nil
	}
	return typed, nil
}
