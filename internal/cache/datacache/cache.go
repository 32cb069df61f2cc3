// Package datacache keeps decoded datasets in memory behind a bounded LRU
// with a freshness TTL. Concurrent loads of one key collapse into a single
// call, and a failed reload never evicts the last good value.
package datacache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/mohammed-shakir/obras-dashboard/internal/core/observability"
)

// LoadFunc produces the value for key.
type LoadFunc[V any] func(ctx context.Context, key string) (V, error)

// Entry is a cached value with its bookkeeping.
type Entry[V any] struct {
	Value    V
	LoadedAt time.Time
	// LastErr is the error of the most recent failed reload, cleared on the
	// next success.
	LastErr error
}

type Cache[V any] struct {
	mu     sync.Mutex
	lru    *lru.Cache[string, Entry[V]]
	ttl    time.Duration
	load   LoadFunc[V]
	sf     singleflight.Group
	logger *slog.Logger
	now    func() time.Time
}

type Option[V any] func(*Cache[V])

// WithTTL sets how long a value is served before Get reloads it. Zero
// disables expiry.
func WithTTL[V any](d time.Duration) Option[V] {
	return func(c *Cache[V]) { c.ttl = d }
}

func WithLogger[V any](l *slog.Logger) Option[V] {
	return func(c *Cache[V]) {
		if l != nil {
			c.logger = l
		}
	}
}

func withClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) { c.now = now }
}

func New[V any](size int, load LoadFunc[V], opts ...Option[V]) (*Cache[V], error) {
	if load == nil {
		return nil, errors.New("datacache: load func is required")
	}
	if size <= 0 {
		size = 32
	}
	l, err := lru.New[string, Entry[V]](size)
	if err != nil {
		return nil, fmt.Errorf("datacache: %w", err)
	}
	c := &Cache[V]{lru: l, load: load, logger: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Cache[V]) fresh(e Entry[V]) bool {
	return c.ttl <= 0 || c.now().Sub(e.LoadedAt) < c.ttl
}

// Get returns the cached value for key, loading it when absent or expired.
// When a reload of an expired value fails, the stale value is returned
// together with a nil error and the failure is kept in Peek's LastErr.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, error) {
	if e, ok := c.lru.Get(key); ok && c.fresh(e) {
		observability.IncCacheHit("memory")
		return e.Value, nil
	}
	observability.IncCacheMiss("memory")
	e, err := c.reload(ctx, key)
	if IsStale(err) {
		return e.Value, nil
	}
	return e.Value, err
}

// Refresh reloads key unconditionally. On failure the previous value stays
// cached and the error is returned.
func (c *Cache[V]) Refresh(ctx context.Context, key string) (Entry[V], error) {
	return c.reload(ctx, key)
}

// RefreshAll reloads every key, continuing past failures. The returned map
// holds the error per key; nil means success.
func (c *Cache[V]) RefreshAll(ctx context.Context, keys []string) map[string]error {
	out := make(map[string]error, len(keys))
	for _, k := range keys {
		_, err := c.reload(ctx, k)
		out[k] = err
	}
	return out
}

// Invalidate drops key without reloading.
func (c *Cache[V]) Invalidate(key string) bool {
	return c.lru.Remove(key)
}

// Peek returns the entry for key without loading or touching recency.
func (c *Cache[V]) Peek(key string) (Entry[V], bool) {
	return c.lru.Peek(key)
}

func (c *Cache[V]) Keys() []string { return c.lru.Keys() }

func (c *Cache[V]) Len() int { return c.lru.Len() }

func (c *Cache[V]) reload(ctx context.Context, key string) (Entry[V], error) {
	// the shared call must not die with the first caller's request
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := c.sf.Do(key, func() (any, error) {
		start := time.Now()
		val, lerr := c.load(loadCtx, key)
		observability.ObserveCacheOp("load", lerr, time.Since(start).Seconds())

		c.mu.Lock()
		defer c.mu.Unlock()
		prev, had := c.lru.Peek(key)
		if lerr != nil {
			if had {
				prev.LastErr = lerr
				c.lru.Add(key, prev)
				c.logger.WarnContext(ctx, "reload failed, serving last good value",
					"key", key, "loaded_at", prev.LoadedAt, "err", lerr)
			}
			return prev, lerr
		}
		e := Entry[V]{Value: val, LoadedAt: c.now()}
		c.lru.Add(key, e)
		return e, nil
	})
	e, _ := v.(Entry[V])
	if err != nil {
		if e.LoadedAt.IsZero() {
			return e, err
		}
		// stale but usable
		return e, &StaleError{Key: key, Err: err}
	}
	return e, nil
}

// StaleError reports a failed reload while an older value is still cached.
type StaleError struct {
	Key string
	Err error
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("reload %s: %v (serving previous value)", e.Key, e.Err)
}

func (e *StaleError) Unwrap() error { return e.Err }

// IsStale reports whether err carries a usable previous value.
func IsStale(err error) bool {
	var se *StaleError
	return errors.As(err, &se)
}
