// Package cache provides compute-on-miss caching with TTL over pluggable stores.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// NoExpiry marks an entry that never expires.
const NoExpiry time.Duration = 0

// DefaultFetchTimeout bounds a shared producer call when no other timeout is set.
const DefaultFetchTimeout = 2 * time.Minute

// Store is a byte-oriented key/value store with per-entry expiry.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key; ok is false on a miss or an expired entry.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores value under key. ttl <= 0 means the entry never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Producer computes a value on a cache miss.
type Producer func(ctx context.Context) ([]byte, error)

type backend interface {
	remember(ctx context.Context, key string, ttl time.Duration, fn Producer) ([]byte, error)
	forget(ctx context.Context, key string) error
	close() error
}

// Cache implements remember semantics over a backend. Concurrent misses for
// the same key share a single producer call. The shared call runs detached
// from any one caller, so a caller giving up does not fail the others.
type Cache struct {
	backend      backend
	group        singleflight.Group
	fetchTimeout time.Duration
	logger       *slog.Logger
}

// New wraps store.
func New(store Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return newCache(&storeBackend{store: store, logger: logger}, logger)
}

func newCache(b backend, logger *slog.Logger) *Cache {
	return &Cache{backend: b, fetchTimeout: DefaultFetchTimeout, logger: logger}
}

// SetFetchTimeout bounds each shared producer call. Non-positive values
// restore DefaultFetchTimeout.
func (c *Cache) SetFetchTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultFetchTimeout
	}
	c.fetchTimeout = d
}

// Remember returns the cached value for key, or calls fn, keeps its result
// for ttl and returns it. Producer errors are returned and nothing is kept.
// A caller whose ctx ends while waiting gets ctx.Err(); the shared call keeps
// running for the remaining waiters.
func (c *Cache) Remember(ctx context.Context, key string, ttl time.Duration, fn Producer) ([]byte, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		return c.backend.remember(fetchCtx, key, ttl, fn)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		v, _ := res.Val.([]byte)
		return v, nil
	}
}

// Forget removes key.
func (c *Cache) Forget(ctx context.Context, key string) error {
	return c.backend.forget(ctx, key)
}

// Close releases the underlying storage.
func (c *Cache) Close() error {
	return c.backend.close()
}

// storeBackend keeps values in a Store. Store failures degrade to calling
// the producer directly.
type storeBackend struct {
	store  Store
	logger *slog.Logger
}

func (b *storeBackend) remember(ctx context.Context, key string, ttl time.Duration, fn Producer) ([]byte, error) {
	if v, ok, err := b.store.Get(ctx, key); err != nil {
		b.logger.Warn("cache: get failed", slog.String("key", key), slog.String("error", err.Error()))
	} else if ok {
		b.logger.Debug("cache: hit", slog.String("key", key))
		return v, nil
	}

	value, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	if err := b.store.Set(ctx, key, value, ttl); err != nil {
		b.logger.Warn("cache: set failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	b.logger.Debug("cache: miss", slog.String("key", key))
	return value, nil
}

func (b *storeBackend) forget(ctx context.Context, key string) error {
	return b.store.Delete(ctx, key)
}

func (b *storeBackend) close() error {
	return b.store.Close()
}

// RememberJSON is Remember for values that round-trip through JSON.
func RememberJSON[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	data, err := c.Remember(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return out, nil
}
