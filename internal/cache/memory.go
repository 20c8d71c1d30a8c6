package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	repocache "github.com/goliatone/go-repository-cache/cache"
)

// durableTTL stands in for NoExpiry; in-process services need a positive ttl.
const durableTTL = 100 * 365 * 24 * time.Hour

// memoryBackend keeps values in process, one read-through service per ttl.
type memoryBackend struct {
	cfg    repocache.Config
	logger *slog.Logger

	mu       sync.Mutex
	services map[time.Duration]repocache.CacheService
}

// NewMemory returns a Cache that keeps values in process memory.
// Entries are capacity-bounded and dropped when their ttl passes.
func NewMemory(logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := repocache.DefaultConfig()
	cfg.NumShards = 16
	cfg.EarlyRefresh = nil
	cfg.MissingRecordStorage = false
	cfg.TTL = durableTTL
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &memoryBackend{
		cfg:      cfg,
		logger:   logger,
		services: make(map[time.Duration]repocache.CacheService),
	}
	return newCache(b, logger), nil
}

func (b *memoryBackend) service(ttl time.Duration) (repocache.CacheService, error) {
	if ttl <= 0 {
		ttl = durableTTL
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if svc, ok := b.services[ttl]; ok {
		return svc, nil
	}
	cfg := b.cfg
	cfg.TTL = ttl
	svc, err := repocache.NewCacheService(cfg)
	if err != nil {
		return nil, err
	}
	b.services[ttl] = svc
	return svc, nil
}

func (b *memoryBackend) remember(ctx context.Context, key string, ttl time.Duration, fn Producer) ([]byte, error) {
	svc, err := b.service(ttl)
	if err != nil {
		b.logger.Warn("cache: memory service unavailable", slog.String("key", key), slog.String("error", err.Error()))
		return fn(ctx)
	}
	return repocache.GetOrFetch(ctx, svc, key, repocache.FetchFn[[]byte](fn))
}

func (b *memoryBackend) forget(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var errs []error
	for _, svc := range b.services {
		errs = append(errs, svc.Delete(ctx, key))
	}
	return errors.Join(errs...)
}

func (b *memoryBackend) close() error {
	b.mu.Lock()
	b.services = make(map[time.Duration]repocache.CacheService)
	b.mu.Unlock()
	return nil
}
