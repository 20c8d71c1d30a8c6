package source

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/blogit/internal/apperr"
	"github.com/starford/blogit/internal/cache"
	"github.com/starford/blogit/internal/models"
)

// Cache key namespaces.
const (
	keyListing = "listing:"
	keyFile    = "file:"
	keyDoc     = "doc:"
)

// Cached decorates a Source with a cache. Listings and file lookups without a
// known sha are kept for ttl. Once a listing has reported a file's sha, the
// file and its commit history are keyed by that sha and path and never
// expire: new content means a new sha and therefore a new key. Files with
// identical content at different paths keep separate entries.
type Cached struct {
	next   Source
	cache  *cache.Cache
	ttl    time.Duration
	logger *slog.Logger

	mu   sync.RWMutex
	shas map[string]string // path -> sha from the latest listing
}

// NewCached wraps next.
func NewCached(next Source, c *cache.Cache, ttl time.Duration, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{
		next:   next,
		cache:  c,
		ttl:    ttl,
		logger: logger,
		shas:   make(map[string]string),
	}
}

// ListDirectory implements Source.
func (c *Cached) ListDirectory(ctx context.Context, path string) ([]models.Entry, error) {
	entries, err := cache.RememberJSON(ctx, c.cache, keyListing+path, c.ttl, func(ctx context.Context) ([]models.Entry, error) {
		return c.next.ListDirectory(ctx, path)
	})
	if err != nil {
		return nil, apperr.NewRemoteSourceError(OpList, path, err)
	}

	c.mu.Lock()
	for _, e := range entries {
		if e.SHA != "" {
			c.shas[e.Path] = e.SHA
		}
	}
	c.mu.Unlock()
	return entries, nil
}

func (c *Cached) docKey(path, kind string) (string, time.Duration) {
	c.mu.RLock()
	sha, ok := c.shas[path]
	c.mu.RUnlock()
	if ok {
		return keyDoc + sha + ":" + path + ":" + kind, cache.NoExpiry
	}
	return keyFile + path + ":" + kind, c.ttl
}

// GetFile implements Source.
func (c *Cached) GetFile(ctx context.Context, path string) (*models.RemoteFile, error) {
	key, ttl := c.docKey(path, "file")
	file, err := cache.RememberJSON(ctx, c.cache, key, ttl, func(ctx context.Context) (*models.RemoteFile, error) {
		return c.next.GetFile(ctx, path)
	})
	if err != nil {
		return nil, apperr.NewRemoteSourceError(OpGetFile, path, err)
	}
	return file, nil
}

// GetCommits implements Source.
func (c *Cached) GetCommits(ctx context.Context, path string) ([]models.Commit, error) {
	key, ttl := c.docKey(path, "commits")
	commits, err := cache.RememberJSON(ctx, c.cache, key, ttl, func(ctx context.Context) ([]models.Commit, error) {
		return c.next.GetCommits(ctx, path)
	})
	if err != nil {
		return nil, apperr.NewRemoteSourceError(OpCommits, path, err)
	}
	return commits, nil
}

// Invalidate drops the cached listing for path so the next build refetches it.
func (c *Cached) Invalidate(ctx context.Context, path string) error {
	c.logger.Debug("cache: invalidate listing", slog.String("path", path))
	return c.cache.Forget(ctx, keyListing+path)
}
