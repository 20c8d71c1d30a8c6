// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/blogit/internal/apperr"
	"github.com/starford/blogit/internal/blog"
	"github.com/starford/blogit/internal/cache"
	"github.com/starford/blogit/internal/models"
	"github.com/starford/blogit/internal/parser"
	"github.com/starford/blogit/internal/source"
	"github.com/starford/blogit/internal/storage"
	"github.com/starford/blogit/internal/watch"
)

// ErrRateLimitUnsupported is returned by RateLimit for sources without an API quota.
var ErrRateLimitUnsupported = errors.New("rate limit is only available for the github source")

// App is a configured blog pipeline.
type App struct {
	cfg     *Config
	logger  *slog.Logger
	out     io.Writer
	cache   *cache.Cache
	cached  *source.Cached
	github  *source.GitHub
	builder *blog.Builder

	mu      sync.RWMutex
	current *blog.Collection
}

// New wires the source, cache and builder described by the configuration.
func New(opts ...Option) (*App, error) {
	a := &application{}
	for _, opt := range opts {
		opt(a)
	}
	if a.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := a.config
	if a.output == nil {
		a.output = os.Stdout
	}
	if a.logOutput == nil {
		a.logOutput = os.Stderr
	}

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded", slog.Any("config", *cfg))

	app := &App{cfg: cfg, logger: logger, out: a.output}

	src := a.source
	if src == nil {
		var err error
		if src, err = app.openSource(a.executor); err != nil {
			return nil, err
		}
	}

	if cfg.Cache.Enabled {
		c, err := openCache(cfg.Cache, logger)
		if err != nil {
			return nil, err
		}
		c.SetFetchTimeout(cfg.Build.CallTimeout)
		app.cache = c
		app.cached = source.NewCached(src, c, cfg.Cache.ListingTTL, logger)
		src = app.cached
	}

	factory := blog.NewFactory(parser.New(nil), models.ArticleOptions{
		WebURL:      cfg.Source.GitHub.WebURL,
		User:        cfg.Source.GitHub.User,
		Repository:  cfg.Source.GitHub.Repository,
		Branch:      cfg.Source.GitHub.Branch,
		ArticlesDir: cfg.Source.ArticlesDir,
	})
	app.builder = blog.NewBuilder(src, factory, blog.BuilderOptions{
		Dir:               cfg.Source.ArticlesDir,
		Extension:         cfg.Source.Extension,
		Workers:           cfg.Build.Workers,
		RequestsPerSecond: cfg.Build.RequestsPerSecond,
		CallTimeout:       cfg.Build.CallTimeout,
		Timeout:           cfg.Build.Timeout,
		OnError:           blog.ErrorPolicy(cfg.Build.OnError),
		UniqueSlugs:       cfg.Build.UniqueSlugs,
	}, logger)

	return app, nil
}

func (app *App) openSource(executor source.CommandExecutor) (source.Source, error) {
	cfg := app.cfg.Source
	switch cfg.Driver {
	case SourceDriverLocal:
		store, err := storage.NewFS(cfg.Local.Path)
		if err != nil {
			return nil, fmt.Errorf("init local source: %w", err)
		}
		return source.NewLocal(store, source.LocalOptions{
			WebURL:     cfg.GitHub.WebURL,
			User:       cfg.GitHub.User,
			Repository: cfg.GitHub.Repository,
			Branch:     cfg.GitHub.Branch,
			Executor:   executor,
		}), nil
	default:
		gh, err := source.NewGitHub(source.GitHubOptions{
			Token:      cfg.GitHub.Token,
			User:       cfg.GitHub.User,
			Repository: cfg.GitHub.Repository,
			Branch:     cfg.GitHub.Branch,
			BaseURL:    cfg.GitHub.BaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("init github source: %w", err)
		}
		app.github = gh
		return gh, nil
	}
}

func openCache(cfg CacheConfig, logger *slog.Logger) (*cache.Cache, error) {
	if cfg.Driver == CacheDriverMemory {
		c, err := cache.NewMemory(logger)
		if err != nil {
			return nil, fmt.Errorf("init cache: %w", err)
		}
		return c, nil
	}
	store, err := cache.OpenSQLite(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}
	purged, err := store.Purge(context.Background())
	if err != nil {
		logger.Warn("cache purge failed", slog.String("error", err.Error()))
	} else if purged > 0 {
		logger.Debug("cache purged", slog.Int64("entries", purged))
	}
	return cache.New(store, logger), nil
}

// Close releases the cache.
func (app *App) Close() error {
	if app.cache == nil {
		return nil
	}
	return app.cache.Close()
}

// Collection builds the collection and keeps it as the current one.
func (app *App) Collection(ctx context.Context) (*blog.Collection, error) {
	c, err := app.builder.Build(ctx)
	if err != nil {
		return nil, err
	}
	app.mu.Lock()
	app.current = c
	app.mu.Unlock()
	return c, nil
}

// Current returns the most recently built collection, nil before the first build.
func (app *App) Current() *blog.Collection {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.current
}

// Build builds once and writes a summary of every article.
func (app *App) Build(ctx context.Context) error {
	c, err := app.Collection(ctx)
	if err != nil {
		return err
	}
	return writeJSON(app.out, newBuildSummary(c, time.Now()))
}

// Show builds and writes the article with the given slug.
func (app *App) Show(ctx context.Context, slug string) error {
	c, err := app.Collection(ctx)
	if err != nil {
		return err
	}
	a, ok := c.BySlug(slug)
	if !ok {
		return fmt.Errorf("article %q: %w", slug, apperr.ErrNotFound)
	}
	return writeJSON(app.out, newArticleDetail(c, a, time.Now()))
}

// Tags builds and writes the tag index.
func (app *App) Tags(ctx context.Context) error {
	c, err := app.Collection(ctx)
	if err != nil {
		return err
	}
	return writeJSON(app.out, c.Tags())
}

// RateLimit writes the GitHub core API quota.
func (app *App) RateLimit(ctx context.Context) error {
	if app.github == nil {
		return ErrRateLimitUnsupported
	}
	rl, err := app.github.RateLimit(ctx)
	if err != nil {
		return err
	}
	return writeJSON(app.out, rl)
}

func (app *App) rebuild(ctx context.Context, reason string) error {
	if app.cached != nil {
		if err := app.cached.Invalidate(ctx, app.cfg.Source.ArticlesDir); err != nil {
			app.logger.Warn("listing invalidation failed", slog.String("error", err.Error()))
		}
	}
	c, err := app.Collection(ctx)
	if err != nil {
		return err
	}
	app.logger.Info("Collection rebuilt", slog.String("reason", reason), slog.Int("articles", c.Len()))
	return nil
}

// Watch builds once, then rebuilds on changes until ctx is cancelled or a
// shutdown signal arrives.
func (app *App) Watch(ctx context.Context) error {
	logger := app.logger

	if _, err := app.Collection(ctx); err != nil {
		return fmt.Errorf("initial build: %w", err)
	}

	opts := watch.Options{
		Extension: app.cfg.Source.Extension,
		Interval:  app.cfg.Watch.Interval,
	}
	if app.cfg.Source.Driver == SourceDriverLocal {
		opts.Root = app.cfg.Source.Local.Path
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return watch.Run(gCtx, opts, app.rebuild, logger)
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Watcher stopped successfully")
	return nil
}

// Run starts the application in watch mode with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := New(opts...)
	if err != nil {
		return err
	}
	defer app.Close()
	return app.Watch(ctx)
}
