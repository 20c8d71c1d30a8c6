package blog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/starford/blogit/internal/apperr"
	"github.com/starford/blogit/internal/models"
	"github.com/starford/blogit/internal/source"
)

// ErrorPolicy decides what a build does with a document that cannot be turned
// into an article.
type ErrorPolicy string

const (
	// PolicySkip logs the failure and leaves the document out.
	PolicySkip ErrorPolicy = "skip"
	// PolicyAbort fails the whole build.
	PolicyAbort ErrorPolicy = "abort"
)

// BuilderOptions configures a Builder. Zero values select the defaults.
type BuilderOptions struct {
	Dir               string
	Extension         string        // default ".md"
	Workers           int           // default 4
	RequestsPerSecond float64       // <= 0 disables rate limiting
	CallTimeout       time.Duration // per remote call, 0 = none
	Timeout           time.Duration // whole build, 0 = none
	OnError           ErrorPolicy   // default PolicySkip
	UniqueSlugs       bool
}

// Builder fetches every document under a directory and links the resulting
// articles into a Collection.
type Builder struct {
	src     source.Source
	factory *Factory
	opts    BuilderOptions
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewBuilder creates a builder reading from src.
func NewBuilder(src source.Source, factory *Factory, opts BuilderOptions, logger *slog.Logger) *Builder {
	if opts.Extension == "" {
		opts.Extension = ".md"
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.OnError == "" {
		opts.OnError = PolicySkip
	}
	if logger == nil {
		logger = slog.Default()
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Workers)
	}
	return &Builder{src: src, factory: factory, opts: opts, limiter: limiter, logger: logger}
}

// Build lists the directory, fetches and parses each document concurrently,
// then links the articles in listing order.
func (b *Builder) Build(ctx context.Context) (*Collection, error) {
	runID := uuid.NewString()
	logger := b.logger.With(slog.String("run_id", runID), slog.String("dir", b.opts.Dir))
	start := time.Now()

	if b.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.Timeout)
		defer cancel()
	}

	entries, err := b.list(ctx)
	if err != nil {
		return nil, fmt.Errorf("blog: build: %w", err)
	}
	logger.Debug("build: listed", slog.Int("documents", len(entries)))

	slots := make([]*models.Article, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for i, e := range entries {
		g.Go(func() error {
			a, err := b.fetch(gctx, e)
			if err == nil {
				slots[i] = a
				return nil
			}
			if apperr.IsDocumentFault(err) && b.opts.OnError == PolicySkip {
				logger.Warn("build: document skipped", slog.String("path", e.Path), slog.String("error", err.Error()))
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("blog: build: %w", err)
	}

	articles := make([]*models.Article, 0, len(slots))
	for _, a := range slots {
		if a != nil {
			articles = append(articles, a)
		}
	}

	if err := b.checkSlugs(articles, logger); err != nil {
		return nil, fmt.Errorf("blog: build: %w", err)
	}

	c := NewCollection(articles)
	logger.Info("build: done",
		slog.Int("articles", c.Len()),
		slog.Int("skipped", len(entries)-c.Len()),
		slog.Duration("elapsed", time.Since(start)),
	)
	return c, nil
}

func (b *Builder) list(ctx context.Context) ([]models.Entry, error) {
	var entries []models.Entry
	err := b.call(ctx, func(ctx context.Context) error {
		var err error
		entries, err = b.src.ListDirectory(ctx, b.opts.Dir)
		return err
	})
	if err != nil {
		return nil, apperr.NewRemoteSourceError(source.OpList, b.opts.Dir, err)
	}

	out := entries[:0:0]
	for _, e := range entries {
		if e.Type == models.EntryTypeFile && strings.HasSuffix(e.Name, b.opts.Extension) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (b *Builder) fetch(ctx context.Context, e models.Entry) (*models.Article, error) {
	var file *models.RemoteFile
	err := b.call(ctx, func(ctx context.Context) error {
		var err error
		file, err = b.src.GetFile(ctx, e.Path)
		return err
	})
	if err != nil {
		return nil, apperr.NewRemoteSourceError(source.OpGetFile, e.Path, err)
	}

	var commits []models.Commit
	err = b.call(ctx, func(ctx context.Context) error {
		var err error
		commits, err = b.src.GetCommits(ctx, e.Path)
		return err
	})
	if err != nil {
		return nil, apperr.NewRemoteSourceError(source.OpCommits, e.Path, err)
	}

	return b.factory.Make(*file, commits)
}

// call waits for the rate limiter and runs fn under the per-call timeout.
func (b *Builder) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	if b.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.CallTimeout)
		defer cancel()
	}
	return fn(ctx)
}

func (b *Builder) checkSlugs(articles []*models.Article, logger *slog.Logger) error {
	seen := make(map[string]string, len(articles))
	for _, a := range articles {
		first, dup := seen[a.Slug]
		if !dup {
			seen[a.Slug] = a.Path
			continue
		}
		if b.opts.UniqueSlugs {
			return fmt.Errorf("%q used by %s and %s: %w", a.Slug, first, a.Path, apperr.ErrDuplicateSlug)
		}
		logger.Warn("build: slug shadowed",
			slog.String("slug", a.Slug),
			slog.String("path", a.Path),
			slog.String("shadowed_by", first),
		)
	}
	return nil
}
