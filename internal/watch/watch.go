// Package watch keeps a blog collection fresh by rebuilding it when the
// article sources change.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last file event before a rebuild.
const DefaultDebounce = 200 * time.Millisecond

// Reason values passed to RebuildFunc.
const (
	ReasonInterval = "interval"
	ReasonChange   = "change"
)

// RebuildFunc rebuilds the collection. Errors are logged and watching continues.
type RebuildFunc func(ctx context.Context, reason string) error

// Options configures Run.
type Options struct {
	// Root is a local checkout to watch for changes. Empty disables file watching.
	Root string
	// Extension limits file events to matching names. Empty matches everything.
	Extension string
	// Interval triggers a rebuild periodically. Zero disables polling.
	Interval time.Duration
	Debounce time.Duration
}

// Run triggers rebuild on file changes under opts.Root and every
// opts.Interval until ctx is cancelled.
//
// Directories created at runtime are added to the watch list. Hidden
// directories such as .git are never watched.
func Run(ctx context.Context, opts Options, rebuild RebuildFunc, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	var events <-chan fsnotify.Event
	var errs <-chan error
	var w *fsnotify.Watcher
	if opts.Root != "" {
		var err error
		w, err = fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		defer w.Close()
		if err := addDirsRecursive(w, opts.Root); err != nil {
			return err
		}
		events, errs = w.Events, w.Errors
	}

	var tick <-chan time.Time
	if opts.Interval > 0 {
		ticker := time.NewTicker(opts.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	logger.Info("watch: started",
		slog.String("root", opts.Root),
		slog.Duration("interval", opts.Interval),
	)

	var debounce *time.Timer
	var debounceCh <-chan time.Time
	schedule := func() {
		if debounce == nil {
			debounce = time.NewTimer(opts.Debounce)
			debounceCh = debounce.C
		} else {
			debounce.Reset(opts.Debounce)
		}
	}

	run := func(reason string) {
		if err := rebuild(ctx, reason); err != nil && ctx.Err() == nil {
			logger.Error("watch: rebuild failed", slog.String("reason", reason), slog.String("error", err.Error()))
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			logger.Info("watch: stopped")
			return nil

		case <-tick:
			run(ReasonInterval)

		case <-debounceCh:
			run(ReasonChange)

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if !hidden(info.Name()) {
						if err := addDirsRecursive(w, ev.Name); err != nil {
							logger.Warn("watch: add new dir failed", slog.String("path", ev.Name), slog.String("error", err.Error()))
						}
						schedule()
					}
					continue
				}
			}
			if ev.Op == fsnotify.Chmod || !matches(ev.Name, opts.Extension) {
				continue
			}
			logger.Debug("watch: change", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			schedule()

		case err, ok := <-errs:
			if !ok {
				return nil
			}
			logger.Error("watch: error", slog.String("error", err.Error()))
		}
	}
}

func matches(name, ext string) bool {
	base := filepath.Base(name)
	if hidden(base) {
		return false
	}
	return ext == "" || strings.HasSuffix(base, ext)
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// addDirsRecursive adds root and all its visible subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && hidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
