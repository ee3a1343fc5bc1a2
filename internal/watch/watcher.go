// Package watch observes a content tree and reports Markdown changes in
// debounced batches.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period that closes a batch of changes.
const DefaultDebounce = 300 * time.Millisecond

// ChangeFunc receives the sorted, de-duplicated content-relative paths of one
// batch.
type ChangeFunc func(paths []string)

// Option configures Watch.
type Option func(*options)

type options struct {
	debounce time.Duration
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(o *options) { o.debounce = d }
}

// Watch starts an fsnotify watcher on root and calls onChange after every
// quiet period following Markdown file events, until ctx is cancelled.
//
// Directories created at runtime are added to the watch list; Markdown files
// already inside them count as changed.
func Watch(ctx context.Context, root string, logger *slog.Logger, onChange ChangeFunc, opts ...Option) error {
	o := options{debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(&o)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	schedule := func(rel string) {
		pending[rel] = struct{}{}
		if timer == nil {
			timer = time.NewTimer(o.debounce)
			fire = timer.C
		} else {
			timer.Reset(o.debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			timer, fire = nil, nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			slices.Sort(paths)
			logger.Debug("watcher: batch", slog.Int("paths", len(paths)))
			if onChange != nil {
				onChange(paths)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
					}
					for _, rel := range markdownIn(root, ev.Name) {
						schedule(rel)
					}
					continue
				}
			}

			if !isMarkdown(ev.Name) || ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil {
				continue
			}
			schedule(filepath.ToSlash(rel))

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func isMarkdown(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".md")
}

// markdownIn lists the Markdown files under dir relative to root.
func markdownIn(root, dir string) []string {
	var out []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !isMarkdown(path) {
			return nil
		}
		if rel, relErr := filepath.Rel(root, path); relErr == nil {
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	return out
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
