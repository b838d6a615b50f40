// Package watch turns raw file system notifications into the filtered
// change events that feed the debouncer.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vk/reloadgo/internal/ctxlog"
	"github.com/vk/reloadgo/internal/debounce"
	"github.com/vk/reloadgo/internal/fsutil"
)

// Watcher owns the fsnotify instance and the set of registered
// directories. Directories created while watching are registered on the
// fly, so new packages are picked up without a restart.
type Watcher struct {
	fs     *fsnotify.Watcher
	filter *Filter
	root   string
}

// New registers every configured watch path. Directories are walked
// recursively with excluded subtrees pruned, and plain files are watched
// directly.
func New(ctx context.Context, root string, paths []string, filter *Filter) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watch source: %w", err)
	}
	w := &Watcher{fs: fsw, filter: filter, root: root}

	logger := ctxlog.FromContext(ctx)
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			logger.Warn("Watch path vanished before registration, skipping.", "path", p)
			continue
		}
		if !info.IsDir() {
			if err := w.fs.Add(p); err != nil {
				w.fs.Close()
				return nil, fmt.Errorf("failed to watch %s: %w", p, err)
			}
			continue
		}
		if err := w.addTree(ctx, p); err != nil {
			w.fs.Close()
			return nil, err
		}
	}
	logger.Debug("Watch registration complete.", "paths", len(paths))
	return w, nil
}

// addTree registers dir and every nested directory under it.
func (w *Watcher) addTree(ctx context.Context, dir string) error {
	dirs, err := fsutil.FindWatchDirs(dir, w.root, w.filter.SkipDir)
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	logger := ctxlog.FromContext(ctx)
	for _, d := range dirs {
		if err := w.fs.Add(d); err != nil {
			return fmt.Errorf("failed to watch %s: %w", d, err)
		}
		logger.Debug("Watching directory.", "dir", d)
	}
	return nil
}

// Run pumps events until ctx is canceled, calling ingest for every
// relevant change. It returns a non-nil error only when the watch source
// itself breaks, which ends the session.
func (w *Watcher) Run(ctx context.Context, ingest func(debounce.ChangeEvent)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return errors.New("watch source closed unexpectedly")
			}
			w.handle(ctx, ev, ingest)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return errors.New("watch source closed unexpectedly")
			}
			return fmt.Errorf("watch source failed: %w", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event, ingest func(debounce.ChangeEvent)) {
	const ops = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename
	if ev.Op&ops == 0 {
		return
	}
	logger := ctxlog.FromContext(ctx)

	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		rel = ev.Name
	}

	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if w.filter.SkipDir(rel) {
				return
			}
			if err := w.addTree(ctx, ev.Name); err != nil {
				logger.Warn("Failed to watch new directory.", "dir", ev.Name, "error", err)
			}
			return
		}
	}

	if !w.filter.Relevant(rel) {
		return
	}
	logger.Debug("Change detected.", "path", rel, "op", ev.Op.String())
	ingest(debounce.ChangeEvent{Path: ev.Name, Time: time.Now()})
}

// Close releases the underlying watch source.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
