// Package watch rebuilds an editable distribution whenever its source tree
// changes. Filesystem events are debounced so a burst of saves triggers a
// single rebuild.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	wherrors "github.com/pyforge/wheelhouse/internal/errors"
	"github.com/pyforge/wheelhouse/internal/logfields"
)

// RebuildFunc performs one rebuild of the watched source tree.
type RebuildFunc func(ctx context.Context) error

// Watcher monitors a source tree and triggers debounced rebuilds.
type Watcher struct {
	source   string
	debounce time.Duration
	rebuild  RebuildFunc
}

// New creates a watcher for the given source tree.
func New(source string, debounce time.Duration, rebuild RebuildFunc) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{source: source, debounce: debounce, rebuild: rebuild}
}

// Run watches until the context is canceled. The initial build runs before
// watching starts so the destination is populated immediately.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.rebuild(ctx); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return wherrors.WrapError(err, wherrors.CategoryFileSystem, "failed to create filesystem watcher")
	}
	defer fsw.Close()

	if err := addRecursive(fsw, w.source); err != nil {
		return err
	}

	rebuilds := make(chan struct{}, 1)
	deb := NewDebouncer(w.debounce, func() {
		select {
		case rebuilds <- struct{}{}:
		default:
		}
	})
	defer deb.Stop()

	slog.Info("Watching source tree", logfields.Path(w.source))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if shouldIgnore(event.Name) {
				continue
			}
			// New directories need watching too.
			if event.Op.Has(fsnotify.Create) {
				_ = addRecursive(fsw, event.Name)
			}
			slog.Debug("Source changed", logfields.Path(event.Name), slog.String("op", event.Op.String()))
			deb.Trigger()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watcher error", logfields.Error(err))

		case <-rebuilds:
			start := time.Now()
			if err := w.rebuild(ctx); err != nil {
				slog.Error("Rebuild failed", logfields.Error(err))
				continue
			}
			slog.Info("Rebuilt editable distribution",
				logfields.Path(w.source),
				logfields.DurationMS(float64(time.Since(start).Milliseconds())))
		}
	}
}

// addRecursive registers path and all its non-ignored subdirectories.
// Non-directories are ignored silently so Create events for files can be
// passed straight in.
func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && shouldIgnore(path) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return wherrors.WrapError(err, wherrors.CategoryFileSystem, "failed to watch directory")
		}
		return nil
	})
}

// shouldIgnore filters out paths whose changes never affect the built wheel:
// VCS metadata, Python bytecode caches, and build outputs.
func shouldIgnore(path string) bool {
	base := filepath.Base(path)
	switch base {
	case ".git", "__pycache__", "dist", "build", ".tox", ".venv", "venv":
		return true
	}
	if strings.HasSuffix(base, ".egg-info") {
		return true
	}
	if strings.HasSuffix(base, ".pyc") || strings.HasSuffix(base, ".pyo") {
		return true
	}
	// Editor swap and temp files.
	if strings.HasSuffix(base, ".swp") || strings.HasSuffix(base, "~") {
		return true
	}
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		switch seg {
		case ".git", "__pycache__", ".tox", ".venv":
			return true
		}
	}
	return false
}
