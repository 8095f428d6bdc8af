// Package watcher reruns a workflow when project sources change.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/conneroisu/stubforge/internal/logging"
	"github.com/fsnotify/fsnotify"
)

// Op is the kind of change seen for a path.
type Op int

const (
	OpCreated Op = iota
	OpModified
	OpDeleted
	OpRenamed
)

// String returns the string representation of the Op
func (o Op) String() string {
	switch o {
	case OpCreated:
		return "created"
	case OpModified:
		return "modified"
	case OpDeleted:
		return "deleted"
	case OpRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Change is one changed path, the last operation seen for it winning.
type Change struct {
	Op   Op
	Path string
}

// Filter reports whether a changed path should trigger a rebuild.
type Filter func(path string) bool

// Handler is called with each debounced batch of changes.
type Handler func(ctx context.Context, changes []Change) error

// Watcher watches a project tree and debounces bursts of changes into a
// single batch.
type Watcher struct {
	fs      *fsnotify.Watcher
	delay   time.Duration
	filters []Filter
	ignored []string
	logger  logging.Logger
}

// New creates a watcher that waits delay after the last change before
// calling the handler.
func New(delay time.Duration, logger logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Watcher{fs: fsw, delay: delay, logger: logger.WithComponent("watcher")}, nil
}

// AddFilter adds a filter; a change must pass every filter.
func (w *Watcher) AddFilter(f Filter) {
	w.filters = append(w.filters, f)
}

// Ignore excludes directories, and everything below them, from watching.
func (w *Watcher) Ignore(dirs ...string) {
	for _, dir := range dirs {
		if abs, err := filepath.Abs(dir); err == nil {
			w.ignored = append(w.ignored, abs)
		}
	}
}

// AddRecursive watches root and every directory below it that is not
// ignored.
func (w *Watcher) AddRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.isIgnored(path) || (path != root && strings.HasPrefix(d.Name(), ".")) {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// Run delivers debounced batches to handler on the calling goroutine until
// ctx is done. Handler errors are logged and watching continues.
func (w *Watcher) Run(ctx context.Context, handler Handler) error {
	pending := make(map[string]Change)
	timer := time.NewTimer(w.delay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			change, ok := w.convert(event)
			if !ok {
				continue
			}
			pending[change.Path] = change
			timer.Reset(w.delay)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(ctx, err, "file watcher error")

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]Change, 0, len(pending))
			for _, c := range pending {
				batch = append(batch, c)
			}
			slices.SortFunc(batch, func(a, b Change) int { return strings.Compare(a.Path, b.Path) })
			clear(pending)

			w.logger.Debug(ctx, "changes detected", "count", len(batch))
			if err := handler(ctx, batch); err != nil {
				w.logger.Warn(ctx, err, "rebuild failed")
			}
		}
	}
}

func (w *Watcher) convert(event fsnotify.Event) (Change, bool) {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return Change{}, false
	}
	if w.isIgnored(event.Name) {
		return Change{}, false
	}

	var op Op
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreated
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.AddRecursive(event.Name); err != nil {
				w.logger.Warn(context.Background(), err, "cannot watch new directory", "path", event.Name)
			}
			return Change{}, false
		}
	case event.Has(fsnotify.Write):
		op = OpModified
	case event.Has(fsnotify.Remove):
		op = OpDeleted
	case event.Has(fsnotify.Rename):
		op = OpRenamed
	}

	for _, filter := range w.filters {
		if !filter(event.Name) {
			return Change{}, false
		}
	}
	return Change{Op: op, Path: event.Name}, true
}

func (w *Watcher) isIgnored(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, dir := range w.ignored {
		if abs == dir || strings.HasPrefix(abs, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// SourceFilter accepts PHP sources, templates and the project and composer
// manifests.
func SourceFilter(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".php", ".phtml", ".inc", ".json", ".lock", ".ini", ".env":
		return true
	}
	return filepath.Base(path) == ".env"
}

// NoEditorTempFilter rejects swap and backup files written by editors.
func NoEditorTempFilter(path string) bool {
	base := filepath.Base(path)
	return !strings.HasSuffix(base, "~") &&
		!strings.HasSuffix(base, ".swp") &&
		!strings.HasSuffix(base, ".swx") &&
		!strings.HasPrefix(base, ".#")
}
