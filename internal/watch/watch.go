// Package watch re-reads changed package files into the editor model and
// reports each settled batch of changes.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"kside/internal/logging"
)

// DefaultDebounce is how long the watcher waits for more events before
// reporting a batch. Editors tend to emit several events per save.
const DefaultDebounce = 150 * time.Millisecond

// Refresher syncs one disk path into the editor model and reports whether
// the model changed. *project.Project implements it.
type Refresher interface {
	Refresh(diskPath string) (bool, error)
}

// ChangeFunc receives the disk paths that changed the model in one batch.
type ChangeFunc func(ctx context.Context, changed []string)

// Watcher watches a package directory tree.
type Watcher struct {
	root      string
	refresher Refresher
	onChange  ChangeFunc
	debounce  time.Duration
	ignore    map[string]bool
	logger    *zap.Logger

	fsw *fsnotify.Watcher
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the settle delay. Zero reports every event on its own.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithIgnore skips directories with these base names, e.g. the output
// directory.
func WithIgnore(names ...string) Option {
	return func(w *Watcher) {
		for _, n := range names {
			w.ignore[n] = true
		}
	}
}

// WithLogger sets the watcher logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a watcher over root and every directory below it.
func New(root string, r Refresher, onChange ChangeFunc, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:      root,
		refresher: r,
		onChange:  onChange,
		debounce:  DefaultDebounce,
		ignore:    map[string]bool{".git": true, "node_modules": true, ".DS_Store": true},
		logger:    logging.Named("watch"),
		fsw:       fsw,
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// addTree registers dir and its subdirectories.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.ignore[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("cannot watch directory", zap.String("dir", path), zap.Error(err))
		}
		return nil
	})
}

// Run processes events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	pending := make(map[string]struct{})

	flush := func() {
		if len(pending) == 0 {
			return
		}
		changed := make([]string, 0, len(pending))
		for p := range pending {
			changed = append(changed, p)
		}
		sort.Strings(changed)
		clear(pending)
		if w.onChange != nil {
			w.onChange(ctx, changed)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.handle(ev) {
				continue
			}
			pending[ev.Name] = struct{}{}
			if w.debounce == 0 {
				flush()
				continue
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			flush()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// handle syncs one event into the model and reports whether it changed.
func (w *Watcher) handle(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if w.ignore[filepath.Base(ev.Name)] {
		return false
	}
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("cannot watch new directory", zap.String("dir", ev.Name), zap.Error(err))
			}
			return false
		}
	}
	changed, err := w.refresher.Refresh(ev.Name)
	if err != nil {
		w.logger.Warn("refresh failed", zap.String("path", ev.Name), zap.Error(err))
		return false
	}
	if changed {
		w.logger.Debug("file changed", zap.String("path", ev.Name), zap.Stringer("op", ev.Op))
	}
	return changed
}
