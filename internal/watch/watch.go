// Package watch reports saves of python files so they can be re-analysed.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SaveHandler is called once per debounced save.
type SaveHandler func(path string)

// Watcher watches a set of files, or every python file below a directory.
// Editors often save by renaming a temp file over the target, so the
// parent directories are watched rather than the files.
type Watcher struct {
	watcher  *fsnotify.Watcher
	handler  SaveHandler
	debounce time.Duration
	logger   *slog.Logger

	files map[string]bool
	all   map[string]bool // directories whose every matching file counts
	dirs  map[string]bool
	match func(string) bool
}

// Option configures a Watcher.
type Option func(*Watcher)

func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithMatch decides which files in a watched directory count. Defaults to
// everything.
func WithMatch(fn func(string) bool) Option {
	return func(w *Watcher) { w.match = fn }
}

// New watches paths. A file is watched on its own; a directory is watched
// with its matching files (not recursively).
func New(paths []string, handler SaveHandler, opts ...Option) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, errors.New("nothing to watch")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		watcher:  fw,
		handler:  handler,
		debounce: 300 * time.Millisecond,
		logger:   slog.Default(),
		files:    make(map[string]bool),
		all:      make(map[string]bool),
		dirs:     make(map[string]bool),
		match:    func(string) bool { return true },
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fw.Close()
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", p, err)
		}
		if info.IsDir() {
			w.all[abs] = true
			w.dirs[abs] = true
			continue
		}
		w.files[abs] = true
		w.dirs[filepath.Dir(abs)] = true
	}
	for dir := range w.dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return w, nil
}

// Dirs lists the watched directories, sorted.
func (w *Watcher) Dirs() []string {
	out := make([]string, 0, len(w.dirs))
	for d := range w.dirs {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Tracks reports whether a save of path triggers the handler.
func (w *Watcher) Tracks(path string) bool {
	if !w.match(path) {
		return false
	}
	return w.files[path] || w.all[filepath.Dir(path)]
}

// Run delivers saves until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	pending := make(map[string]time.Time)
	timer := time.NewTimer(time.Hour)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			path := filepath.Clean(ev.Name)
			if !w.Tracks(path) {
				continue
			}
			w.logger.Debug("File changed", slog.String("file", path), slog.String("op", ev.Op.String()))
			if len(pending) == 0 {
				timer.Reset(w.debounce)
			}
			pending[path] = time.Now()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watch error", slog.String("error", err.Error()))

		case <-timer.C:
			next := w.flush(pending)
			if next > 0 {
				timer.Reset(next)
			}
		}
	}
}

// flush hands quiet paths to the handler and returns how long until the
// next pending path settles, or 0.
func (w *Watcher) flush(pending map[string]time.Time) time.Duration {
	now := time.Now()
	var ready []string
	var next time.Duration
	for path, last := range pending {
		wait := w.debounce - now.Sub(last)
		if wait <= 0 {
			ready = append(ready, path)
			continue
		}
		if next == 0 || wait < next {
			next = wait
		}
	}
	sort.Strings(ready)
	for _, path := range ready {
		delete(pending, path)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		w.handler(path)
	}
	return next
}
