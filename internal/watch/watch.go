// Package watch re-runs work when watched files change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDelay is how long the watcher waits for changes to settle.
const DefaultDelay = 300 * time.Millisecond

// Watcher reports changes to a fixed set of files. Parent directories are
// watched rather than the files, so files that are replaced by a rename
// (as dbt does when writing target/manifest.json) or created later are
// still seen.
type Watcher struct {
	files  map[string]bool
	dirs   []string
	delay  time.Duration
	logger *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDelay sets the debounce delay.
func WithDelay(d time.Duration) Option {
	return func(w *Watcher) {
		w.delay = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// New creates a watcher for files.
func New(files []string, opts ...Option) (*Watcher, error) {
	if len(files) == 0 {
		return nil, errors.New("watch: no files to watch")
	}
	w := &Watcher{
		files:  make(map[string]bool, len(files)),
		delay:  DefaultDelay,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(w)
	}

	seen := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("watch: %w", err)
		}
		w.files[abs] = true
		if dir := filepath.Dir(abs); !seen[dir] {
			seen[dir] = true
			w.dirs = append(w.dirs, dir)
		}
	}
	sort.Strings(w.dirs)
	return w, nil
}

// Run calls onChange with the sorted changed files each time watched files
// change, until ctx is done. Calls never overlap: changes arriving while
// onChange runs are delivered in the next call.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, changed []string)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	for _, dir := range w.dirs {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.logger.Debug("watching directory", "dir", dir)
	}

	pending := make(map[string]bool)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			name := filepath.Clean(event.Name)
			if !w.files[name] {
				continue
			}
			w.logger.Debug("file changed", "file", name, "op", event.Op.String())
			pending[name] = true

			if timer == nil {
				timer = time.NewTimer(w.delay)
			} else {
				timer.Reset(w.delay)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			changed := make([]string, 0, len(pending))
			for name := range pending {
				changed = append(changed, name)
			}
			sort.Strings(changed)
			clear(pending)
			onChange(ctx, changed)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}
