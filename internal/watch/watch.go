// Package watch drives flowctl's --watch mode: a config document on disk
// is watched for changes, and each change triggers a re-run. Trimmed from
// the teacher's internal/controller/filewatcher, which watches arbitrary
// paths for create/modify/delete/rename; this package forwards write,
// create and rename events on a fixed, known set of config files and
// ignores deletes.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a fixed set of config file paths and emits on Changes()
// each time one of them is written.
type Watcher struct {
	fsw     *fsnotify.Watcher
	paths   map[string]bool
	changes chan string
	logger  *slog.Logger
}

// New creates a Watcher over paths, which should be the set of config
// documents a run was loaded from.
func New(paths []string, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: creating fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	w := &Watcher{
		fsw:     fsw,
		paths:   make(map[string]bool, len(paths)),
		changes: make(chan string, 8),
		logger:  logger.With(slog.String("component", "watch")),
	}

	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch: resolving %q: %w", p, err)
		}
		w.paths[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	// fsnotify watches directories, not individual files, since editors
	// commonly replace a file (rename-over-write) rather than truncate it
	// in place; the directory-level watch still observes the rename.
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch: watching %q: %w", dir, err)
		}
	}

	return w, nil
}

// Changes returns a channel receiving the path of each watched config file
// that was created, written, or renamed into place.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

// Run drains fsnotify events until ctx is cancelled, forwarding matches
// onto Changes(). It closes Changes() before returning.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.changes)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.paths[event.Name] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			select {
			case w.changes <- event.Name:
			default:
				w.logger.Warn("change channel full, dropping event", slog.String("path", event.Name))
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", slog.Any("error", err))
		}
	}
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
