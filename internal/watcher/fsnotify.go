package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a directory tree and emits debounced batches.
type Watcher struct {
	opts      Options
	root      string
	fs        *fsnotify.Watcher
	debouncer *Debouncer
	errors    chan error

	mu      sync.Mutex
	stopped bool
	stopCh  chan struct{}
}

// New creates a Watcher for root. If fsnotify cannot be initialized the
// watcher polls instead.
func New(root string, opts Options) (*Watcher, error) {
	opts = opts.WithDefaults()
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve watch root: %w", err)
	}

	w := &Watcher{
		opts:      opts,
		root:      abs,
		debouncer: NewDebouncer(opts.Debounce, opts.BufferSize),
		errors:    make(chan error, 8),
		stopCh:    make(chan struct{}),
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("fsnotify_unavailable", slog.String("error", err.Error()), slog.Duration("poll", opts.PollInterval))
	} else {
		w.fs = fsw
	}
	return w, nil
}

// Mode returns "fsnotify" or "polling".
func (w *Watcher) Mode() string {
	if w.fs != nil {
		return "fsnotify"
	}
	return "polling"
}

// Events returns debounced batches.
func (w *Watcher) Events() <-chan []FileEvent { return w.debouncer.Output() }

// Errors returns non-fatal watcher errors.
func (w *Watcher) Errors() <-chan error { return w.errors }

// Run watches until ctx is cancelled or Stop is called.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.Stop() }()

	if w.fs == nil {
		return w.poll(ctx)
	}
	if err := w.addTree(w.root); err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}
	slog.Info("watch_started", slog.String("root", w.root), slog.String("mode", w.Mode()))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) error {
	t := time.NewTicker(w.opts.PollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case now := <-t.C:
			w.debouncer.Add(FileEvent{Path: ".", Operation: OpRescan, IsDir: true, Timestamp: now})
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || rel == "." {
		return
	}
	rel = filepath.ToSlash(rel)

	isDir := false
	if info, err := os.Stat(ev.Name); err == nil {
		isDir = info.IsDir()
	}

	if isDir {
		if ev.Op&fsnotify.Create == 0 || !w.opts.Filter.dir(rel) {
			return
		}
		// Files copied in with the directory may predate the watch.
		if err := w.addTree(ev.Name); err != nil {
			w.emitError(err)
		}
		w.debouncer.Add(FileEvent{Path: rel, Operation: OpRescan, IsDir: true, Timestamp: time.Now()})
		return
	}

	var op Operation
	switch {
	case ev.Op&fsnotify.Create != 0:
		op = OpCreate
	case ev.Op&fsnotify.Write != 0:
		op = OpModify
	case ev.Op&fsnotify.Remove != 0:
		op = OpDelete
	case ev.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return
	}

	// A removed directory no longer stats as one; let the consumer re-scan.
	if (op == OpDelete || op == OpRename) && !w.opts.Filter.file(rel) {
		if filepath.Ext(rel) == "" {
			w.debouncer.Add(FileEvent{Path: rel, Operation: OpRescan, IsDir: true, Timestamp: time.Now()})
		}
		return
	}
	if !w.opts.Filter.file(rel) {
		return
	}
	w.debouncer.Add(FileEvent{Path: rel, Operation: op, Timestamp: time.Now()})
}

// addTree watches dir and every non-excluded directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Debug("watch_skip", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(w.root, path)
		rel = filepath.ToSlash(rel)
		if rel != "." && !w.opts.Filter.dir(rel) {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}

func (w *Watcher) emitError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
	}
}

// Stop releases resources and closes Events and Errors. Safe to call twice.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	if w.fs != nil {
		_ = w.fs.Close()
	}
	close(w.errors)
	return nil
}

// Root returns the absolute watched directory.
func (w *Watcher) Root() string { return w.root }
