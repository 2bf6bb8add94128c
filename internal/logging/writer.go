package logging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// RotatingWriter appends to a log file and rolls it over once a write would
// push it past maxSize. Backups are path.1 (newest) through path.N.
type RotatingWriter struct {
	path     string
	maxSize  int64
	maxFiles int

	mu   sync.Mutex
	f    *os.File
	size int64
}

// NewRotatingWriter opens path for appending, creating its directory.
// A non-positive maxSizeMB means 10MB.
func NewRotatingWriter(path string, maxSizeMB, maxFiles int) (*RotatingWriter, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	w := &RotatingWriter{path: path, maxSize: int64(maxSizeMB) << 20, maxFiles: max(maxFiles, 0)}
	if err := w.reopen(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.roll(); err != nil {
			fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
		}
	}
	if w.f == nil {
		return 0, fs.ErrClosed
	}
	n, err := w.f.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *RotatingWriter) Sync() error {
	return w.withFile(func(f *os.File) error { return f.Sync() })
}

func (w *RotatingWriter) Close() error {
	return w.withFile(func(f *os.File) error {
		w.f = nil
		return f.Close()
	})
}

func (w *RotatingWriter) withFile(fn func(*os.File) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	return fn(w.f)
}

func (w *RotatingWriter) reopen() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	w.f, w.size = f, info.Size()
	return nil
}

// roll closes the live file, shifts the backups up by one, and reopens.
func (w *RotatingWriter) roll() error {
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}

	var shiftErr error
	if w.maxFiles == 0 {
		_ = os.Remove(w.path)
	} else {
		name := func(n int) string { return fmt.Sprintf("%s.%d", w.path, n) }
		_ = os.Remove(name(w.maxFiles))
		for n := w.maxFiles; n > 1; n-- {
			_ = os.Rename(name(n-1), name(n))
		}
		if err := os.Rename(w.path, name(1)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			shiftErr = fmt.Errorf("rotate log file: %w", err)
		}
	}

	return errors.Join(shiftErr, w.reopen())
}
