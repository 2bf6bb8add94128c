// Package loader enumerates the documents under a data directory.
package loader

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	rerrors "github.com/Aman-CERP/tfrag/internal/errors"
)

// RootPath is the key reported in a ReadError when the root itself cannot be
// read. Errors for a directory are reported with the directory's key; either
// way every document at or below that key is unknown for the run.
const RootPath = "."

// DefaultMaxFileSize skips anything larger than 10MB.
const DefaultMaxFileSize = 10 * 1024 * 1024

// Document is a file read during one run. It is never cached across runs.
type Document struct {
	// Path is slash-separated and relative to the loader root. It is the
	// stable key used by the manifest and the vector store.
	Path    string
	AbsPath string
	Content []byte
}

// Options configures a Loader.
type Options struct {
	Root        string
	Extensions  []string
	Exclude     []string
	MaxFileSize int64
}

// Loader walks Root and yields files whose extension is allowed.
type Loader struct {
	root        string
	extensions  map[string]struct{}
	exclude     []string
	maxFileSize int64

	readFile func(string) ([]byte, error)
}

// New validates opts and returns a Loader.
func New(opts Options) (*Loader, error) {
	if opts.Root == "" {
		return nil, rerrors.ValidationError("loader root is required", nil)
	}
	if len(opts.Extensions) == 0 {
		return nil, rerrors.ValidationError("at least one extension is required", nil)
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	for _, p := range opts.Exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, rerrors.ValidationError(fmt.Sprintf("invalid exclude pattern %q", p), nil)
		}
	}

	exts := make(map[string]struct{}, len(opts.Extensions))
	for _, e := range opts.Extensions {
		exts[e] = struct{}{}
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	return &Loader{
		root:        root,
		extensions:  exts,
		exclude:     slices.Clone(opts.Exclude),
		maxFileSize: maxSize,
		readFile:    os.ReadFile,
	}, nil
}

// Root returns the absolute directory the loader walks.
func (l *Loader) Root() string { return l.root }

// Documents returns a lazy sequence over the current documents. Each range
// walks the tree again. Unreadable files are yielded as ReadError values and
// the walk continues; a missing root is reported once and ends the sequence.
// Cancelling ctx yields ctx.Err() and stops.
func (l *Loader) Documents(ctx context.Context) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		if _, err := os.Stat(l.root); err != nil {
			yield(Document{}, rerrors.ReadError(RootPath, err).WithDetail("root", l.root))
			return
		}

		emit := func(doc Document, err error) error {
			if !yield(doc, err) {
				return fs.SkipAll
			}
			return nil
		}

		_ = filepath.WalkDir(l.root, func(path string, d fs.DirEntry, walkErr error) error {
			if err := ctx.Err(); err != nil {
				yield(Document{}, err)
				return fs.SkipAll
			}

			rel, err := filepath.Rel(l.root, path)
			if err != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)

			if walkErr != nil {
				if rel == RootPath {
					return emit(Document{}, rerrors.ReadError(RootPath, walkErr).WithDetail("root", l.root))
				}
				slog.Warn("document_read_failed", slog.String("path", rel), slog.String("error", walkErr.Error()))
				return emit(Document{}, rerrors.ReadError(rel, walkErr))
			}
			if rel == "." {
				return nil
			}

			if d.IsDir() {
				if l.ExcludedDir(rel) {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type()&fs.ModeSymlink != 0 || !d.Type().IsRegular() {
				return nil
			}
			if !l.Eligible(rel) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				slog.Warn("document_read_failed", slog.String("path", rel), slog.String("error", err.Error()))
				return emit(Document{}, rerrors.ReadError(rel, err))
			}
			if info.Size() > l.maxFileSize {
				slog.Debug("document_skipped_large", slog.String("path", rel), slog.Int64("size", info.Size()))
				return nil
			}

			content, err := l.readFile(path)
			if err != nil {
				slog.Warn("document_read_failed", slog.String("path", rel), slog.String("error", err.Error()))
				return emit(Document{}, rerrors.ReadError(rel, err))
			}
			return emit(Document{Path: rel, AbsPath: path, Content: content}, nil)
		})
	}
}

// Eligible reports whether a slash-separated path relative to the root has an
// allowed extension and matches no exclude pattern.
func (l *Loader) Eligible(rel string) bool {
	if _, ok := l.extensions[filepath.Ext(rel)]; !ok {
		return false
	}
	for _, p := range l.exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return false
		}
	}
	return true
}

// Rel converts an absolute path under the root to a document key.
// ok is false for paths outside the root.
func (l *Loader) Rel(abs string) (string, bool) {
	rel, err := filepath.Rel(l.root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// ExcludedDir reports whether a directory is pruned by a "<dir>/**" pattern.
func (l *Loader) ExcludedDir(rel string) bool {
	for _, p := range l.exclude {
		dirPattern, ok := strings.CutSuffix(p, "/**")
		if !ok {
			continue
		}
		if match, _ := doublestar.Match(dirPattern, rel); match {
			return true
		}
	}
	return false
}
