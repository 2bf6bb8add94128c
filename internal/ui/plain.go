package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer writes one line per event.
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	last   Stage
	errors []ErrorEvent
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output, last: -1}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(context.Context) error { return nil }

// UpdateProgress implements Renderer. Stage changes without a count print
// once; counted events print every update.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg := event.Message
	if msg == "" {
		msg = event.CurrentFile
	}

	switch {
	case event.Total > 0:
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d %s\n", event.Stage.Icon(), event.Current, event.Total, msg)
	case msg != "":
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), msg)
	case event.Stage != r.last:
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), event.Stage)
	}
	r.last = event.Stage
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, event)
	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}
	if event.File != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.File, event.Err)
		return
	}
	_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	writeSummary(r.out, stats)
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error { return nil }

// writeSummary prints the end-of-run report shared by both renderers.
func writeSummary(w io.Writer, s CompletionStats) {
	mode := s.Mode
	if mode == "" {
		mode = "update"
	}
	if !s.Changed() && s.Failed == 0 {
		_, _ = fmt.Fprintf(w, "Index up to date (%s): %d documents unchanged in %s\n",
			mode, s.Unchanged, s.Duration.Round(10*time.Millisecond))
	} else {
		_, _ = fmt.Fprintf(w, "Sync complete (%s): %d added, %d updated, %d removed, %d unchanged in %s\n",
			mode, s.Added, s.Updated, s.Removed, s.Unchanged, s.Duration.Round(10*time.Millisecond))
		_, _ = fmt.Fprintf(w, "  Chunks written: %d (%d embedding calls)\n", s.Chunks, s.EmbedCalls)
	}
	if s.Skipped > 0 {
		_, _ = fmt.Fprintf(w, "  Skipped (unreadable, kept in index): %d\n", s.Skipped)
	}
	if s.Failed > 0 {
		_, _ = fmt.Fprintf(w, "  Failed: %d (will be retried on the next update)\n", s.Failed)
	}
	if !s.ManifestSaved && s.Changed() {
		_, _ = fmt.Fprintln(w, "  Manifest not saved")
	}
	if s.Embedder.Model != "" {
		_, _ = fmt.Fprintf(w, "  Embedder: %s (%s, %d dims)\n", s.Embedder.Backend, s.Embedder.Model, s.Embedder.Dimensions)
	}
}
