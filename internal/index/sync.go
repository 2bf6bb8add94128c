// Package index keeps the vector store and the manifest in step with the
// documents on disk.
package index

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/tfrag/internal/chunk"
	"github.com/Aman-CERP/tfrag/internal/embed"
	rerrors "github.com/Aman-CERP/tfrag/internal/errors"
	"github.com/Aman-CERP/tfrag/internal/fingerprint"
	"github.com/Aman-CERP/tfrag/internal/loader"
	"github.com/Aman-CERP/tfrag/internal/manifest"
	"github.com/Aman-CERP/tfrag/internal/store"
)

// DocumentSource yields the current documents. *loader.Loader implements it.
type DocumentSource interface {
	Documents(ctx context.Context) iter.Seq2[loader.Document, error]
}

// ManifestStore loads and saves the manifest. *manifest.Store implements it.
type ManifestStore interface {
	Load() (manifest.Manifest, error)
	Save(m manifest.Manifest) error
	Path() string
}

// Dependencies are the collaborators of a Synchronizer. All are required.
type Dependencies struct {
	Loader   DocumentSource
	Chunker  *chunk.Chunker
	Embedder embed.Embedder
	Store    store.Collection
	Manifest ManifestStore
}

// Options tunes a Synchronizer.
type Options struct {
	// Workers bounds concurrent embedding requests for one document.
	Workers int

	// BatchSize is the number of chunks per embedding request.
	BatchSize int

	// Progress, when set, receives an Event for each state change and
	// document. It is called from the goroutine running the sync.
	Progress func(Event)
}

// Synchronizer runs incremental updates and full rebuilds. Runs on one
// Synchronizer are serialized.
type Synchronizer struct {
	loader   DocumentSource
	chunker  *chunk.Chunker
	embedder embed.Embedder
	store    store.Collection
	manifest ManifestStore

	workers   int
	batchSize int
	progress  func(Event)

	mu sync.Mutex
}

// NewSynchronizer validates deps and applies option defaults.
func NewSynchronizer(deps Dependencies, opts Options) (*Synchronizer, error) {
	switch {
	case deps.Loader == nil:
		return nil, fmt.Errorf("document loader is required")
	case deps.Chunker == nil:
		return nil, fmt.Errorf("chunker is required")
	case deps.Embedder == nil:
		return nil, fmt.Errorf("embedder is required")
	case deps.Store == nil:
		return nil, fmt.Errorf("vector store is required")
	case deps.Manifest == nil:
		return nil, fmt.Errorf("manifest store is required")
	}
	if err := deps.Chunker.Validate(); err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = min(runtime.NumCPU(), 4)
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = embed.DefaultBatchSize
	}

	return &Synchronizer{
		loader:    deps.Loader,
		chunker:   deps.Chunker,
		embedder:  deps.Embedder,
		store:     deps.Store,
		manifest:  deps.Manifest,
		workers:   workers,
		batchSize: batch,
		progress:  opts.Progress,
	}, nil
}

// Update applies only the differences between the documents and the manifest.
func (s *Synchronizer) Update(ctx context.Context) (*Result, error) {
	return s.run(ctx, ModeUpdate)
}

// Rebuild clears the collection and indexes every current document.
func (s *Synchronizer) Rebuild(ctx context.Context) (*Result, error) {
	return s.run(ctx, ModeRebuild)
}

// Plan scans and diffs without touching the store or the manifest.
func (s *Synchronizer) Plan(ctx context.Context) (Plan, []error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, err := s.manifest.Load()
	if err != nil {
		return Plan{}, nil, err
	}
	snap, err := s.scan(ctx, old, ModeUpdate)
	if err != nil {
		return Plan{}, nil, err
	}
	return Diff(old, snap.digests, snap.unreadable), snap.readErrors, nil
}

// snapshot is the outcome of Scanning. Content is retained only for
// documents that will be applied.
type snapshot struct {
	digests    map[string]string
	content    map[string][]byte
	unreadable []string
	readErrors []error
}

func (s *Synchronizer) scan(ctx context.Context, old manifest.Manifest, mode Mode) (*snapshot, error) {
	snap := &snapshot{
		digests: make(map[string]string),
		content: make(map[string][]byte),
	}
	n := 0
	for doc, err := range s.loader.Documents(ctx) {
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			path := loader.RootPath
			if re, ok := rerrors.As(err); ok && re.Details["path"] != "" {
				path = re.Details["path"]
			}
			snap.unreadable = append(snap.unreadable, path)
			snap.readErrors = append(snap.readErrors, err)
			s.emit(Event{State: StateScanning, Current: n, Path: path, Err: err})
			continue
		}

		digest := fingerprint.Digest(doc.Content)
		snap.digests[doc.Path] = digest
		if mode == ModeRebuild || old[doc.Path] != digest {
			snap.content[doc.Path] = doc.Content
		}
		n++
		s.emit(Event{State: StateScanning, Current: n, Path: doc.Path})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Synchronizer) run(ctx context.Context, mode Mode) (res *Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	res = &Result{Mode: mode}
	defer func() {
		res.Duration = time.Since(start)
		if err != nil {
			res.State = StateFailed
		}
	}()

	s.enter(res, StateScanning, 0)
	old, err := s.manifest.Load()
	if err != nil {
		if mode != ModeRebuild {
			return res, err
		}
		// A rebuild replaces the manifest wholesale, so an unreadable one
		// is not an obstacle.
		slog.Warn("manifest_ignored",
			slog.String("path", s.manifest.Path()),
			slog.String("error", err.Error()))
		old = manifest.Manifest{}
	}
	snap, err := s.scan(ctx, old, mode)
	if err != nil {
		return res, err
	}
	res.ReadErrors = snap.readErrors

	if i := slices.Index(snap.unreadable, loader.RootPath); mode == ModeRebuild && i >= 0 {
		return res, rerrors.New(rerrors.ErrCodeReadFailed, "data directory is unreadable, refusing to clear the index", snap.readErrors[i]).
			WithSuggestion("check that paths.data_dir exists and is readable, then run the rebuild again")
	}

	s.enter(res, StateDiffing, len(snap.digests))
	var plan Plan
	next := old.Clone()
	if mode == ModeRebuild {
		plan = Diff(manifest.Manifest{}, snap.digests, nil)
		next = manifest.Manifest{}
	} else {
		plan = Diff(old, snap.digests, snap.unreadable)
	}
	res.Added, res.Updated, res.Removed = plan.Added, plan.Updated, plan.Removed
	res.Unchanged, res.Skipped = plan.Unchanged, plan.Skipped

	slog.Info("sync_planned",
		slog.String("mode", mode.String()),
		slog.Int("added", len(plan.Added)),
		slog.Int("updated", len(plan.Updated)),
		slog.Int("removed", len(plan.Removed)),
		slog.Int("unchanged", len(plan.Unchanged)),
		slog.Int("skipped", len(plan.Skipped)),
		slog.Int("read_errors", len(snap.readErrors)))

	apply := append(append([]string{}, plan.Added...), plan.Updated...)
	s.enter(res, StateApplying, len(plan.Removed)+len(apply))

	if mode == ModeRebuild {
		res.Mutations++
		if err := s.store.Clear(ctx); err != nil {
			return res, asMutationError("clear", "", err)
		}
	}

	done := 0
	for _, path := range plan.Removed {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Mutations++
		n, err := s.store.DeleteBySource(ctx, path)
		done++
		if err != nil {
			s.fail(res, path, asMutationError("delete", path, err), done)
			continue
		}
		delete(next, path)
		slog.Debug("document_removed", slog.String("path", path), slog.Int("chunks", n))
		s.emit(Event{State: StateApplying, Current: done, Total: len(plan.Removed) + len(apply), Path: path})
	}

	for _, path := range apply {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		chunks, err := s.applyDocument(ctx, res, path, snap.content[path])
		done++
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			s.fail(res, path, err, done)
			continue
		}
		next[path] = snap.digests[path]
		res.Chunks += chunks
		s.emit(Event{State: StateApplying, Current: done, Total: len(plan.Removed) + len(apply), Path: path})
	}

	s.enter(res, StatePersisting, len(next))
	if mode == ModeRebuild || !next.Equal(old) {
		if err := s.manifest.Save(next); err != nil {
			slog.Error("manifest_save_failed",
				slog.String("path", s.manifest.Path()),
				slog.String("error", err.Error()))
			return res, err
		}
		res.ManifestSaved = true
	}

	s.enter(res, StateDone, 0)
	slog.Info("sync_completed",
		slog.String("mode", mode.String()),
		slog.Int("chunks", res.Chunks),
		slog.Int("failed", len(res.Failed)),
		slog.Duration("duration", time.Since(start)))
	return res, nil
}

// applyDocument replaces every store entry of path with the chunks of
// content. Vectors are computed before any mutation so an embedding failure
// leaves the previous entries in place.
func (s *Synchronizer) applyDocument(ctx context.Context, res *Result, path string, content []byte) (int, error) {
	chunks := s.chunker.Chunks(path, string(content))

	vectors, calls, err := s.embedChunks(ctx, chunks)
	res.EmbedCalls += calls
	if err != nil {
		return 0, rerrors.EmbeddingError(path, err)
	}

	// Deleting by source first drops indices beyond the new chunk count.
	res.Mutations++
	if _, err := s.store.DeleteBySource(ctx, path); err != nil {
		return 0, asMutationError("delete", path, err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	entries := make([]store.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = store.Entry{
			ID:       c.ID,
			Source:   c.Source,
			Index:    c.Index,
			Document: c.Text,
			Vector:   vectors[i],
		}
	}
	res.Mutations++
	if err := s.store.Upsert(ctx, entries); err != nil {
		return 0, asMutationError("upsert", path, err)
	}

	slog.Debug("document_applied", slog.String("path", path), slog.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// embedChunks embeds chunks in batches with up to s.workers requests in
// flight. Vectors are returned in chunk order.
func (s *Synchronizer) embedChunks(ctx context.Context, chunks []chunk.Chunk) ([][]float32, int, error) {
	vectors := make([][]float32, len(chunks))
	var calls atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for start := 0; start < len(chunks); start += s.batchSize {
		end := min(start+s.batchSize, len(chunks))
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, c := range chunks[start:end] {
				texts = append(texts, c.Text)
			}
			calls.Add(1)
			vecs, err := s.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return err
			}
			if len(vecs) != len(texts) {
				return fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
			}
			copy(vectors[start:end], vecs)
			return nil
		})
	}
	err := g.Wait()
	return vectors, int(calls.Load()), err
}

func asMutationError(op, path string, err error) error {
	if errors.Is(err, rerrors.ErrStoreMutation) {
		return err
	}
	return rerrors.StoreMutationError(op, path, err)
}

func (s *Synchronizer) fail(res *Result, path string, err error, done int) {
	res.Failed = append(res.Failed, Failure{Path: path, Err: err})
	slog.Warn("document_failed",
		slog.String("path", path),
		slog.String("code", rerrors.GetCode(err)),
		slog.String("error", err.Error()))
	s.emit(Event{State: StateApplying, Current: done, Path: path, Err: err})
}

func (s *Synchronizer) enter(res *Result, state State, total int) {
	res.State = state
	s.emit(Event{State: state, Total: total})
}

func (s *Synchronizer) emit(e Event) {
	if s.progress != nil {
		s.progress(e)
	}
}
