package index

import (
	"context"
	"errors"
	"iter"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/tfrag/internal/chunk"
	"github.com/Aman-CERP/tfrag/internal/embed"
	rerrors "github.com/Aman-CERP/tfrag/internal/errors"
	"github.com/Aman-CERP/tfrag/internal/loader"
	"github.com/Aman-CERP/tfrag/internal/manifest"
	"github.com/Aman-CERP/tfrag/internal/store"
)

// memSource serves documents from a map. unreadable paths are yielded as
// read errors.
type memSource struct {
	docs       map[string]string
	unreadable []string
}

func (m *memSource) Documents(ctx context.Context) iter.Seq2[loader.Document, error] {
	return func(yield func(loader.Document, error) bool) {
		paths := make([]string, 0, len(m.docs))
		for p := range m.docs {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			if err := ctx.Err(); err != nil {
				yield(loader.Document{}, err)
				return
			}
			if !yield(loader.Document{Path: p, Content: []byte(m.docs[p])}, nil) {
				return
			}
		}
		for _, p := range m.unreadable {
			if !yield(loader.Document{}, rerrors.ReadError(p, errors.New("permission denied"))) {
				return
			}
		}
	}
}

// countingEmbedder wraps the static embedder, counts calls and fails for
// texts containing failMarker.
type countingEmbedder struct {
	*embed.StaticEmbedder
	calls      atomic.Int64
	texts      atomic.Int64
	failMarker string
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{StaticEmbedder: embed.NewStaticEmbedder(), failMarker: "FAIL_EMBED"}
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	c.texts.Add(int64(len(texts)))
	for _, t := range texts {
		if strings.Contains(t, c.failMarker) {
			return nil, errors.New("embedding service unavailable")
		}
	}
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

// countingStore records mutations and can fail upserts or deletes for one
// source.
type countingStore struct {
	store.Collection
	mutations  atomic.Int64
	failUpsert string
	failDelete string
}

func (c *countingStore) Upsert(ctx context.Context, entries []store.Entry) error {
	c.mutations.Add(1)
	if len(entries) > 0 && entries[0].Source == c.failUpsert {
		return rerrors.StoreMutationError("upsert", c.failUpsert, errors.New("disk full"))
	}
	return c.Collection.Upsert(ctx, entries)
}

func (c *countingStore) DeleteBySource(ctx context.Context, path string) (int, error) {
	c.mutations.Add(1)
	if path == c.failDelete {
		return 0, errors.New("database is locked")
	}
	return c.Collection.DeleteBySource(ctx, path)
}

func (c *countingStore) Clear(ctx context.Context) error {
	c.mutations.Add(1)
	return c.Collection.Clear(ctx)
}

// failingManifest loads from an inner store and fails every Save.
type failingManifest struct {
	*manifest.Store
}

func (f failingManifest) Save(manifest.Manifest) error {
	return rerrors.ManifestPersistError(f.Path(), errors.New("read-only file system"))
}

type fixture struct {
	source   *memSource
	embedder *countingEmbedder
	store    *countingStore
	manifest *manifest.Store
	sync     *Synchronizer
}

func newFixture(t *testing.T, docs map[string]string) *fixture {
	t.Helper()
	coll, err := store.Open(context.Background(), store.Options{Collection: "tf_docs"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = coll.Close() })

	f := &fixture{
		source:   &memSource{docs: docs},
		embedder: newCountingEmbedder(),
		store:    &countingStore{Collection: coll},
		manifest: manifest.NewStore(filepath.Join(t.TempDir(), "embeddings", "state.json")),
	}
	f.sync = f.newSync(t, f.manifest)
	return f
}

func (f *fixture) newSync(t *testing.T, m ManifestStore) *Synchronizer {
	t.Helper()
	chunker, err := chunk.New(500, 100)
	require.NoError(t, err)
	s, err := NewSynchronizer(Dependencies{
		Loader:   f.source,
		Chunker:  chunker,
		Embedder: f.embedder,
		Store:    f.store,
		Manifest: m,
	}, Options{Workers: 2, BatchSize: 2})
	require.NoError(t, err)
	return s
}

func (f *fixture) ids(t *testing.T) []string {
	t.Helper()
	ids, err := f.store.ListIDs(context.Background())
	require.NoError(t, err)
	return ids
}

func (f *fixture) resetCounters() {
	f.embedder.calls.Store(0)
	f.embedder.texts.Store(0)
	f.store.mutations.Store(0)
}
