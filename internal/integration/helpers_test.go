// Package integration exercises the loader, synchronizer, store and
// watcher together against real files.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/tfrag/internal/chunk"
	"github.com/Aman-CERP/tfrag/internal/embed"
	"github.com/Aman-CERP/tfrag/internal/index"
	"github.com/Aman-CERP/tfrag/internal/loader"
	"github.com/Aman-CERP/tfrag/internal/manifest"
	"github.com/Aman-CERP/tfrag/internal/store"
)

type env struct {
	t        *testing.T
	dataDir  string
	dbPath   string
	manifest *manifest.Store
	loader   *loader.Loader
	embedder embed.Embedder
	store    *store.SQLiteCollection
	syncer   *index.Synchronizer
}

func newEnv(t *testing.T, docs map[string]string) *env {
	t.Helper()
	root := t.TempDir()
	e := &env{
		t:        t,
		dataDir:  filepath.Join(root, "data"),
		dbPath:   filepath.Join(root, "embeddings", "tfrag.db"),
		manifest: manifest.NewStore(filepath.Join(root, "embeddings", "state.json")),
		embedder: embed.NewStaticEmbedder(),
	}
	require.NoError(t, os.MkdirAll(e.dataDir, 0o755))
	for rel, text := range docs {
		e.write(rel, text)
	}

	ld, err := loader.New(loader.Options{
		Root:       e.dataDir,
		Extensions: []string{".md", ".tf"},
		Exclude:    []string{"**/.terraform/**"},
	})
	require.NoError(t, err)
	e.loader = ld

	e.open()
	t.Cleanup(func() { _ = e.store.Close() })
	return e
}

// open (re)opens the store from disk and builds a synchronizer over it.
func (e *env) open() {
	e.t.Helper()
	coll, err := store.Open(context.Background(), store.Options{Path: e.dbPath, Collection: "tfdocs"})
	require.NoError(e.t, err)
	e.store = coll

	ch, err := chunk.New(200, 40)
	require.NoError(e.t, err)
	e.syncer, err = index.NewSynchronizer(index.Dependencies{
		Loader:   e.loader,
		Chunker:  ch,
		Embedder: e.embedder,
		Store:    coll,
		Manifest: e.manifest,
	}, index.Options{Workers: 2, BatchSize: 4})
	require.NoError(e.t, err)
}

func (e *env) reopen() {
	e.t.Helper()
	require.NoError(e.t, e.store.Close())
	e.open()
}

func (e *env) write(rel, text string) {
	e.t.Helper()
	full := filepath.Join(e.dataDir, filepath.FromSlash(rel))
	require.NoError(e.t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(e.t, os.WriteFile(full, []byte(text), 0o644))
}

func (e *env) update() *index.Result {
	e.t.Helper()
	res, err := e.syncer.Update(context.Background())
	require.NoError(e.t, err)
	return res
}

func (e *env) sources() map[string]int {
	e.t.Helper()
	src, err := e.store.Sources(context.Background())
	require.NoError(e.t, err)
	return src
}

var docs = map[string]string{
	"aws/s3_bucket.md": "# aws_s3_bucket\n\nProvides an S3 bucket resource. Bucket versioning and lifecycle rules are configured with separate resources.",
	"aws/iam_role.md":  "# aws_iam_role\n\nProvides an IAM role. The assume_role_policy argument holds the trust policy document.",
	"gcp/network.tf":   "resource \"google_compute_network\" \"vpc\" {\n  name                    = \"main\"\n  auto_create_subnetworks = false\n}\n",
}
