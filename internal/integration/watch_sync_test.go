package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/tfrag/internal/watcher"
)

func startWatcher(t *testing.T, e *env) (*watcher.Watcher, context.Context) {
	t.Helper()
	w, err := watcher.New(e.dataDir, watcher.Options{
		Debounce: 100 * time.Millisecond,
		Filter: watcher.Filter{
			File: e.loader.Eligible,
			Dir:  func(rel string) bool { return !e.loader.ExcludedDir(rel) },
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	go func() { _ = w.Run(ctx) }()
	t.Cleanup(func() { _ = w.Stop() })

	time.Sleep(200 * time.Millisecond)
	return w, ctx
}

func waitBatch(ctx context.Context, t *testing.T, w *watcher.Watcher, path string) {
	t.Helper()
	for {
		select {
		case batch := <-w.Events():
			for _, ev := range batch {
				if ev.Path == path {
					return
				}
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for an event on %s", path)
		}
	}
}

func TestWatch_NewDocumentIsIndexed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping watcher test in short mode")
	}

	// Given: an indexed tree under watch
	e := newEnv(t, docs)
	e.update()
	w, ctx := startWatcher(t, e)

	// When: a document is added and the batch is applied
	e.write("aws/vpc.md", "# aws_vpc\n\nProvides a VPC resource.")
	waitBatch(ctx, t, w, "aws/vpc.md")
	res := e.update()

	// Then: only that document is embedded
	assert.Equal(t, []string{"aws/vpc.md"}, res.Added)
	assert.Len(t, res.Unchanged, 3)
	assert.Contains(t, e.sources(), "aws/vpc.md")
}

func TestWatch_DeletedDocumentIsRemoved(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping watcher test in short mode")
	}

	e := newEnv(t, docs)
	e.update()
	w, ctx := startWatcher(t, e)

	require.NoError(t, os.Remove(filepath.Join(e.dataDir, "aws", "iam_role.md")))
	waitBatch(ctx, t, w, "aws/iam_role.md")
	res := e.update()

	assert.Equal(t, []string{"aws/iam_role.md"}, res.Removed)
	assert.NotContains(t, e.sources(), "aws/iam_role.md")
	m, err := e.manifest.Load()
	require.NoError(t, err)
	assert.NotContains(t, m, "aws/iam_role.md")
}

func TestWatch_IgnoresIneligibleFiles(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping watcher test in short mode")
	}

	e := newEnv(t, docs)
	w, ctx := startWatcher(t, e)

	// An ignored file followed by an eligible one: the first batch seen must
	// not mention the ignored path.
	e.write("notes.txt", "scratch")
	e.write("aws/eip.md", "# aws_eip")

	select {
	case batch := <-w.Events():
		for _, ev := range batch {
			assert.NotEqual(t, "notes.txt", ev.Path)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for events")
	}
}
