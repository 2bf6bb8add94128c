package integration

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/tfrag/internal/index"
	"github.com/Aman-CERP/tfrag/internal/rag"
)

func TestSyncThenSearch_FindsRelevantDocument(t *testing.T) {
	// Given: an indexed data directory
	e := newEnv(t, docs)
	res := e.update()
	require.Len(t, res.Added, 3)

	// When: retrieving for a question about bucket versioning
	p := &rag.Pipeline{Embedder: e.embedder, Store: e.store, TopK: 2}
	hits, err := p.Retrieve(context.Background(), "s3 bucket versioning lifecycle", 0)

	// Then: the S3 page ranks first
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "aws/s3_bucket.md", hits[0].Source)
}

func TestSync_StatePersistsAcrossReopen(t *testing.T) {
	// Given: an index written to disk
	e := newEnv(t, docs)
	first := e.update()
	chunks := first.Chunks

	// When: the store is reopened and nothing changed
	e.reopen()
	second := e.update()

	// Then: no document is re-embedded and the store agrees with the manifest
	assert.Len(t, second.Unchanged, 3)
	assert.Zero(t, second.EmbedCalls)
	check, err := index.NewConsistencyChecker(e.manifest, e.store).Check(context.Background())
	require.NoError(t, err)
	assert.True(t, check.Consistent(), check.Inconsistencies)
	assert.Equal(t, chunks, check.Chunks)
}

func TestSync_EditRemovesStaleChunks(t *testing.T) {
	// Given: a long document indexed as several chunks
	long := "# aws_instance\n\n" + strings.Repeat("An EC2 instance argument reference line. ", 30)
	e := newEnv(t, map[string]string{"aws/instance.md": long})
	e.update()
	before := e.sources()["aws/instance.md"]
	require.Greater(t, before, 1)

	// When: it shrinks to a single chunk
	e.write("aws/instance.md", "# aws_instance\n\nDeprecated.")
	res := e.update()

	// Then: only the new chunk remains
	assert.Equal(t, []string{"aws/instance.md"}, res.Updated)
	assert.Equal(t, 1, e.sources()["aws/instance.md"])
}

func TestRebuild_MatchesUpdateFromScratch(t *testing.T) {
	e := newEnv(t, docs)
	e.update()
	want := e.sources()

	res, err := e.syncer.Rebuild(context.Background())

	require.NoError(t, err)
	assert.Len(t, res.Added, 3)
	assert.Equal(t, want, e.sources())
	m, err := e.manifest.Load()
	require.NoError(t, err)
	assert.Len(t, m, 3)
}
