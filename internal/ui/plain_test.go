package ui

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlain() (*PlainRenderer, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewPlainRenderer(NewConfig(&buf)), &buf
}

func TestPlainRenderer_ProgressLines(t *testing.T) {
	r, buf := newPlain()
	require.NoError(t, r.Start(context.Background()))

	// When: the run goes through its stages
	r.UpdateProgress(ProgressEvent{Stage: StageScanning})
	r.UpdateProgress(ProgressEvent{Stage: StageScanning})
	r.UpdateProgress(ProgressEvent{Stage: StageApplying, Current: 1, Total: 3, CurrentFile: "aws/s3.md"})
	r.UpdateProgress(ProgressEvent{Stage: StagePersisting, Message: "writing manifest"})

	// Then: an uncounted stage prints once, counted events print each time
	out := buf.String()
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("[SCAN] Scanning")))
	assert.Contains(t, out, "[APPLY] 1/3 aws/s3.md\n")
	assert.Contains(t, out, "[SAVE] writing manifest\n")
	require.NoError(t, r.Stop())
}

func TestPlainRenderer_Errors(t *testing.T) {
	r, buf := newPlain()

	r.AddError(ErrorEvent{File: "a.md", Err: errors.New("embed failed")})
	r.AddError(ErrorEvent{Err: errors.New("slow"), IsWarn: true})

	assert.Contains(t, buf.String(), "ERROR: a.md: embed failed\n")
	assert.Contains(t, buf.String(), "WARN: slow\n")
}

func TestPlainRenderer_CompleteUpToDate(t *testing.T) {
	r, buf := newPlain()

	r.Complete(CompletionStats{Mode: "update", Unchanged: 12, Duration: 40 * time.Millisecond})

	assert.Contains(t, buf.String(), "Index up to date (update): 12 documents unchanged")
	assert.NotContains(t, buf.String(), "Chunks written")
}

func TestPlainRenderer_CompleteWithChanges(t *testing.T) {
	r, buf := newPlain()

	r.Complete(CompletionStats{
		Mode: "rebuild", Added: 3, Updated: 1, Removed: 2, Unchanged: 4,
		Skipped: 1, Failed: 1, Chunks: 17, EmbedCalls: 9, ManifestSaved: true,
		Embedder: EmbedderInfo{Backend: "ollama", Model: "nomic-embed-text", Dimensions: 768},
	})

	out := buf.String()
	assert.Contains(t, out, "Sync complete (rebuild): 3 added, 1 updated, 2 removed, 4 unchanged")
	assert.Contains(t, out, "Chunks written: 17 (9 embedding calls)")
	assert.Contains(t, out, "Skipped (unreadable, kept in index): 1")
	assert.Contains(t, out, "Failed: 1")
	assert.Contains(t, out, "Embedder: ollama (nomic-embed-text, 768 dims)")
	assert.NotContains(t, out, "Manifest not saved")
}
