package ui

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusRenderer_Render(t *testing.T) {
	var buf bytes.Buffer
	r := NewStatusRenderer(&buf, true)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	err := r.Render(StatusInfo{
		DataDir: "data", ManifestPath: "embeddings/state.json",
		Documents: 3, Chunks: 11, Collection: "tf_docs", StoreSize: 2048,
		LastIndexed:    now.Add(-2 * time.Hour),
		Embedder:       EmbedderInfo{Backend: "ollama", Model: "nomic-embed-text", Dimensions: 768},
		EmbedderStatus: "ready",
		Consistent:     false,
		Issues:         []string{"orphan_source: old.md"},
		Pending:        &PendingInfo{Added: []string{"new.md"}, Removed: []string{"old.md"}, Unchanged: 2},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Index status: data")
	assert.Contains(t, out, "Chunks:       11")
	assert.Contains(t, out, "tf_docs (2.0 KB)")
	assert.Contains(t, out, "2 hours ago")
	assert.Contains(t, out, "1 issues")
	assert.Contains(t, out, "orphan_source: old.md")
	assert.Contains(t, out, "1 added, 0 updated, 1 removed")
	assert.Contains(t, out, "+ new.md")
	assert.Contains(t, out, "- old.md")
}

func TestStatusRenderer_NothingPending(t *testing.T) {
	var buf bytes.Buffer
	r := NewStatusRenderer(&buf, true)

	require.NoError(t, r.Render(StatusInfo{Consistent: true, Pending: &PendingInfo{Unchanged: 3}}))

	assert.Contains(t, buf.String(), "none, index is up to date")
	assert.Contains(t, buf.String(), "Consistency:  ok")
}

func TestStatusRenderer_RenderJSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewStatusRenderer(&buf, true)

	require.NoError(t, r.RenderJSON(StatusInfo{Documents: 2, Collection: "tf_docs"}))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, float64(2), got["documents"])
	assert.Equal(t, "tf_docs", got["collection"])
	assert.NotContains(t, got, "pending")
	assert.NotContains(t, got, "last_indexed")
}

func TestFormatTime(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "just now", formatTime(now.Add(-10*time.Second), now))
	assert.Equal(t, "1 minute ago", formatTime(now.Add(-time.Minute), now))
	assert.Equal(t, "3 days ago", formatTime(now.Add(-72*time.Hour), now))
	assert.Equal(t, "2026-02-01 12:00", formatTime(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC), now))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "3.0 MB", FormatBytes(3*1024*1024))
}
