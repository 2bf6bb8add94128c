package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `{"time":"2026-03-01T10:00:00.000Z","level":"DEBUG","msg":"stack_opened","provider":"static"}
{"time":"2026-03-01T10:00:01.000Z","level":"INFO","msg":"sync_completed","added":2}
not json at all
{"time":"2026-03-01T10:00:02.500Z","level":"ERROR","msg":"watch_sync_failed","code":"ERR_502_EMBEDDING_FAILED"}
`

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tfrag.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestViewer_Tail(t *testing.T) {
	path := writeLog(t, sampleLog)
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	entries, err := v.Tail(path, 2)

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.False(t, entries[0].Valid)
	assert.Equal(t, "watch_sync_failed", entries[1].Msg)
}

func TestViewer_TailFilters(t *testing.T) {
	path := writeLog(t, sampleLog)

	t.Run("level keeps at or above", func(t *testing.T) {
		v := NewViewer(ViewerConfig{Level: "info", NoColor: true}, &bytes.Buffer{})
		entries, err := v.Tail(path, 50)
		require.NoError(t, err)
		// The non-JSON line has no level and is kept.
		assert.Len(t, entries, 3)
		assert.Equal(t, "sync_completed", entries[0].Msg)
	})

	t.Run("pattern", func(t *testing.T) {
		v := NewViewer(ViewerConfig{Pattern: regexp.MustCompile(`ERR_5\d\d`), NoColor: true}, &bytes.Buffer{})
		entries, err := v.Tail(path, 50)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "ERROR", entries[0].Level)
	})
}

func TestViewer_TailMissingFile(t *testing.T) {
	v := NewViewer(ViewerConfig{}, &bytes.Buffer{})
	_, err := v.Tail(filepath.Join(t.TempDir(), "none.log"), 10)
	assert.Error(t, err)
}

func TestViewer_Format(t *testing.T) {
	var buf bytes.Buffer
	v := NewViewer(ViewerConfig{NoColor: true}, &buf)

	v.Print([]Entry{
		parseLine(`{"time":"2026-03-01T10:00:01.250Z","level":"INFO","msg":"sync_completed","removed":1,"added":2}`),
		parseLine("plain text"),
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "10:00:01.250 INFO  sync_completed added=2 removed=1", lines[0])
	assert.Equal(t, "plain text", lines[1])
}

func TestViewer_Follow(t *testing.T) {
	// Given: a log file being followed
	path := writeLog(t, sampleLog)
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	entries := make(chan Entry, 4)
	done := make(chan error, 1)
	go func() { done <- v.Follow(ctx, path, entries) }()
	time.Sleep(50 * time.Millisecond)

	// When: a record is appended
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"time":"2026-03-01T10:00:03Z","level":"INFO","msg":"watch_batch"}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// Then: only the new record is delivered
	select {
	case e := <-entries:
		assert.Equal(t, "watch_batch", e.Msg)
	case <-time.After(2 * time.Second):
		t.Fatal("no entry delivered")
	}

	cancel()
	assert.NoError(t, <-done)
}
