package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogs_TailWithLevel(t *testing.T) {
	p := newProject(t, nil)
	logFile := filepath.Join(t.TempDir(), "tfrag.log")
	require.NoError(t, os.WriteFile(logFile, []byte(
		`{"time":"2026-03-01T10:00:00Z","level":"INFO","msg":"sync_completed"}`+"\n"+
			`{"time":"2026-03-01T10:00:01Z","level":"WARN","msg":"read_failed","path":"a.md"}`+"\n"), 0o644))

	out, errOut, err := p.run(nil, "logs", "--file", logFile, "--level", "warn")

	require.NoError(t, err)
	assert.Contains(t, errOut, "Log file: "+logFile)
	assert.NotContains(t, out, "sync_completed")
	assert.Contains(t, out, "WARN  read_failed path=a.md")
}

func TestLogs_InvalidFilter(t *testing.T) {
	p := newProject(t, nil)

	_, _, err := p.run(nil, "logs", "--file", "x.log", "--filter", "(")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}
