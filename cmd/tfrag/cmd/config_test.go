package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/tfrag/configs"
	"github.com/Aman-CERP/tfrag/internal/config"
)

func TestConfigInit(t *testing.T) {
	// Given: an empty project directory
	p := newProject(t, nil)

	// When: initializing configuration
	out, _, err := p.run(nil, "config", "init")

	// Then: the template and the data directory exist
	require.NoError(t, err)
	assert.Contains(t, out, "Created project configuration")
	data, err := os.ReadFile(filepath.Join(p.dir, ".tfrag.yaml"))
	require.NoError(t, err)
	assert.Equal(t, configs.ProjectConfigTemplate, string(data))
	assert.DirExists(t, filepath.Join(p.dir, "data"))

	// When: running it again without --force
	require.NoError(t, os.WriteFile(filepath.Join(p.dir, ".tfrag.yaml"), []byte("version: 1\n"), 0o644))
	out, _, err = p.run(nil, "config", "init")

	// Then: the existing file is kept
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
	data, err = os.ReadFile(filepath.Join(p.dir, ".tfrag.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))
}

func TestConfigTemplate_LoadsAsDefaults(t *testing.T) {
	p := newProject(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(p.dir, ".tfrag.yaml"), []byte(configs.ProjectConfigTemplate), 0o644))

	cfg, err := config.Load(p.dir)

	require.NoError(t, err)
	assert.Equal(t, config.DefaultCollection, cfg.Store.Collection)
	assert.Equal(t, 500, cfg.Chunking.Size)
}

func TestConfigShow_ReflectsOverrides(t *testing.T) {
	p := newProject(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(p.dir, ".tfrag.yaml"),
		[]byte("store:\n  collection: provider_docs\n"), 0o644))
	t.Setenv("TFRAG_TOP_K", "7")

	out, _, err := p.run(nil, "config", "show", "--json")

	require.NoError(t, err)
	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, "provider_docs", cfg.Store.Collection)
	assert.Equal(t, 7, cfg.LLM.TopK)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
}
