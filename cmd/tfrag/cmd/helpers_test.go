package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// project is a temporary project directory with a data/ tree, using the
// static embedder so no Ollama is needed.
type project struct {
	t   *testing.T
	dir string
}

func newProject(t *testing.T, docs map[string]string) *project {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("TFRAG_EMBEDDINGS_PROVIDER", "static")
	t.Setenv("NO_COLOR", "1")

	p := &project{t: t, dir: t.TempDir()}
	for rel, text := range docs {
		p.write(rel, text)
	}
	return p
}

func (p *project) path(rel string) string {
	return filepath.Join(p.dir, "data", filepath.FromSlash(rel))
}

func (p *project) write(rel, text string) {
	p.t.Helper()
	full := p.path(rel)
	require.NoError(p.t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(p.t, os.WriteFile(full, []byte(text), 0o644))
}

func (p *project) remove(rel string) {
	p.t.Helper()
	require.NoError(p.t, os.Remove(p.path(rel)))
}

func (p *project) manifest() map[string]string {
	p.t.Helper()
	data, err := os.ReadFile(filepath.Join(p.dir, "embeddings", "state.json"))
	require.NoError(p.t, err)
	m := map[string]string{}
	require.NoError(p.t, json.Unmarshal(data, &m))
	return m
}

// run executes tfrag with args against the project and returns stdout and
// stderr.
func (p *project) run(stdin io.Reader, args ...string) (string, string, error) {
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	cmd.SetArgs(append([]string{"--dir", p.dir}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// fakeLLM serves /api/generate with a fixed answer and records prompts.
type fakeLLM struct {
	*httptest.Server
	calls      atomic.Int32
	status     atomic.Int32
	lastPrompt atomic.Value
}

func newFakeLLM(t *testing.T, answer string) *fakeLLM {
	t.Helper()
	f := &fakeLLM{}
	f.status.Store(http.StatusOK)
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		f.calls.Add(1)
		var req struct {
			Prompt string `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.lastPrompt.Store(req.Prompt)
		if status := int(f.status.Load()); status != http.StatusOK {
			http.Error(w, "boom", status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"response": answer, "done": true})
	}))
	t.Cleanup(f.Close)
	t.Setenv("TFRAG_LLM_HOST", f.URL)
	return f
}

func (f *fakeLLM) prompt() string {
	s, _ := f.lastPrompt.Load().(string)
	return s
}

var terraformDocs = map[string]string{
	"aws/s3_bucket.md": "# aws_s3_bucket\n\nProvides an S3 bucket resource with versioning and lifecycle rules.",
	"aws/iam_role.md":  "# aws_iam_role\n\nProvides an IAM role with an assume role policy document.",
	"main.tf":          "resource \"google_compute_network\" \"vpc\" {\n  name = \"main\"\n}\n",
}
