package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/tfrag/internal/embed"
	rerrors "github.com/Aman-CERP/tfrag/internal/errors"
	"github.com/Aman-CERP/tfrag/internal/store"
)

type recordingGenerator struct {
	prompt string
	answer string
}

func (g *recordingGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.answer, nil
}

func (g *recordingGenerator) ModelName() string { return "recording" }

func newPipeline(t *testing.T, docs map[string]string) (*Pipeline, *recordingGenerator) {
	t.Helper()
	ctx := context.Background()
	e := embed.NewStaticEmbedder()
	coll, err := store.Open(ctx, store.Options{Collection: "tf_docs"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = coll.Close() })

	for path, text := range docs {
		v, err := e.Embed(ctx, text)
		require.NoError(t, err)
		require.NoError(t, coll.Upsert(ctx, []store.Entry{{ID: path + "-0", Source: path, Document: text, Vector: v}}))
	}
	gen := &recordingGenerator{answer: "  Enable versioning.  \n"}
	return &Pipeline{Embedder: e, Store: coll, Generator: gen, TopK: 2}, gen
}

func TestPipeline_Ask(t *testing.T) {
	// Given: indexed S3 and EKS snippets
	p, gen := newPipeline(t, map[string]string{
		"s3.tf":  `resource "aws_s3_bucket" "logs" { bucket = "logs" }`,
		"eks.tf": `module "eks" { cluster_name = "prod" }`,
	})

	// When: asking about the bucket
	ans, err := p.Ask(context.Background(), "How is the aws_s3_bucket logs configured?", 1)

	// Then: the S3 chunk is in the prompt and sources are reported
	require.NoError(t, err)
	assert.Equal(t, "Enable versioning.", ans.Text)
	assert.Equal(t, []string{"s3.tf"}, ans.SourcePaths())
	assert.Contains(t, gen.prompt, "# Source: s3.tf\n")
	assert.NotContains(t, gen.prompt, "eks.tf")
	assert.Contains(t, gen.prompt, "### QUESTION\nHow is the aws_s3_bucket logs configured?\n")
}

func TestPipeline_RetrieveDefaultsToTopK(t *testing.T) {
	p, _ := newPipeline(t, map[string]string{"a.tf": "alpha", "b.tf": "beta", "c.tf": "gamma"})

	hits, err := p.Retrieve(context.Background(), "alpha", 0)

	require.NoError(t, err)
	assert.Len(t, hits, 2)
	assert.Equal(t, "a.tf", hits[0].Source)
}

func TestPipeline_EmptyQuestion(t *testing.T) {
	p, _ := newPipeline(t, nil)

	_, err := p.Ask(context.Background(), "   ", 0)

	assert.Equal(t, rerrors.ErrCodeQueryEmpty, rerrors.GetCode(err))
}

func TestBuildPrompt_Format(t *testing.T) {
	prompt := BuildPrompt("Why?", []store.Hit{
		{Source: "a.tf", Document: "A"},
		{Source: "docs/b.md", Document: "B"},
	})

	assert.True(t, strings.HasPrefix(prompt, "\nYou are an expert in Terraform and clean code for IaC.\n"))
	assert.Contains(t, prompt, "### CONTEXT\n\n# Source: a.tf\nA\n\n# Source: docs/b.md\nB\n")
	assert.True(t, strings.HasSuffix(prompt, "### ANSWER\n"))
}

func TestAnswer_SourcePathsDeduplicates(t *testing.T) {
	a := &Answer{Sources: []store.Hit{{Source: "x.tf"}, {Source: "y.tf"}, {Source: "x.tf"}}}
	assert.Equal(t, []string{"x.tf", "y.tf"}, a.SourcePaths())
}
