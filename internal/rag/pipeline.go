// Package rag answers questions from retrieved chunks.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/Aman-CERP/tfrag/internal/embed"
	rerrors "github.com/Aman-CERP/tfrag/internal/errors"
	"github.com/Aman-CERP/tfrag/internal/llm"
	"github.com/Aman-CERP/tfrag/internal/store"
)

// DefaultTopK is the number of chunks placed in the prompt.
const DefaultTopK = 4

var promptTemplate = template.Must(template.New("prompt").Parse(`
You are an expert in Terraform and clean code for IaC.

Answer the user's question using the provided context.
If something is missing from the context, state it clearly, but try to suggest a best practice.

### CONTEXT
{{range .Hits}}
# Source: {{.Source}}
{{.Document}}
{{end}}

### QUESTION
{{.Question}}

### ANSWER
`))

// Answer is a generated answer with the chunks it was grounded on.
type Answer struct {
	Question string
	Text     string
	Sources  []store.Hit
}

// SourcePaths returns the distinct sources in rank order.
func (a *Answer) SourcePaths() []string {
	seen := make(map[string]bool, len(a.Sources))
	var out []string
	for _, h := range a.Sources {
		if !seen[h.Source] {
			seen[h.Source] = true
			out = append(out, h.Source)
		}
	}
	return out
}

// Pipeline retrieves with Embedder and Store and answers with Generator.
type Pipeline struct {
	Embedder  embed.Embedder
	Store     store.Collection
	Generator llm.Generator
	TopK      int
}

func (p *Pipeline) topK(k int) int {
	if k > 0 {
		return k
	}
	if p.TopK > 0 {
		return p.TopK
	}
	return DefaultTopK
}

// Retrieve returns the k chunks nearest to question. k <= 0 uses TopK.
func (p *Pipeline) Retrieve(ctx context.Context, question string, k int) ([]store.Hit, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, rerrors.New(rerrors.ErrCodeQueryEmpty, "question is empty", nil)
	}
	vec, err := p.Embedder.Embed(ctx, question)
	if err != nil {
		return nil, rerrors.New(rerrors.ErrCodeQueryFailed, "embed question", err)
	}
	hits, err := p.Store.Query(ctx, vec, p.topK(k))
	if err != nil {
		return nil, err
	}
	slog.Debug("retrieved", slog.Int("hits", len(hits)), slog.Int("k", p.topK(k)))
	return hits, nil
}

// BuildPrompt renders the question with hits as context blocks.
func BuildPrompt(question string, hits []store.Hit) string {
	var sb strings.Builder
	_ = promptTemplate.Execute(&sb, struct {
		Question string
		Hits     []store.Hit
	}{Question: question, Hits: hits})
	return sb.String()
}

// Ask retrieves context for question and generates an answer.
func (p *Pipeline) Ask(ctx context.Context, question string, k int) (*Answer, error) {
	if p.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	hits, err := p.Retrieve(ctx, question, k)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		slog.Warn("no_context_found", slog.String("hint", "run `tfrag index --update` first"))
	}

	text, err := p.Generator.Generate(ctx, BuildPrompt(strings.TrimSpace(question), hits))
	if err != nil {
		return nil, err
	}
	return &Answer{Question: question, Text: strings.TrimSpace(text), Sources: hits}, nil
}
