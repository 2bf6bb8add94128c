package embed

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync/atomic"
	"unicode"
)

// StaticEmbedder hashes identifier tokens and character trigrams into a
// fixed-size vector. It needs no network or model, so it backs offline runs
// and tests.
type StaticEmbedder struct {
	closed atomic.Bool
}

var _ Embedder = (*StaticEmbedder)(nil)

var errStaticClosed = errors.New("embedder is closed")

// hclStopWords are block keywords present in nearly every Terraform file.
var hclStopWords = map[string]bool{
	"resource": true, "variable": true, "output": true, "data": true,
	"module": true, "locals": true, "provider": true, "true": true,
	"false": true, "null": true, "the": true, "and": true, "of": true,
}

const (
	tokenWeight   = 0.7
	trigramWeight = 0.3
)

func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

// Embed returns the unit-length feature vector of text. Blank text yields
// the zero vector.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.closed.Load() {
		return nil, errStaticClosed
	}

	vec := make([]float32, StaticDimensions)
	if strings.TrimSpace(text) == "" {
		return vec, nil
	}

	words := tokenize(text)
	for _, w := range words {
		if !hclStopWords[w] {
			vec[bucket(w)] += tokenWeight
		}
	}

	// Trigrams run over the tokens glued together, so they span word
	// boundaries the way identifiers do.
	glued := []rune(strings.Join(words, ""))
	for i := 3; i <= len(glued); i++ {
		vec[bucket(string(glued[i-3:i]))] += trigramWeight
	}
	return normalizeVector(vec), nil
}

func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i := range texts {
		v, err := e.Embed(ctx, texts[i])
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (e *StaticEmbedder) Dimensions() int { return StaticDimensions }

func (e *StaticEmbedder) ModelName() string { return "static" }

// Available reports true until Close.
func (e *StaticEmbedder) Available(context.Context) bool { return !e.closed.Load() }

func (e *StaticEmbedder) Close() error {
	e.closed.Store(true)
	return nil
}

// tokenize lowercases text and splits it on anything that is not a letter
// or digit, so aws_s3_bucket.logs yields aws, s3, bucket, logs.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return fields
}

func bucket(s string) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % StaticDimensions)
}
