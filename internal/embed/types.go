// Package embed turns chunk text into vectors.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	DefaultBatchSize  = 32
	MaxBatchSize      = 256
	DefaultTimeout    = 60 * time.Second
	DefaultMaxRetries = 3

	// StaticDimensions is the vector size of StaticEmbedder.
	StaticDimensions = 256
)

// Embedder generates vector embeddings for text. Implementations are
// deterministic for identical input and safe for concurrent use.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding size, or 0 if not yet known.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available reports whether the embedder can serve requests.
	Available(ctx context.Context) bool

	Close() error
}

// normalizeVector scales v to unit length. Zero vectors are returned as-is.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
