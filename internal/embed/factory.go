package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Options selects and configures an embedder.
type Options struct {
	// Provider is "ollama" or "static".
	Provider  string
	Model     string
	Host      string
	Timeout   time.Duration
	BatchSize int
	// CacheSize enables an LRU in front of the provider when positive.
	CacheSize int
}

// New builds the configured embedder. Provider selection is explicit: a
// failing Ollama is an error, never a silent switch to static vectors, since
// mixing vector spaces would corrupt the collection.
func New(ctx context.Context, opts Options) (Embedder, error) {
	var inner Embedder
	switch strings.ToLower(opts.Provider) {
	case "", "ollama":
		e, err := NewOllamaEmbedder(ctx, OllamaConfig{
			Host:      opts.Host,
			Model:     opts.Model,
			Timeout:   opts.Timeout,
			BatchSize: opts.BatchSize,
		})
		if err != nil {
			return nil, err
		}
		inner = e
	case "static":
		inner = NewStaticEmbedder()
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", opts.Provider)
	}

	slog.Debug("embedder_ready",
		slog.String("provider", opts.Provider),
		slog.String("model", inner.ModelName()),
		slog.Int("dimensions", inner.Dimensions()))

	if opts.CacheSize > 0 {
		return NewCachedEmbedder(inner, opts.CacheSize), nil
	}
	return inner, nil
}
