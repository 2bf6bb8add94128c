package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Aman-CERP/tfrag/internal/chunk"
	"github.com/Aman-CERP/tfrag/internal/embed"
	"github.com/Aman-CERP/tfrag/internal/index"
	"github.com/Aman-CERP/tfrag/internal/llm"
	"github.com/Aman-CERP/tfrag/internal/loader"
	"github.com/Aman-CERP/tfrag/internal/manifest"
	"github.com/Aman-CERP/tfrag/internal/rag"
	"github.com/Aman-CERP/tfrag/internal/store"
	"github.com/Aman-CERP/tfrag/internal/ui"
)

// stack is the set of collaborators built from configuration.
type stack struct {
	embedder embed.Embedder
	store    *store.SQLiteCollection
	manifest *manifest.Store
}

// openStack connects the embedder and opens the vector store.
func (a *app) openStack(ctx context.Context) (*stack, error) {
	emb, err := a.openEmbedder(ctx)
	if err != nil {
		return nil, err
	}
	coll, err := a.openStore(ctx)
	if err != nil {
		_ = emb.Close()
		return nil, err
	}
	slog.Debug("stack_opened",
		slog.String("provider", a.cfg.Embeddings.Provider),
		slog.String("model", emb.ModelName()),
		slog.String("store", a.cfg.StorePath()),
		slog.String("collection", coll.Name()))

	return &stack{embedder: emb, store: coll, manifest: manifest.NewStore(a.cfg.ManifestPath())}, nil
}

func (a *app) openEmbedder(ctx context.Context) (embed.Embedder, error) {
	return embed.New(ctx, embed.Options{
		Provider:  a.cfg.Embeddings.Provider,
		Model:     a.cfg.Embeddings.Model,
		Host:      a.cfg.Embeddings.OllamaHost,
		Timeout:   a.cfg.EmbedTimeout(),
		BatchSize: a.cfg.Embeddings.BatchSize,
		CacheSize: a.cfg.Embeddings.CacheSize,
	})
}

func (a *app) openStore(ctx context.Context) (*store.SQLiteCollection, error) {
	return store.Open(ctx, store.Options{
		Path:       a.cfg.StorePath(),
		Collection: a.cfg.Store.Collection,
		M:          a.cfg.Store.M,
		EfSearch:   a.cfg.Store.EfSearch,
	})
}

func (s *stack) Close() error {
	return errors.Join(s.store.Close(), s.embedder.Close())
}

func (a *app) newLoader() (*loader.Loader, error) {
	return loader.New(loader.Options{
		Root:        a.cfg.DataDir(),
		Extensions:  a.cfg.Loader.Extensions,
		Exclude:     a.cfg.Loader.Exclude,
		MaxFileSize: a.cfg.Loader.MaxFileSize,
	})
}

// newSynchronizer wires the stack into a Synchronizer reporting to progress.
func (a *app) newSynchronizer(s *stack, ld *loader.Loader, progress func(index.Event)) (*index.Synchronizer, error) {
	chunker, err := chunk.New(a.cfg.Chunking.Size, a.cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}
	return index.NewSynchronizer(index.Dependencies{
		Loader:   ld,
		Chunker:  chunker,
		Embedder: s.embedder,
		Store:    s.store,
		Manifest: s.manifest,
	}, index.Options{
		Workers:   a.cfg.Embeddings.Workers,
		BatchSize: a.cfg.Embeddings.BatchSize,
		Progress:  progress,
	})
}

func (a *app) newGenerator() llm.Generator {
	return llm.NewOllamaClient(llm.Config{
		Host:    a.cfg.LLM.Host,
		Model:   a.cfg.LLM.Model,
		Timeout: a.cfg.LLMTimeout(),
	})
}

func (a *app) newPipeline(s *stack, gen llm.Generator) *rag.Pipeline {
	return &rag.Pipeline{
		Embedder:  s.embedder,
		Store:     s.store,
		Generator: gen,
		TopK:      a.cfg.LLM.TopK,
	}
}

func (a *app) embedderInfo(s *stack) ui.EmbedderInfo {
	return ui.EmbedderInfo{
		Backend:    a.cfg.Embeddings.Provider,
		Model:      s.embedder.ModelName(),
		Dimensions: s.embedder.Dimensions(),
	}
}
