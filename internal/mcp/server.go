package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/tfrag/internal/index"
	"github.com/Aman-CERP/tfrag/internal/rag"
	"github.com/Aman-CERP/tfrag/pkg/version"
)

// Options configures a Server. Pipeline and Manifest are required.
type Options struct {
	Pipeline   *rag.Pipeline
	Manifest   index.ManifestStore
	DataDir    string
	Provider   string
	Collection string
	Logger     *slog.Logger
}

// Server exposes retrieval over MCP. It never mutates the index.
type Server struct {
	mcp      *mcp.Server
	pipeline *rag.Pipeline
	manifest index.ManifestStore
	checker  *index.ConsistencyChecker
	opts     Options
	logger   *slog.Logger

	mu        sync.Mutex
	resources map[string]bool
}

// NewServer creates a server with the search_docs and index_status tools.
func NewServer(opts Options) (*Server, error) {
	if opts.Pipeline == nil || opts.Pipeline.Store == nil || opts.Pipeline.Embedder == nil {
		return nil, errors.New("pipeline with embedder and store is required")
	}
	if opts.Manifest == nil {
		return nil, errors.New("manifest store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		pipeline:  opts.Pipeline,
		manifest:  opts.Manifest,
		checker:   index.NewConsistencyChecker(opts.Manifest, opts.Pipeline.Store),
		opts:      opts,
		logger:    logger,
		resources: make(map[string]bool),
	}
	s.mcp = mcp.NewServer(&mcp.Implementation{Name: "tfrag", Version: version.Version}, nil)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_docs",
		Description: "Semantic search over the indexed Terraform documentation. Returns the most similar chunks with their source paths.",
	}, s.searchDocs)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Report the number of indexed documents and chunks, the active embedding model and whether the index is consistent.",
	}, s.indexStatus)

	s.logger.Debug("mcp tools registered", slog.Int("count", 2))
}

func (s *Server) searchDocs(ctx context.Context, _ *mcp.CallToolRequest, in SearchDocsInput) (
	*mcp.CallToolResult,
	SearchDocsOutput,
	error,
) {
	requestID := generateRequestID()
	start := time.Now()
	limit := clampLimit(in.Limit)

	n, err := s.pipeline.Store.Count(ctx)
	if err != nil {
		return nil, SearchDocsOutput{}, MapError(err)
	}
	if n == 0 {
		return nil, SearchDocsOutput{}, MapError(ErrIndexEmpty)
	}

	hits, err := s.pipeline.Retrieve(ctx, in.Query, limit)
	if err != nil {
		s.logger.Warn("search_docs failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return nil, SearchDocsOutput{}, MapError(err)
	}

	out := SearchDocsOutput{Results: make([]SearchResult, 0, len(hits))}
	for _, h := range hits {
		out.Results = append(out.Results, toSearchResult(h))
	}

	s.logger.Info("search_docs completed",
		slog.String("request_id", requestID),
		slog.Int("limit", limit),
		slog.Int("result_count", len(out.Results)),
		slog.Duration("duration", time.Since(start)))
	return nil, out, nil
}

func (s *Server) indexStatus(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	IndexStatusOutput,
	error,
) {
	emb := s.pipeline.Embedder
	out := IndexStatusOutput{
		DataDir:    s.opts.DataDir,
		Manifest:   s.manifest.Path(),
		Collection: s.opts.Collection,
		Embeddings: EmbeddingInfo{
			Provider:   s.opts.Provider,
			Model:      emb.ModelName(),
			Dimensions: emb.Dimensions(),
			Available:  emb.Available(ctx),
		},
	}

	if info, err := os.Stat(s.manifest.Path()); err == nil {
		out.LastModified = info.ModTime().UTC().Format(time.RFC3339)
	}

	m, err := s.manifest.Load()
	if err != nil {
		return nil, IndexStatusOutput{}, MapError(err)
	}
	out.Documents = len(m)

	res, err := s.checker.Check(ctx)
	if err != nil {
		return nil, IndexStatusOutput{}, MapError(err)
	}
	out.Chunks = res.Chunks
	out.Consistent = res.Healthy()
	if len(res.Inconsistencies) > 0 {
		out.Issues = res.Strings()
	}
	return nil, out, nil
}

// Serve runs the server on stdio until ctx is canceled or the client
// disconnects.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp server starting", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("mcp server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp server stopped")
	return nil
}

// generateRequestID creates a short id for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
