package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MaxResourceSize caps the documents served as resources (1MB).
const MaxResourceSize = 1024 * 1024

const resourceScheme = "tfdoc://"

// RegisterResources exposes every document listed in the manifest as a
// resource. Calling it again adds documents indexed since the last call.
func (s *Server) RegisterResources(ctx context.Context) (int, error) {
	if s.opts.DataDir == "" {
		return 0, fmt.Errorf("data directory is required to serve resources")
	}
	m, err := s.manifest.Load()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, p := range m.Paths() {
		if err := ctx.Err(); err != nil {
			return added, err
		}
		if s.resources[p] {
			continue
		}
		s.mcp.AddResource(&mcp.Resource{
			Name:     path.Base(p),
			URI:      resourceScheme + p,
			MIMEType: mimeTypeForPath(p),
		}, s.resourceHandler(p))
		s.resources[p] = true
		added++
	}
	s.logger.Info("mcp resources registered", slog.Int("added", added), slog.Int("total", len(s.resources)))
	return added, nil
}

func (s *Server) resourceHandler(rel string) mcp.ResourceHandler {
	return func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return s.readDocument(ctx, rel)
	}
}

// readDocument returns a document that is still listed in the manifest.
func (s *Server) readDocument(_ context.Context, rel string) (*mcp.ReadResourceResult, error) {
	if !isValidPath(rel) {
		return nil, NewInvalidParamsError(fmt.Sprintf("invalid path: %s", rel))
	}
	m, err := s.manifest.Load()
	if err != nil {
		return nil, MapError(err)
	}
	if _, ok := m[rel]; !ok {
		return nil, &MCPError{Code: ErrCodeDocNotFound, Message: fmt.Sprintf("document not indexed: %s", rel)}
	}

	full := filepath.Join(s.opts.DataDir, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &MCPError{Code: ErrCodeDocNotFound, Message: fmt.Sprintf("document not found: %s", rel)}
		}
		return nil, MapError(err)
	}
	if info.Size() > MaxResourceSize {
		return nil, &MCPError{
			Code:    ErrCodeDocTooLarge,
			Message: fmt.Sprintf("document too large: %d bytes (max %d)", info.Size(), MaxResourceSize),
		}
	}

	content, err := os.ReadFile(full)
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      resourceScheme + rel,
			MIMEType: mimeTypeForPath(rel),
			Text:     string(content),
		}},
	}, nil
}

// isValidPath rejects absolute paths and anything escaping the data root.
func isValidPath(p string) bool {
	if p == "" || filepath.IsAbs(p) || strings.HasPrefix(p, "/") {
		return false
	}
	if len(p) >= 2 && p[1] == ':' {
		return false
	}
	for _, part := range strings.Split(path.Clean(p), "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
