package mcp

import (
	"path"
	"strings"

	"github.com/Aman-CERP/tfrag/internal/store"
)

const (
	defaultLimit = 4
	maxLimit     = 20
)

// SearchDocsInput is the input of the search_docs tool.
type SearchDocsInput struct {
	Query string `json:"query" jsonschema:"natural language question about the Terraform documentation"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of chunks, default 4"`
}

// SearchDocsOutput is the output of the search_docs tool.
type SearchDocsOutput struct {
	Results []SearchResult `json:"results" jsonschema:"chunks ordered by similarity, best first"`
}

// SearchResult is one retrieved chunk.
type SearchResult struct {
	Source     string  `json:"source" jsonschema:"document path relative to the data directory"`
	ChunkIndex int     `json:"chunk_index" jsonschema:"position of the chunk within the document"`
	Content    string  `json:"content" jsonschema:"chunk text"`
	Score      float64 `json:"score" jsonschema:"similarity between 0 and 1"`
}

// IndexStatusInput is the (empty) input of the index_status tool.
type IndexStatusInput struct{}

// IndexStatusOutput is the output of the index_status tool.
type IndexStatusOutput struct {
	DataDir      string        `json:"data_dir"`
	Manifest     string        `json:"manifest"`
	Documents    int           `json:"documents" jsonschema:"documents recorded in the manifest"`
	Chunks       int           `json:"chunks" jsonschema:"chunks stored in the collection"`
	Collection   string        `json:"collection"`
	Embeddings   EmbeddingInfo `json:"embeddings"`
	Consistent   bool          `json:"consistent" jsonschema:"true when every manifest entry matches the stored chunks"`
	Issues       []string      `json:"issues,omitempty"`
	LastModified string        `json:"last_modified,omitempty" jsonschema:"manifest modification time, RFC3339"`
}

// EmbeddingInfo describes the active embedder.
type EmbeddingInfo struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
	Available  bool   `json:"available"`
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	default:
		return limit
	}
}

func toSearchResult(h store.Hit) SearchResult {
	return SearchResult{
		Source:     h.Source,
		ChunkIndex: h.Index,
		Content:    h.Document,
		Score:      float64(h.Score),
	}
}

// mimeTypeForPath returns the MIME type of a documentation file.
func mimeTypeForPath(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".md", ".markdown", ".mdx":
		return "text/markdown"
	case ".tf", ".hcl", ".tfvars":
		return "text/x-hcl"
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "text/x-yaml"
	default:
		return "text/plain"
	}
}
