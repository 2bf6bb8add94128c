package embed

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// countingEmbedder returns a fixed vector and counts calls.
type countingEmbedder struct {
	embedCalls atomic.Int64
	batchCalls atomic.Int64
	batchTexts atomic.Int64
	dims       int
}

func (m *countingEmbedder) vector() []float32 {
	v := make([]float32, m.dims)
	for i := range v {
		v[i] = float32(i+1) * 0.01
	}
	return v
}

func (m *countingEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	m.embedCalls.Add(1)
	return m.vector(), nil
}

func (m *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.batchCalls.Add(1)
	m.batchTexts.Add(int64(len(texts)))
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = m.vector()
	}
	return out, nil
}

func (m *countingEmbedder) Dimensions() int                  { return m.dims }
func (m *countingEmbedder) ModelName() string                { return "counting" }
func (m *countingEmbedder) Available(_ context.Context) bool { return true }
func (m *countingEmbedder) Close() error                     { return nil }

func vectorMagnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// fakeOllama serves /api/tags and /api/embed. embedStatus, when non-zero,
// replaces successful embed responses.
type fakeOllama struct {
	models      []string
	dims        int
	embedStatus int
	embedCalls  atomic.Int64
	lastModel   atomic.Value
}

func (f *fakeOllama) start(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		var resp ollamaTagsResponse
		for _, m := range f.models {
			resp.Models = append(resp.Models, struct {
				Name string `json:"name"`
			}{Name: m})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		f.embedCalls.Add(1)
		if f.embedStatus != 0 {
			http.Error(w, "boom", f.embedStatus)
			return
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.lastModel.Store(req.Model)
		resp := ollamaEmbedResponse{Model: req.Model}
		for i := range req.Input {
			v := make([]float64, f.dims)
			v[i%f.dims] = 3
			v[(i+1)%f.dims] = 4
			resp.Embeddings = append(resp.Embeddings, v)
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}
