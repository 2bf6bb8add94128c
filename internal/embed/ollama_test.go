package embed

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrors "github.com/Aman-CERP/tfrag/internal/errors"
)

func TestNewOllamaEmbedder_DetectsDimensions(t *testing.T) {
	// Given: an Ollama server with nomic-embed-text installed
	fake := &fakeOllama{models: []string{"nomic-embed-text:latest"}, dims: 8}
	srv := fake.start(t)

	// When: creating the embedder
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	// Then: dimensions come from a probe embedding
	assert.Equal(t, 8, e.Dimensions())
	assert.Equal(t, "nomic-embed-text", e.ModelName())
	assert.Equal(t, int64(1), fake.embedCalls.Load())
}

func TestNewOllamaEmbedder_ModelMissing(t *testing.T) {
	// Given: a server without the model
	fake := &fakeOllama{models: []string{"llama3:8b"}, dims: 8}
	srv := fake.start(t)

	// When: creating the embedder
	_, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})

	// Then: a model-not-found error with a pull hint is returned
	require.Error(t, err)
	assert.Equal(t, rerrors.ErrCodeModelNotFound, rerrors.GetCode(err))
	re, ok := rerrors.As(err)
	require.True(t, ok)
	assert.Contains(t, re.Suggestion, "ollama pull nomic-embed-text")
}

func TestNewOllamaEmbedder_Unreachable(t *testing.T) {
	// Given: nothing listening
	_, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: "http://127.0.0.1:1"})

	// Then: a retryable network error
	require.Error(t, err)
	assert.True(t, rerrors.IsRetryable(err))
}

func TestOllamaEmbedder_EmbedBatch_SplitsBatches(t *testing.T) {
	// Given: batch size 2
	fake := &fakeOllama{models: []string{"nomic-embed-text"}, dims: 4}
	srv := fake.start(t)
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host: srv.URL, Model: "nomic-embed-text", BatchSize: 2, SkipHealthCheck: true,
	})
	require.NoError(t, err)

	// When: embedding five texts
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c", "d", "e"})

	// Then: three requests are made and vectors are unit length
	require.NoError(t, err)
	require.Len(t, vecs, 5)
	assert.Equal(t, int64(3), fake.embedCalls.Load())
	for _, v := range vecs {
		assert.InDelta(t, 1.0, vectorMagnitude(v), 0.0001)
	}
	assert.Equal(t, "nomic-embed-text", fake.lastModel.Load())
	assert.Equal(t, 4, e.Dimensions())
}

func TestOllamaEmbedder_ClientErrorIsNotRetried(t *testing.T) {
	// Given: the server rejects requests with 400
	fake := &fakeOllama{dims: 4, embedStatus: http.StatusBadRequest}
	srv := fake.start(t)
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL, SkipHealthCheck: true})
	require.NoError(t, err)

	// When: embedding
	_, err = e.Embed(context.Background(), "x")

	// Then: exactly one request is made
	require.Error(t, err)
	assert.Equal(t, int64(1), fake.embedCalls.Load())
}

func TestOllamaEmbedder_ServerErrorIsRetried(t *testing.T) {
	// Given: the server fails with 500 and one retry is allowed
	fake := &fakeOllama{dims: 4, embedStatus: http.StatusInternalServerError}
	srv := fake.start(t)
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host: srv.URL, MaxRetries: 1, SkipHealthCheck: true,
	})
	require.NoError(t, err)

	// When: embedding
	_, err = e.Embed(context.Background(), "x")

	// Then: the request is attempted twice
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 1 retries")
	assert.Equal(t, int64(2), fake.embedCalls.Load())
}

func TestOllamaEmbedder_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	// Given: a failing server and a breaker opening after three failures
	fake := &fakeOllama{dims: 4, embedStatus: http.StatusServiceUnavailable}
	srv := fake.start(t)
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host: srv.URL, MaxRetries: 2, SkipHealthCheck: true,
	})
	require.NoError(t, err)

	// When: the first call exhausts its three attempts
	_, err = e.Embed(context.Background(), "x")
	require.Error(t, err)
	require.Equal(t, int64(3), fake.embedCalls.Load())

	// Then: the next call fails fast without reaching the server
	start := time.Now()
	_, err = e.Embed(context.Background(), "y")
	require.Error(t, err)
	assert.ErrorIs(t, err, rerrors.ErrCircuitOpen)
	assert.Equal(t, int64(3), fake.embedCalls.Load())
	assert.Less(t, time.Since(start), time.Second)
}

func TestOllamaEmbedder_ClosedRejectsCalls(t *testing.T) {
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{SkipHealthCheck: true})
	require.NoError(t, err)
	require.NoError(t, e.Close())

	_, err = e.Embed(context.Background(), "x")
	assert.Error(t, err)
}

func TestModelInstalled(t *testing.T) {
	tags := ollamaTagsResponse{}
	for _, n := range []string{"nomic-embed-text:latest", "codellama:7b"} {
		tags.Models = append(tags.Models, struct {
			Name string `json:"name"`
		}{Name: n})
	}

	assert.True(t, modelInstalled("nomic-embed-text", tags))
	assert.True(t, modelInstalled("codellama:7b", tags))
	assert.False(t, modelInstalled("codellama:13b", tags))
	assert.False(t, modelInstalled("mxbai-embed-large", tags))
}
