// Package llm generates answers with a local Ollama model.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	rerrors "github.com/Aman-CERP/tfrag/internal/errors"
)

const (
	DefaultHost    = "http://localhost:11434"
	DefaultModel   = "codellama"
	DefaultTimeout = 5 * time.Minute
)

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	ModelName() string
}

// Config configures an OllamaClient.
type Config struct {
	Host    string
	Model   string
	Timeout time.Duration
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// OllamaClient calls /api/generate without streaming.
type OllamaClient struct {
	client *http.Client
	config Config
}

var _ Generator = (*OllamaClient)(nil)

// NewOllamaClient applies defaults to cfg.
func NewOllamaClient(cfg Config) *OllamaClient {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &OllamaClient{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
	}
}

// Generate returns the model's full response to prompt.
func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Model: c.config.Model, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", rerrors.NetworkError(fmt.Sprintf("connect to Ollama at %s", c.config.Host), err).
			WithSuggestion("start Ollama with `ollama serve`")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return "", rerrors.New(rerrors.ErrCodeModelNotFound, fmt.Sprintf("model %q is not available", c.config.Model), nil).
			WithSuggestion("run `ollama pull " + c.config.Model + "`")
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", rerrors.New(rerrors.ErrCodeGenerationFailed,
			fmt.Sprintf("generate: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), nil)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", rerrors.New(rerrors.ErrCodeGenerationFailed, "decode generate response", err)
	}
	if out.Error != "" {
		return "", rerrors.New(rerrors.ErrCodeGenerationFailed, out.Error, nil)
	}
	return out.Response, nil
}

// ModelName returns the configured model.
func (c *OllamaClient) ModelName() string { return c.config.Model }
