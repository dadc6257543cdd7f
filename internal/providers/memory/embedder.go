package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/intella-ai/toolhub/internal/settings"
)

// Embedder turns query text into a semantic vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

const embedTimeout = 10 * time.Second

// HTTPEmbedder calls the memory service's embeddings endpoint.
// Credentials and base URL are read from the settings store on every
// call: the user may have entered an API key after this client was
// constructed.
type HTTPEmbedder struct {
	settings settings.Store
	client   *http.Client
}

// NewHTTPEmbedder creates an embedder with a retrying HTTP client.
func NewHTTPEmbedder(store settings.Store) *HTTPEmbedder {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	return &HTTPEmbedder{
		settings: store,
		client:   rc.StandardClient(),
	}
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	cfg, err := e.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("embed: settings: %w", err)
	}
	if cfg.MemoryAPIKey == "" || cfg.MemoryBaseURL == "" {
		return nil, fmt.Errorf("embed: memory service not configured")
	}

	model := cfg.EmbeddingModel
	if model == "" {
		model = "text-embedding-3-small"
	}

	body, err := json.Marshal(embedRequest{Model: model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.MemoryBaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", cfg.MemoryAPIKey)
	req.Header.Set("x-user-id", cfg.MemoryUserID)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embed: status %d: %s", resp.StatusCode, payload)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("embed: decode: %w", err)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embed: empty embedding in response")
	}
	return out.Data[0].Embedding, nil
}
