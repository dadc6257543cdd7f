package toolkit

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

// Action is one invokable action a toolkit exposes.
type Action struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	// Parameters is the action's input schema in JSON Schema shape,
	// as published by the integrations service.
	Parameters json.RawMessage `json:"parameters"`
}

// Toolkit is one third-party integration and its action surface.
type Toolkit struct {
	Slug    string   `json:"slug"`
	Name    string   `json:"name"`
	Actions []Action `json:"actions"`
}

// Client talks to the integrations service.
type Client interface {
	// ListConnectedToolkits returns the toolkits the user has
	// authorized, with their action definitions.
	ListConnectedToolkits(ctx context.Context) ([]Toolkit, error)
	// ExecuteAction runs one toolkit action and returns its
	// provider-specific payload.
	ExecuteAction(ctx context.Context, toolkit, action string, args map[string]any) (any, error)
}

const clientTimeout = 30 * time.Second

// HTTPClient is the real integrations-service client. The bearer
// credential and base URL come from the settings store on every call.
type HTTPClient struct {
	settings settings.Store
	client   *http.Client
}

// NewHTTPClient creates an integrations client with retries on
// transient failures.
func NewHTTPClient(store settings.Store) *HTTPClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMax = 3 * time.Second
	rc.Logger = nil
	return &HTTPClient{
		settings: store,
		client:   rc.StandardClient(),
	}
}

func (c *HTTPClient) ListConnectedToolkits(ctx context.Context) ([]Toolkit, error) {
	var out struct {
		Toolkits []Toolkit `json:"toolkits"`
	}
	if err := c.call(ctx, http.MethodGet, "/v1/toolkits/connected", nil, &out); err != nil {
		return nil, err
	}
	return out.Toolkits, nil
}

func (c *HTTPClient) ExecuteAction(ctx context.Context, toolkit, action string, args map[string]any) (any, error) {
	body := map[string]any{"arguments": args}
	var out struct {
		Result any    `json:"result"`
		Error  string `json:"error"`
	}
	path := fmt.Sprintf("/v1/toolkits/%s/actions/%s/execute", toolkit, action)
	if err := c.call(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, fmt.Errorf("toolkit %s: %s", toolkit, out.Error)
	}
	return out.Result, nil
}

func (c *HTTPClient) call(ctx context.Context, method, path string, body, out any) error {
	cfg, err := c.settings.Load(ctx)
	if err != nil {
		return fmt.Errorf("toolkit client: settings: %w", err)
	}
	if cfg.ToolkitAPIKey == "" || cfg.ToolkitBaseURL == "" {
		return fmt.Errorf("toolkit client: integrations service not configured")
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("toolkit client: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	ctx, cancel := context.WithTimeout(ctx, clientTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, cfg.ToolkitBaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("toolkit client: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.ToolkitAPIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("toolkit client: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("toolkit client: status %d: %s", resp.StatusCode, payload)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
