package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/intella-ai/toolhub/internal/settings"
)

// PageRequest is the message relayed into page context.
type PageRequest struct {
	ToolName string         `json:"toolName"`
	Args     map[string]any `json:"args"`
}

// PageResponse is the page's reply.
type PageResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PageBridge relays a DOM action into the active page and awaits its
// reply. Round-trips are not guaranteed to complete (the tab may have
// navigated away), so implementations must respect ctx deadlines.
type PageBridge interface {
	Relay(ctx context.Context, req PageRequest) (*PageResponse, error)
}

// ErrBridgeTimeout marks a relay that exceeded its deadline.
var ErrBridgeTimeout = errors.New("page did not respond in time")

// HTTPBridge relays page requests to the extension's relay endpoint.
// The endpoint URL is read from settings on every call.
type HTTPBridge struct {
	settings settings.Store
	client   *http.Client
}

// NewHTTPBridge creates a bridge with a non-retrying HTTP client: DOM
// actions have side effects, so a relayed request is sent at most once.
func NewHTTPBridge(store settings.Store) *HTTPBridge {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 0
	rc.Logger = nil
	return &HTTPBridge{
		settings: store,
		client:   rc.StandardClient(),
	}
}

func (b *HTTPBridge) Relay(ctx context.Context, req PageRequest) (*PageResponse, error) {
	cfg, err := b.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("relay: settings: %w", err)
	}
	if cfg.PageRelayURL == "" {
		return nil, fmt.Errorf("relay: no page relay endpoint configured")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("relay: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.PageRelayURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("relay: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrBridgeTimeout
		}
		return nil, fmt.Errorf("relay: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("relay: status %d: %s", resp.StatusCode, payload)
	}

	var out PageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("relay: decode: %w", err)
	}
	return &out, nil
}

// DefaultRelayTimeout bounds one page round-trip.
const DefaultRelayTimeout = 8 * time.Second
