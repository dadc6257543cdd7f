package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/intella-ai/toolhub/internal/auth"
	"github.com/intella-ai/toolhub/internal/dispatch"
	"github.com/intella-ai/toolhub/internal/storage"
	"github.com/intella-ai/toolhub/internal/tools"
	"go.uber.org/zap"
)

const testKey = "isk_test_key_1234567890"

// apiProvider is a stub tools.Provider with per-tool toggling.
type apiProvider struct {
	id      string
	set     *tools.ToolSet
	execute func(ctx context.Context, name string, args map[string]any) *tools.ExecutionResult
}

func (p *apiProvider) ID() string          { return p.id }
func (p *apiProvider) Name() string        { return p.id }
func (p *apiProvider) Description() string { return "test provider" }
func (p *apiProvider) Version() string     { return "1.0.0" }
func (p *apiProvider) Tools() []tools.Tool { return p.set.Enabled() }
func (p *apiProvider) SetToolEnabled(name string, enabled bool) bool {
	return p.set.SetEnabled(name, enabled)
}
func (p *apiProvider) Execute(ctx context.Context, name string, args map[string]any) *tools.ExecutionResult {
	if p.execute != nil {
		return p.execute(ctx, name, args)
	}
	return tools.Ok("done")
}

// nullWriter drops events.
type nullWriter struct{}

func (nullWriter) Write(*storage.ToolExecutionEvent) {}
func (nullWriter) Close()                            {}

func clickTool() tools.Tool {
	return tools.Tool{
		Name:        "click_element",
		Description: "click",
		Parameters: map[string]tools.Parameter{
			"selector": {Kind: tools.KindString},
		},
		Required: []string{"selector"},
		Enabled:  true,
	}
}

func newTestServer(t *testing.T, providers ...tools.Provider) http.Handler {
	t.Helper()
	logger := zap.NewNop()
	registry := tools.NewRegistry(logger)
	for _, p := range providers {
		registry.Register(context.Background(), p)
	}
	deps := &Dependencies{
		Registry:   registry,
		Dispatcher: dispatch.NewDispatcher(registry, nullWriter{}, logger),
		Auth:       auth.NewStaticAuthenticator(),
		Logger:     logger,
	}
	return NewRouter(deps)
}

func doJSON(t *testing.T, h http.Handler, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if authed {
		r.Header.Set("Authorization", "Bearer "+testKey)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestCatalog_RequiresAuth(t *testing.T) {
	h := newTestServer(t, &apiProvider{id: "browser", set: tools.MustToolSet(clickTool())})

	w := doJSON(t, h, http.MethodGet, "/v1/tools", "", false)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", w.Code)
	}
}

func TestCatalog_ListsTools(t *testing.T) {
	h := newTestServer(t, &apiProvider{id: "browser", set: tools.MustToolSet(clickTool())})

	w := doJSON(t, h, http.MethodGet, "/v1/tools", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Tools []toolDef `json:"tools"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(resp.Tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(resp.Tools))
	}
	def := resp.Tools[0]
	if def.Name != "click_element" || def.ProviderID != "browser" {
		t.Errorf("unexpected catalog entry: %+v", def)
	}
	if def.Parameters["type"] != "object" {
		t.Errorf("expected JSON Schema parameters, got %v", def.Parameters)
	}
}

func TestExecute_BadRequests(t *testing.T) {
	h := newTestServer(t, &apiProvider{id: "browser", set: tools.MustToolSet(clickTool())})

	w := doJSON(t, h, http.MethodPost, "/v1/tools/execute", `{not json`, true)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad body, got %d", w.Code)
	}

	w = doJSON(t, h, http.MethodPost, "/v1/tools/execute", `{"id": "c1"}`, true)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing name, got %d", w.Code)
	}
}

func TestExecute_FailureIsPayloadNotTransport(t *testing.T) {
	h := newTestServer(t, &apiProvider{id: "browser", set: tools.MustToolSet(clickTool())})

	w := doJSON(t, h, http.MethodPost, "/v1/tools/execute",
		`{"id": "c1", "name": "no_such_tool"}`, true)
	if w.Code != http.StatusOK {
		t.Fatalf("execution failures must answer 200, got %d", w.Code)
	}

	var res tools.ExecutionResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if res.Success || res.Code != tools.CodeUnknownTool {
		t.Errorf("expected unknown_tool payload, got %+v", res)
	}
	if res.ToolCallID != "c1" {
		t.Errorf("expected call id echoed, got %q", res.ToolCallID)
	}
}

func TestExecute_CollidingNames_RoutedByProviderID(t *testing.T) {
	first := &apiProvider{
		id:  "browser",
		set: tools.MustToolSet(clickTool()),
		execute: func(_ context.Context, _ string, _ map[string]any) *tools.ExecutionResult {
			return tools.Ok("browser clicked")
		},
	}
	second := &apiProvider{
		id:  "automation",
		set: tools.MustToolSet(clickTool()),
		execute: func(_ context.Context, _ string, _ map[string]any) *tools.ExecutionResult {
			return tools.Ok("automation clicked")
		},
	}
	h := newTestServer(t, first, second)

	// Bare name: first-registered provider wins.
	w := doJSON(t, h, http.MethodPost, "/v1/tools/execute",
		`{"id": "c1", "name": "click_element", "arguments": "{\"selector\": \"#go\"}"}`, true)
	var res tools.ExecutionResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if res.Result != "browser clicked" || res.ProviderID != "browser" {
		t.Errorf("expected first-registered routing, got %+v", res)
	}

	// Explicit provider_id routes to the other owner.
	w = doJSON(t, h, http.MethodPost, "/v1/tools/execute",
		`{"id": "c2", "name": "click_element", "provider_id": "automation", "arguments": "{\"selector\": \"#go\"}"}`, true)
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if res.Result != "automation clicked" || res.ProviderID != "automation" {
		t.Errorf("expected provider_id routing, got %+v", res)
	}
}

func TestExecuteBatch(t *testing.T) {
	h := newTestServer(t, &apiProvider{id: "browser", set: tools.MustToolSet(clickTool())})

	body := `{"calls": [
		{"id": "c1", "name": "click_element", "arguments": "{\"selector\": \"#a\"}"},
		{"id": "c2", "name": "no_such_tool"}
	]}`
	w := doJSON(t, h, http.MethodPost, "/v1/tools/execute-batch", body, true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Results []tools.ExecutionResult `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}
	if resp.Results[0].ToolCallID != "c1" || !resp.Results[0].Success {
		t.Errorf("unexpected first result: %+v", resp.Results[0])
	}
	if resp.Results[1].ToolCallID != "c2" || resp.Results[1].Success {
		t.Errorf("unexpected second result: %+v", resp.Results[1])
	}
}

func TestExecuteBatch_Empty(t *testing.T) {
	h := newTestServer(t, &apiProvider{id: "browser", set: tools.MustToolSet(clickTool())})

	w := doJSON(t, h, http.MethodPost, "/v1/tools/execute-batch", `{"calls": []}`, true)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty batch, got %d", w.Code)
	}
}

func TestProviderLifecycleEndpoints(t *testing.T) {
	h := newTestServer(t, &apiProvider{id: "browser", set: tools.MustToolSet(clickTool())})

	w := doJSON(t, h, http.MethodGet, "/api/toolhub/providers", "", false)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Providers []tools.ProviderStatus `json:"providers"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(resp.Providers) != 1 || resp.Providers[0].State != tools.StateReady {
		t.Fatalf("unexpected provider report: %+v", resp.Providers)
	}

	// Disable hides the provider's tools from the catalog.
	w = doJSON(t, h, http.MethodPost, "/api/toolhub/providers/browser/disable", "", false)
	if w.Code != http.StatusOK {
		t.Fatalf("disable failed: %d", w.Code)
	}
	w = doJSON(t, h, http.MethodGet, "/v1/tools", "", true)
	var cat struct {
		Tools []toolDef `json:"tools"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &cat); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(cat.Tools) != 0 {
		t.Errorf("disabled provider should contribute no tools, got %d", len(cat.Tools))
	}

	w = doJSON(t, h, http.MethodPost, "/api/toolhub/providers/ghost/disable", "", false)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown provider, got %d", w.Code)
	}
}

func TestToolToggleEndpoints(t *testing.T) {
	h := newTestServer(t, &apiProvider{id: "browser", set: tools.MustToolSet(clickTool())})

	w := doJSON(t, h, http.MethodPost, "/api/toolhub/providers/browser/tools/click_element/disable", "", false)
	if w.Code != http.StatusOK {
		t.Fatalf("tool disable failed: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, h, http.MethodGet, "/v1/tools", "", true)
	var cat struct {
		Tools []toolDef `json:"tools"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &cat); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(cat.Tools) != 0 {
		t.Errorf("disabled tool should be hidden, got %d", len(cat.Tools))
	}

	w = doJSON(t, h, http.MethodPost, "/api/toolhub/providers/browser/tools/no_such_tool/enable", "", false)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown tool, got %d", w.Code)
	}
}

func TestEnsureReady_PopulatesEmptyRegistry(t *testing.T) {
	logger := zap.NewNop()
	registry := tools.NewRegistry(logger)
	deps := &Dependencies{
		Registry:   registry,
		Dispatcher: dispatch.NewDispatcher(registry, nullWriter{}, logger),
		Auth:       auth.NewStaticAuthenticator(),
		Factory: func(_ context.Context) []tools.Provider {
			return []tools.Provider{&apiProvider{id: "browser", set: tools.MustToolSet(clickTool())}}
		},
		Logger: logger,
	}
	h := NewRouter(deps)

	// The first catalog request after a cold start repopulates the registry.
	w := doJSON(t, h, http.MethodGet, "/v1/tools", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var cat struct {
		Tools []toolDef `json:"tools"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &cat); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(cat.Tools) != 1 {
		t.Errorf("expected repopulated catalog, got %d tools", len(cat.Tools))
	}
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t)
	w := doJSON(t, h, http.MethodGet, "/healthz", "", false)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}
