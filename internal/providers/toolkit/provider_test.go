package toolkit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/intella-ai/toolhub/internal/settings"
	"github.com/intella-ai/toolhub/internal/tools"
	"go.uber.org/zap"
)

// mockClient scripts discovery and execution.
type mockClient struct {
	toolkits    []Toolkit
	listErr     error
	execResult  any
	execErr     error
	lastToolkit string
	lastAction  string
	lastArgs    map[string]any
}

func (m *mockClient) ListConnectedToolkits(_ context.Context) ([]Toolkit, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.toolkits, nil
}

func (m *mockClient) ExecuteAction(_ context.Context, toolkit, action string, args map[string]any) (any, error) {
	m.lastToolkit = toolkit
	m.lastAction = action
	m.lastArgs = args
	return m.execResult, m.execErr
}

func gmailToolkit() Toolkit {
	return Toolkit{
		Slug: "gmail",
		Name: "Gmail",
		Actions: []Action{
			{
				Name:        "send_email",
				Description: "Send an email",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"to":      {"type": "string"},
						"subject": {"type": "string"},
						"body":    {"type": "string"}
					},
					"required": ["to", "body"]
				}`),
			},
		},
	}
}

func connectedSettings(slugs ...string) settings.Store {
	connected := make(map[string]bool, len(slugs))
	for _, s := range slugs {
		connected[s] = true
	}
	return settings.NewStaticStore(settings.Settings{ConnectedToolkits: connected})
}

func TestInitialize_DiscoversPrefixedTools(t *testing.T) {
	client := &mockClient{toolkits: []Toolkit{gmailToolkit()}}
	p := NewProvider(client, connectedSettings("gmail"), zap.NewNop())

	if len(p.Tools()) != 0 {
		t.Fatal("tool set must be empty before discovery")
	}
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	ts := p.Tools()
	if len(ts) != 1 {
		t.Fatalf("expected 1 discovered tool, got %d", len(ts))
	}
	if ts[0].Name != "gmail_send_email" {
		t.Errorf("expected slug-prefixed name, got %s", ts[0].Name)
	}
	if len(ts[0].Required) != 2 {
		t.Errorf("expected required list from published schema, got %v", ts[0].Required)
	}
}

func TestInitialize_Error(t *testing.T) {
	client := &mockClient{listErr: errors.New("integrations service down")}
	p := NewProvider(client, connectedSettings(), zap.NewNop())

	if err := p.Initialize(context.Background()); err == nil {
		t.Fatal("expected discovery error to propagate")
	}
	if len(p.Tools()) != 0 {
		t.Error("failed discovery must leave no tools behind")
	}
}

func TestInitialize_SkipsBadSchema(t *testing.T) {
	broken := Toolkit{
		Slug: "calendar",
		Name: "Calendar",
		Actions: []Action{
			{Name: "create_event", Description: "bad schema", Parameters: json.RawMessage(`{"type": "object"}`)},
			{Name: "list_events", Description: "fine"},
		},
	}
	client := &mockClient{toolkits: []Toolkit{broken}}
	p := NewProvider(client, connectedSettings("calendar"), zap.NewNop())

	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	ts := p.Tools()
	if len(ts) != 1 || ts[0].Name != "calendar_list_events" {
		t.Errorf("expected only the valid action, got %v", ts)
	}
}

func TestInitialize_ReplacesSurface(t *testing.T) {
	client := &mockClient{toolkits: []Toolkit{gmailToolkit()}}
	p := NewProvider(client, connectedSettings("gmail"), zap.NewNop())
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("first initialize failed: %v", err)
	}

	client.toolkits = []Toolkit{{
		Slug:    "notion",
		Name:    "Notion",
		Actions: []Action{{Name: "create_page", Description: "Create a page"}},
	}}
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("rediscovery failed: %v", err)
	}

	ts := p.Tools()
	if len(ts) != 1 || ts[0].Name != "notion_create_page" {
		t.Errorf("rediscovery should replace the surface, got %v", ts)
	}
	res := p.Execute(context.Background(), "gmail_send_email", nil)
	if res.Success || res.Code != tools.CodeUnknownTool {
		t.Errorf("stale tool should be unknown after rediscovery, got %+v", res)
	}
}

func TestExecute_RoutesToAction(t *testing.T) {
	client := &mockClient{
		toolkits:   []Toolkit{gmailToolkit()},
		execResult: map[string]any{"message_id": "msg_1"},
	}
	p := NewProvider(client, connectedSettings("gmail"), zap.NewNop())
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	args := map[string]any{"to": "a@example.com", "body": "hi"}
	res := p.Execute(context.Background(), "gmail_send_email", args)
	if !res.Success {
		t.Fatalf("expected success, got %s", res.Error)
	}
	if client.lastToolkit != "gmail" || client.lastAction != "send_email" {
		t.Errorf("expected routing to gmail/send_email, got %s/%s", client.lastToolkit, client.lastAction)
	}
	if client.lastArgs["to"] != "a@example.com" {
		t.Errorf("args not forwarded: %v", client.lastArgs)
	}
}

func TestExecute_DisconnectedToolkit(t *testing.T) {
	client := &mockClient{toolkits: []Toolkit{gmailToolkit()}}
	// Discovered earlier, but the user has since disconnected.
	p := NewProvider(client, connectedSettings(), zap.NewNop())
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	res := p.Execute(context.Background(), "gmail_send_email", nil)
	if res.Success {
		t.Fatal("expected failure for disconnected toolkit")
	}
	if res.Code != tools.CodeExecutionError {
		t.Errorf("expected execution_error, got %s", res.Code)
	}
	if !strings.Contains(res.Error, "not connected") {
		t.Errorf("expected connection message, got %q", res.Error)
	}
}

func TestExecute_ActionError(t *testing.T) {
	client := &mockClient{
		toolkits: []Toolkit{gmailToolkit()},
		execErr:  errors.New("quota exceeded"),
	}
	p := NewProvider(client, connectedSettings("gmail"), zap.NewNop())
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	res := p.Execute(context.Background(), "gmail_send_email", nil)
	if res.Success || res.Code != tools.CodeExecutionError {
		t.Errorf("expected execution_error, got %+v", res)
	}
}

func TestExecute_UnknownTool(t *testing.T) {
	p := NewProvider(&mockClient{}, connectedSettings(), zap.NewNop())

	res := p.Execute(context.Background(), "gmail_send_email", nil)
	if res.Success || res.Code != tools.CodeUnknownTool {
		t.Errorf("expected unknown_tool before discovery, got %+v", res)
	}
}
