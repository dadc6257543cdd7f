// Package toolkit implements the third-party integration provider. The
// tool surface is not static: connected toolkits are discovered from
// the integrations service at initialization, and each discovered
// action becomes a tool. Execution re-checks the toolkit's connection
// state from settings on every call, since the user can disconnect an
// account at any time.
package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/intella-ai/toolhub/internal/settings"
	"github.com/intella-ai/toolhub/internal/tools"
	"go.uber.org/zap"
)

const (
	ProviderID = "toolkit"
	version    = "0.9.1"
)

// Provider is the third-party integration tool provider.
type Provider struct {
	set      *tools.ToolSet
	client   Client
	settings settings.Store
	logger   *zap.Logger

	mu      sync.RWMutex
	origins map[string]origin // tool name → owning toolkit/action
}

type origin struct {
	toolkit string
	action  string
}

// NewProvider creates the toolkit provider. Its tool set is empty
// until Initialize discovers connected toolkits.
func NewProvider(client Client, cfg settings.Store, logger *zap.Logger) *Provider {
	return &Provider{
		set:      tools.MustToolSet(),
		client:   client,
		settings: cfg,
		logger:   logger,
		origins:  make(map[string]origin),
	}
}

func (p *Provider) ID() string          { return ProviderID }
func (p *Provider) Name() string        { return "Integrations" }
func (p *Provider) Description() string { return "Actions on the user's connected third-party services" }
func (p *Provider) Version() string     { return version }

func (p *Provider) Tools() []tools.Tool { return p.set.Enabled() }

// SetToolEnabled toggles one discovered tool.
func (p *Provider) SetToolEnabled(name string, enabled bool) bool {
	return p.set.SetEnabled(name, enabled)
}

// Initialize discovers connected toolkits and rebuilds the tool set.
// Called again on recovery after a failed first attempt, and safe to
// call repeatedly: each run replaces the discovered surface.
func (p *Provider) Initialize(ctx context.Context) error {
	toolkits, err := p.client.ListConnectedToolkits(ctx)
	if err != nil {
		return fmt.Errorf("toolkit discovery: %w", err)
	}

	var discovered []tools.Tool
	origins := make(map[string]origin)
	for _, tk := range toolkits {
		for _, action := range tk.Actions {
			t, err := actionTool(tk, action)
			if err != nil {
				p.logger.Warn("skipping toolkit action with bad schema",
					zap.String("toolkit", tk.Slug),
					zap.String("action", action.Name),
					zap.Error(err),
				)
				continue
			}
			discovered = append(discovered, t)
			origins[t.Name] = origin{toolkit: tk.Slug, action: action.Name}
		}
	}

	if err := p.set.Reset(discovered...); err != nil {
		return fmt.Errorf("toolkit discovery: %w", err)
	}

	p.mu.Lock()
	p.origins = origins
	p.mu.Unlock()

	p.logger.Info("toolkit discovery complete",
		zap.Int("toolkits", len(toolkits)),
		zap.Int("tools", len(discovered)),
	)
	return nil
}

// actionTool converts one published action definition into a tool.
// Tool names are prefixed with the toolkit slug so two toolkits with
// the same action name cannot collide within this provider.
func actionTool(tk Toolkit, action Action) (tools.Tool, error) {
	t := tools.Tool{
		Name:        tk.Slug + "_" + action.Name,
		Description: fmt.Sprintf("%s (%s)", action.Description, tk.Name),
		Parameters:  map[string]tools.Parameter{},
		Enabled:     true,
		ProviderID:  ProviderID,
	}

	if len(action.Parameters) > 0 {
		var schema map[string]any
		if err := json.Unmarshal(action.Parameters, &schema); err != nil {
			return tools.Tool{}, fmt.Errorf("parameters: %w", err)
		}
		props, required, err := tools.ParametersFromSchema(schema)
		if err != nil {
			return tools.Tool{}, fmt.Errorf("parameters: %w", err)
		}
		t.Parameters = props
		t.Required = required
	}
	return t, nil
}

func (p *Provider) Execute(ctx context.Context, name string, args map[string]any) *tools.ExecutionResult {
	p.mu.RLock()
	org, ok := p.origins[name]
	p.mu.RUnlock()
	if !ok {
		return tools.Fail(tools.CodeUnknownTool, "toolkit provider has no tool %q", name)
	}

	// Connection state is re-read on every call: discovery may be
	// stale if the user disconnected the account since.
	cfg, err := p.settings.Load(ctx)
	if err != nil {
		return tools.Fail(tools.CodeExecutionError, "settings unavailable: %v", err)
	}
	if !cfg.ToolkitConnected(org.toolkit) {
		return tools.Fail(tools.CodeExecutionError, "toolkit %q is not connected", org.toolkit)
	}

	result, err := p.client.ExecuteAction(ctx, org.toolkit, org.action, args)
	if err != nil {
		return tools.Fail(tools.CodeExecutionError, "%v", err)
	}
	return tools.Ok(result)
}

var (
	_ tools.Provider    = (*Provider)(nil)
	_ tools.Initializer = (*Provider)(nil)
)
