// Package browser implements the browser-action tool provider: DOM
// commands executed by relaying to the active page under a bounded
// timeout. A page that never answers becomes a structured timeout
// failure, never a hung tool call.
package browser

import (
	"context"
	"errors"
	"time"

	"github.com/intella-ai/toolhub/internal/tools"
	"go.uber.org/zap"
)

const (
	ProviderID = "browser"
	version    = "1.0.3"
)

// Provider is the browser-action tool provider.
type Provider struct {
	set     *tools.ToolSet
	bridge  PageBridge
	timeout time.Duration
	logger  *zap.Logger
}

// NewProvider creates the browser provider. A zero timeout selects
// DefaultRelayTimeout.
func NewProvider(bridge PageBridge, timeout time.Duration, logger *zap.Logger) *Provider {
	if timeout == 0 {
		timeout = DefaultRelayTimeout
	}
	return &Provider{
		set:     toolTable(),
		bridge:  bridge,
		timeout: timeout,
		logger:  logger,
	}
}

func selectorParam(desc string) tools.Parameter {
	return tools.Parameter{Kind: tools.KindString, Description: desc}
}

func toolTable() *tools.ToolSet {
	return tools.MustToolSet(
		tools.Tool{
			Name:        "click_element",
			Description: "Click the element matching a CSS selector on the current page.",
			Parameters: map[string]tools.Parameter{
				"selector": selectorParam("CSS selector of the element to click."),
			},
			Required:   []string{"selector"},
			Enabled:    true,
			ProviderID: ProviderID,
		},
		tools.Tool{
			Name:        "fill_input",
			Description: "Type a value into the input matching a CSS selector.",
			Parameters: map[string]tools.Parameter{
				"selector": selectorParam("CSS selector of the input."),
				"value":    {Kind: tools.KindString, Description: "Text to type."},
			},
			Required:   []string{"selector", "value"},
			Enabled:    true,
			ProviderID: ProviderID,
		},
		tools.Tool{
			Name:        "extract_text",
			Description: "Extract the visible text of the element matching a CSS selector, or the whole page if no selector is given.",
			Parameters: map[string]tools.Parameter{
				"selector": selectorParam("CSS selector to extract from. Optional."),
			},
			Enabled:    true,
			ProviderID: ProviderID,
		},
		tools.Tool{
			Name:        "scroll_to_element",
			Description: "Scroll the page until the element matching a CSS selector is visible.",
			Parameters: map[string]tools.Parameter{
				"selector": selectorParam("CSS selector of the element to scroll to."),
			},
			Required:   []string{"selector"},
			Enabled:    true,
			ProviderID: ProviderID,
		},
		tools.Tool{
			Name:        "get_page_overview",
			Description: "Get the current page's title, URL and a summary of its interactive elements.",
			Parameters:  map[string]tools.Parameter{},
			Enabled:     true,
			ProviderID:  ProviderID,
		},
	)
}

func (p *Provider) ID() string          { return ProviderID }
func (p *Provider) Name() string        { return "Browser" }
func (p *Provider) Description() string { return "DOM actions on the user's active page" }
func (p *Provider) Version() string     { return version }

func (p *Provider) Tools() []tools.Tool { return p.set.Enabled() }

// SetToolEnabled toggles one tool; disabled tools stay in the set.
func (p *Provider) SetToolEnabled(name string, enabled bool) bool {
	return p.set.SetEnabled(name, enabled)
}

// Execute relays the named tool into page context. All browser tools
// share the same relay shape, so dispatch here is uniform.
func (p *Provider) Execute(ctx context.Context, name string, args map[string]any) *tools.ExecutionResult {
	if _, ok := p.set.Get(name); !ok {
		return tools.Fail(tools.CodeUnknownTool, "browser provider has no tool %q", name)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.bridge.Relay(ctx, PageRequest{ToolName: name, Args: args})
	if err != nil {
		if errors.Is(err, ErrBridgeTimeout) || errors.Is(err, context.DeadlineExceeded) {
			p.logger.Warn("page relay timed out",
				zap.String("tool_name", name),
				zap.Duration("timeout", p.timeout),
			)
			return tools.Fail(tools.CodeExecutionError, "timeout: page did not respond within %s", p.timeout)
		}
		return tools.Fail(tools.CodeExecutionError, "page action failed: %v", err)
	}

	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "page action failed"
		}
		return tools.Fail(tools.CodeExecutionError, "%s", msg)
	}
	return tools.Ok(resp.Data)
}

var _ tools.Provider = (*Provider)(nil)
