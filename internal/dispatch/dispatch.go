package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/intella-ai/toolhub/internal/storage"
	"github.com/intella-ai/toolhub/internal/tools"
	"go.uber.org/zap"
)

// ToolCall is a model-issued request to execute a tool, relayed by the
// chat orchestrator. Arguments arrive as the raw JSON string the model
// produced; malformed JSON is an invalid_arguments failure, not a crash.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	// ProviderID routes directly to one provider instead of resolving
	// by tool name. Routing is per call: one model turn may target
	// several providers.
	ProviderID string `json:"provider_id,omitempty"`
}

// Options carries per-dispatch attribution context.
type Options struct {
	UserID string
	Source string
}

// Dispatcher validates and routes tool calls through the registry and
// records each execution. It never returns a Go error for model-facing
// failure modes: the orchestrator always gets exactly one structured
// result per ToolCall, carrying that call's id.
type Dispatcher struct {
	registry *tools.Registry
	writer   storage.EventWriter
	logger   *zap.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(registry *tools.Registry, writer storage.EventWriter, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		writer:   writer,
		logger:   logger,
	}
}

// Dispatch executes one tool call end to end: parse arguments, validate
// against the tool's schema, route to the owning provider, stamp timing
// and correlation, and write an execution event fire-and-forget.
func (d *Dispatcher) Dispatch(ctx context.Context, call ToolCall, opts Options) *tools.ExecutionResult {
	start := time.Now()

	res := d.run(ctx, call)
	res.ToolCallID = call.ID
	res.ExecutionTime = time.Since(start)

	if !res.Success {
		d.logger.Warn("tool call failed",
			zap.String("tool_name", call.Name),
			zap.String("tool_call_id", call.ID),
			zap.String("code", string(res.Code)),
			zap.String("error", res.Error),
		)
	}

	d.writeEvent(call, opts, res)
	return res
}

// DispatchAll fans out one model turn's tool calls concurrently.
// Results are positionally aligned with calls; no execution order is
// guaranteed beyond each result being attributable to its call id.
func (d *Dispatcher) DispatchAll(ctx context.Context, calls []ToolCall, opts Options) []*tools.ExecutionResult {
	results := make([]*tools.ExecutionResult, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call ToolCall) {
			defer wg.Done()
			results[i] = d.Dispatch(ctx, call, opts)
		}(i, call)
	}
	wg.Wait()
	return results
}

func (d *Dispatcher) run(ctx context.Context, call ToolCall) *tools.ExecutionResult {
	args, failure := parseArguments(call.Arguments)
	if failure != nil {
		return failure
	}

	p, failure := d.registry.Resolve(call.Name, call.ProviderID)
	if failure != nil {
		return failure
	}

	// A degraded discovery-based provider lists no tools until it
	// recovers, so an unlisted name is not rejected here: the registry
	// re-attempts initialization first, and the provider itself reports
	// names it does not own.
	if t, ok := findTool(p, call.Name); ok {
		if failure := validateArguments(t, args); failure != nil {
			failure.ProviderID = p.ID()
			return failure
		}
	}

	return d.registry.Execute(ctx, call.Name, args, call.ProviderID)
}

func (d *Dispatcher) writeEvent(call ToolCall, opts Options, res *tools.ExecutionResult) {
	source := opts.Source
	if source == "" {
		source = "dispatch"
	}
	d.writer.Write(&storage.ToolExecutionEvent{
		RequestID:     uuid.New().String(),
		UserID:        opts.UserID,
		Timestamp:     time.Now().UTC(),
		ProviderID:    res.ProviderID,
		ToolName:      call.Name,
		ToolCallID:    call.ID,
		Success:       res.Success,
		ErrorCode:     string(res.Code),
		ErrorDetail:   res.Error,
		ArgumentBytes: int32(len(call.Arguments)),
		LatencyMs:     float32(float64(res.ExecutionTime) / float64(time.Millisecond)),
		Source:        source,
	})
}

// parseArguments decodes the model's raw argument JSON. An empty string
// means no arguments.
func parseArguments(raw string) (map[string]any, *tools.ExecutionResult) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, tools.Fail(tools.CodeInvalidArguments, "arguments are not a valid JSON object: %v", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func findTool(p tools.Provider, name string) (tools.Tool, bool) {
	for _, t := range p.Tools() {
		if t.Name == name {
			return t, true
		}
	}
	return tools.Tool{}, false
}
