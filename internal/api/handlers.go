package api

import (
	"net/http"
	"time"

	"github.com/intella-ai/toolhub/internal/dispatch"
	"github.com/intella-ai/toolhub/internal/tools"
)

// toolDef is the model-facing catalog entry: the JSON-Schema-shaped
// definition plus enough identity to disambiguate name collisions.
type toolDef struct {
	ID          string         `json:"id"`
	ProviderID  string         `json:"provider_id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

func (d *Dependencies) handleCatalog(w http.ResponseWriter, r *http.Request) {
	d.ensureReady(r)

	catalog := d.Registry.Catalog()
	defs := make([]toolDef, 0, len(catalog))
	for _, t := range catalog {
		defs = append(defs, toolDef{
			ID:          t.ID,
			ProviderID:  t.ProviderID,
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Schema(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": defs})
}

// executeRequest is one model-issued tool call.
type executeRequest struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Arguments  string `json:"arguments"`
	ProviderID string `json:"provider_id,omitempty"`
}

// executeResponse wraps an execution result. Execution failures are
// payload, not transport errors: the endpoint answers 200 so the
// orchestrator can always feed the result back into the conversation.
type executeResponse struct {
	*tools.ExecutionResult
	ExecutionTimeMs float64 `json:"execution_time_ms"`
}

func wrapResult(res *tools.ExecutionResult) executeResponse {
	return executeResponse{
		ExecutionResult: res,
		ExecutionTimeMs: float64(res.ExecutionTime) / float64(time.Millisecond),
	}
}

func (d *Dependencies) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "name is required"})
		return
	}

	d.ensureReady(r)
	user := userFromContext(r.Context())

	res := d.Dispatcher.Dispatch(r.Context(), dispatch.ToolCall{
		ID:         req.ID,
		Name:       req.Name,
		Arguments:  req.Arguments,
		ProviderID: req.ProviderID,
	}, dispatch.Options{
		UserID: user.UserID,
		Source: "api",
	})

	writeJSON(w, http.StatusOK, wrapResult(res))
}

type executeBatchRequest struct {
	Calls []executeRequest `json:"calls"`
}

// handleExecuteBatch fans out one model turn's tool calls. No ordering
// is guaranteed across calls; each result carries its call id.
func (d *Dependencies) handleExecuteBatch(w http.ResponseWriter, r *http.Request) {
	var req executeBatchRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "invalid request body"})
		return
	}
	if len(req.Calls) == 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "calls must not be empty"})
		return
	}

	d.ensureReady(r)
	user := userFromContext(r.Context())

	calls := make([]dispatch.ToolCall, len(req.Calls))
	for i, call := range req.Calls {
		calls[i] = dispatch.ToolCall{
			ID:         call.ID,
			Name:       call.Name,
			Arguments:  call.Arguments,
			ProviderID: call.ProviderID,
		}
	}
	dispatched := d.Dispatcher.DispatchAll(r.Context(), calls, dispatch.Options{
		UserID: user.UserID,
		Source: "api",
	})

	results := make([]executeResponse, len(dispatched))
	for i, res := range dispatched {
		results[i] = wrapResult(res)
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (d *Dependencies) handleListProviders(w http.ResponseWriter, r *http.Request) {
	d.ensureReady(r)
	writeJSON(w, http.StatusOK, map[string]any{"providers": d.Registry.Providers()})
}

func (d *Dependencies) handleEnableProvider(w http.ResponseWriter, r *http.Request) {
	d.setProviderEnabled(w, r, true)
}

func (d *Dependencies) handleDisableProvider(w http.ResponseWriter, r *http.Request) {
	d.setProviderEnabled(w, r, false)
}

func (d *Dependencies) setProviderEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	id := r.PathValue("provider_id")
	if err := d.Registry.SetProviderEnabled(id, enabled); err != nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"provider_id": id, "enabled": enabled})
}

// ToolToggler is implemented by providers whose tools can be toggled
// individually.
type ToolToggler interface {
	SetToolEnabled(name string, enabled bool) bool
}

func (d *Dependencies) handleEnableTool(w http.ResponseWriter, r *http.Request) {
	d.setToolEnabled(w, r, true)
}

func (d *Dependencies) handleDisableTool(w http.ResponseWriter, r *http.Request) {
	d.setToolEnabled(w, r, false)
}

func (d *Dependencies) setToolEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	providerID := r.PathValue("provider_id")
	toolName := r.PathValue("tool_name")

	p, failure := d.Registry.Resolve("", providerID)
	if failure != nil {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: failure.Error})
		return
	}
	toggler, ok := p.(ToolToggler)
	if !ok || !toggler.SetToolEnabled(toolName, enabled) {
		writeJSON(w, http.StatusNotFound, ErrorResp{Detail: "tool not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"provider_id": providerID,
		"tool_name":   toolName,
		"enabled":     enabled,
	})
}
