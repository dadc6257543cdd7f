package api

import (
	"net/http"

	"github.com/intella-ai/toolhub/internal/auth"
	"github.com/intella-ai/toolhub/internal/dispatch"
	"github.com/intella-ai/toolhub/internal/tools"
	"go.uber.org/zap"
)

// Dependencies holds shared state injected into all HTTP handlers.
type Dependencies struct {
	Registry   *tools.Registry
	Dispatcher *dispatch.Dispatcher
	Auth       auth.Authenticator
	// Factory rebuilds the provider set when the registry is found
	// empty: the request that revived the process and the first use of
	// the registry can be the same request.
	Factory tools.ProviderFactory
	Logger  *zap.Logger
}

// NewRouter builds the HTTP mux with all routes wired up.
func NewRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	// Model-facing surface (auth required via Bearer isk_ token)
	mux.HandleFunc("GET /v1/tools", deps.authMiddleware(deps.handleCatalog))
	mux.HandleFunc("POST /v1/tools/execute", deps.authMiddleware(deps.handleExecute))
	mux.HandleFunc("POST /v1/tools/execute-batch", deps.authMiddleware(deps.handleExecuteBatch))

	// Provider administration (no auth — dashboard auth added later)
	mux.HandleFunc("GET /api/toolhub/providers", deps.handleListProviders)
	mux.HandleFunc("POST /api/toolhub/providers/{provider_id}/enable", deps.handleEnableProvider)
	mux.HandleFunc("POST /api/toolhub/providers/{provider_id}/disable", deps.handleDisableProvider)
	mux.HandleFunc("POST /api/toolhub/providers/{provider_id}/tools/{tool_name}/enable", deps.handleEnableTool)
	mux.HandleFunc("POST /api/toolhub/providers/{provider_id}/tools/{tool_name}/disable", deps.handleDisableTool)

	// Health check
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return corsMiddleware(requestLogging(mux, deps.Logger))
}

// ensureReady repopulates an empty registry before use.
func (d *Dependencies) ensureReady(r *http.Request) {
	if d.Factory != nil {
		d.Registry.EnsureReady(r.Context(), d.Factory)
	}
}
