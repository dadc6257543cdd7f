package tools

import "context"

// Provider owns a related set of tools and executes them.
//
// Execute must never panic or return a Go error for model-facing failure
// modes: unknown tools, bad arguments, and downstream failures all come
// back as a structured ExecutionResult with Success=false. The registry
// additionally guards the boundary with a panic recover, but providers
// should not rely on it.
type Provider interface {
	// ID returns the provider's identifier, unique within a registry.
	ID() string

	// Name and Description are human-facing metadata.
	Name() string
	Description() string

	// Version returns the provider's semver version string.
	Version() string

	// Tools returns the currently enabled tools in a stable order.
	Tools() []Tool

	// Execute runs the named tool. Implementations apply their own
	// bounded timeouts on downstream I/O; there is no cancellation
	// beyond ctx.
	Execute(ctx context.Context, name string, args map[string]any) *ExecutionResult
}

// Initializer is implemented by providers that need async setup before
// their tools are usable (opening clients, discovering connected
// accounts). Initialize failures are non-fatal: the registry keeps the
// provider in a degraded state and retries on the next execution.
type Initializer interface {
	Initialize(ctx context.Context) error
}

// State is a provider's lifecycle state within a registry.
type State string

const (
	StateRegistering  State = "registering"
	StateReady        State = "ready"
	StateDegraded     State = "degraded"
	StateDeregistered State = "deregistered"
)
