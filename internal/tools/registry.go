package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"
)

// ProviderStatus is one entry in the registry's initialization report.
type ProviderStatus struct {
	ProviderID  string `json:"provider_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
	State       State  `json:"state"`
	Enabled     bool   `json:"enabled"`
	ToolCount   int    `json:"tool_count"`
	InitError   string `json:"init_error,omitempty"`
}

type registration struct {
	provider Provider
	state    State
	enabled  bool
	initErr  error
}

// Registry aggregates providers into one catalog and routes execution.
//
// The hosting process is ephemeral: a registry is rebuilt from empty on
// every cold start, so all lifecycle here is scoped to one process.
// Callers that may run before startup wiring use EnsureReady.
type Registry struct {
	mu         sync.RWMutex
	entries    map[string]*registration
	order      []string // provider ids in registration order
	minVersion *semver.Version
	logger     *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithMinProviderVersion rejects providers older than the given semver
// version at registration time (they register in a degraded state).
func WithMinProviderVersion(v string) Option {
	min := semver.MustParse(v)
	return func(r *Registry) { r.minVersion = min }
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]*registration),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a provider, calling Initialize if it implements
// Initializer. Registration is best-effort: a failed Initialize leaves
// the provider registered in a degraded state (its tools hidden from
// the catalog until a later successful re-init) and never fails the
// caller's startup sequence. Re-registering an id replaces the previous
// entry entirely.
func (r *Registry) Register(ctx context.Context, p Provider) ProviderStatus {
	id := p.ID()

	reg := &registration{provider: p, state: StateRegistering, enabled: true}

	r.mu.Lock()
	if _, exists := r.entries[id]; !exists {
		r.order = append(r.order, id)
	}
	r.entries[id] = reg
	r.mu.Unlock()

	if err := r.checkVersion(p); err != nil {
		r.degrade(id, err)
		r.logger.Warn("provider registered degraded: version check failed",
			zap.String("provider_id", id),
			zap.String("version", p.Version()),
			zap.Error(err),
		)
		return r.status(id)
	}

	if err := initialize(ctx, p); err != nil {
		r.degrade(id, err)
		r.logger.Warn("provider registered degraded: initialize failed",
			zap.String("provider_id", id),
			zap.Error(err),
		)
		return r.status(id)
	}

	r.mu.Lock()
	if cur, ok := r.entries[id]; ok && cur == reg {
		cur.state = StateReady
		cur.initErr = nil
	}
	r.mu.Unlock()

	r.logger.Info("provider registered",
		zap.String("provider_id", id),
		zap.String("version", p.Version()),
		zap.Int("tools", len(p.Tools())),
	)
	return r.status(id)
}

func (r *Registry) checkVersion(p Provider) error {
	v, err := semver.NewVersion(p.Version())
	if err != nil {
		return fmt.Errorf("invalid semver %q: %w", p.Version(), err)
	}
	if r.minVersion != nil && v.LessThan(r.minVersion) {
		return fmt.Errorf("provider version %s below minimum %s", v, r.minVersion)
	}
	return nil
}

func initialize(ctx context.Context, p Provider) error {
	init, ok := p.(Initializer)
	if !ok {
		return nil
	}
	return init.Initialize(ctx)
}

func (r *Registry) degrade(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg, ok := r.entries[id]; ok {
		reg.state = StateDegraded
		reg.initErr = err
	}
}

func (r *Registry) status(id string) ProviderStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[id]
	if !ok {
		return ProviderStatus{ProviderID: id, State: StateDeregistered}
	}
	s := ProviderStatus{
		ProviderID:  id,
		Name:        reg.provider.Name(),
		Description: reg.provider.Description(),
		Version:     reg.provider.Version(),
		State:       reg.state,
		Enabled:     reg.enabled,
		ToolCount:   len(reg.provider.Tools()),
	}
	if reg.initErr != nil {
		s.InitError = reg.initErr.Error()
	}
	return s
}

// Providers returns the registration report in registration order.
// Callers use an empty report to decide whether the registry needs
// (re)population after the host process was revived.
func (r *Registry) Providers() []ProviderStatus {
	r.mu.RLock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	r.mu.RUnlock()

	report := make([]ProviderStatus, 0, len(ids))
	for _, id := range ids {
		report = append(report, r.status(id))
	}
	return report
}

// Catalog returns the flattened model-facing tool list: enabled tools
// of enabled, ready providers, in registration order then the
// provider's own tool order. The ordering is deterministic so model
// prompts built from it are reproducible.
//
// Colliding names across providers yield distinct entries
// disambiguated by ProviderID; nothing is silently dropped.
func (r *Registry) Catalog() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var catalog []Tool
	for _, id := range r.order {
		reg := r.entries[id]
		if !reg.enabled || reg.state != StateReady {
			continue
		}
		for _, t := range reg.provider.Tools() {
			if !t.Enabled {
				continue
			}
			t.ProviderID = id
			catalog = append(catalog, t)
		}
	}
	return catalog
}

// SetProviderEnabled toggles a provider. Disabled providers keep their
// tools but contribute nothing to the catalog and refuse execution.
func (r *Registry) SetProviderEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("provider %q not registered", id)
	}
	reg.enabled = enabled
	return nil
}

// Deregister removes a provider. Deregistered is terminal: the same id
// may only come back through a fresh Register call.
func (r *Registry) Deregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return
	}
	delete(r.entries, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// ProviderFactory builds the full provider set for (re)population.
type ProviderFactory func(ctx context.Context) []Provider

// EnsureReady populates the registry from the factory if it is empty.
// The event that revived the host process and the first use of the
// registry can be the same event, so both the startup path and the
// on-demand request path call this; it is idempotent.
func (r *Registry) EnsureReady(ctx context.Context, factory ProviderFactory) []ProviderStatus {
	r.mu.RLock()
	empty := len(r.order) == 0
	r.mu.RUnlock()
	if !empty {
		return r.Providers()
	}

	report := make([]ProviderStatus, 0)
	for _, p := range factory(ctx) {
		report = append(report, r.Register(ctx, p))
	}
	return report
}

// Resolve finds the provider owning the named tool. With an explicit
// providerID the lookup is direct; otherwise enabled providers are
// scanned in registration order and the first owner wins — the
// documented tie-break for cross-provider name collisions. A degraded
// provider may list no tools until it recovers, so the bare-name scan
// cannot reach it; routing with an explicit providerID is how execution
// gets to re-attempt its recovery.
func (r *Registry) Resolve(name, providerID string) (Provider, *ExecutionResult) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if providerID != "" {
		reg, ok := r.entries[providerID]
		if !ok {
			return nil, Fail(CodeProviderNotFound, "provider %q is not registered", providerID)
		}
		if !reg.enabled {
			return nil, Fail(CodeProviderNotFound, "provider %q is disabled", providerID)
		}
		return reg.provider, nil
	}

	for _, id := range r.order {
		reg := r.entries[id]
		if !reg.enabled {
			continue
		}
		for _, t := range reg.provider.Tools() {
			if t.Name == name {
				return reg.provider, nil
			}
		}
	}
	return nil, Fail(CodeUnknownTool, "no enabled provider exposes tool %q", name)
}

// Execute routes one tool call to its provider. Nothing escapes this
// boundary as a Go error or panic; every failure mode is a structured
// result the orchestrator can feed back into the conversation.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any, providerID string) *ExecutionResult {
	p, failure := r.Resolve(name, providerID)
	if failure != nil {
		return failure
	}

	if res := r.recoverDegraded(ctx, p.ID()); res != nil {
		res.ProviderID = p.ID()
		return res
	}

	res := safeExecute(ctx, p, name, args)
	res.ProviderID = p.ID()
	return res
}

// recoverDegraded re-attempts initialization of a degraded provider
// before executing against it. Returns a failure result if the
// provider is still not usable, nil otherwise.
func (r *Registry) recoverDegraded(ctx context.Context, id string) *ExecutionResult {
	r.mu.RLock()
	reg, ok := r.entries[id]
	degraded := ok && reg.state == StateDegraded
	r.mu.RUnlock()
	if !degraded {
		return nil
	}

	if err := r.checkVersion(reg.provider); err != nil {
		return Fail(CodeProviderInit, "provider %q unavailable: %v", id, err)
	}
	if err := initialize(ctx, reg.provider); err != nil {
		r.degrade(id, err)
		return Fail(CodeProviderInit, "provider %q failed to initialize: %v", id, err)
	}

	r.mu.Lock()
	reg.state = StateReady
	reg.initErr = nil
	r.mu.Unlock()
	r.logger.Info("degraded provider recovered", zap.String("provider_id", id))
	return nil
}

func safeExecute(ctx context.Context, p Provider, name string, args map[string]any) (res *ExecutionResult) {
	defer func() {
		if rec := recover(); rec != nil {
			res = Fail(CodeExecutionError, "tool %q panicked: %v", name, rec)
		}
	}()
	res = p.Execute(ctx, name, args)
	if res == nil {
		// Provider contract violation; contain it.
		res = Fail(CodeExecutionError, "provider %q returned no result for tool %q", p.ID(), name)
	}
	return res
}
