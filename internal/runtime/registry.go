package runtime

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/slok/sbxhub/internal/log"
	"github.com/slok/sbxhub/internal/model"
)

// RegistryConfig is the configuration for the registry.
type RegistryConfig struct {
	Logger log.Logger
}

func (c *RegistryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "runtime.Registry"})
	return nil
}

// Registry maps backends to the factories of their runtimes.
//
// Lookups don't take locks, registrations copy the map and swap it, so the registry
// is meant to be filled at startup and read afterwards.
type Registry struct {
	mu      sync.Mutex // Serializes registrations.
	entries atomic.Pointer[map[model.Backend]*registration]
	logger  log.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	r := &Registry{logger: cfg.Logger}
	empty := map[model.Backend]*registration{}
	r.entries.Store(&empty)

	return r, nil
}

// Register sets the factory for a backend. Registering a backend again replaces
// the previous factory (and its cached runtime).
//
// Like database/sql.Register, it panics on a nil factory or an unknown backend.
func (r *Registry) Register(backend model.Backend, factory Factory) {
	if factory == nil {
		panic(fmt.Sprintf("runtime: nil factory for backend %q", backend))
	}
	if !backend.Valid() {
		panic(fmt.Sprintf("runtime: unknown backend %q", backend))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.entries.Load()
	next := make(map[model.Backend]*registration, len(current)+1)
	for k, v := range current {
		next[k] = v
	}

	if _, ok := current[backend]; ok {
		r.logger.Warningf("Backend %q was already registered, overwriting its factory", backend)
	} else {
		r.logger.Debugf("Registered backend %q", backend)
	}

	next[backend] = &registration{factory: factory}
	r.entries.Store(&next)
}

// Resolve returns the runtime for the backend, the runtime is created on the
// first call and reused afterwards.
func (r *Registry) Resolve(backend model.Backend) (Runtime, error) {
	reg, ok := (*r.entries.Load())[backend]
	if !ok {
		return nil, fmt.Errorf("backend %q: %w", backend, model.ErrUnregisteredBackend)
	}

	rt, err := reg.runtime()
	if err != nil {
		return nil, fmt.Errorf("could not create %q runtime: %w", backend, err)
	}

	return rt, nil
}

// ResolveFor returns the runtime that manages the sandbox.
func (r *Registry) ResolveFor(s model.Sandbox) (Runtime, error) {
	return r.Resolve(s.Backend)
}

// Backends returns the registered backends sorted by name.
func (r *Registry) Backends() []model.Backend {
	entries := *r.entries.Load()
	backends := make([]model.Backend, 0, len(entries))
	for b := range entries {
		backends = append(backends, b)
	}
	slices.Sort(backends)

	return backends
}

// Check runs the preflight checks of all the registered backends that support them.
func (r *Registry) Check(ctx context.Context) []model.CheckResult {
	var results []model.CheckResult
	for _, b := range r.Backends() {
		rt, err := r.Resolve(b)
		if err != nil {
			results = append(results, model.CheckResult{
				Backend: b,
				ID:      "runtime_factory",
				Message: err.Error(),
				Status:  model.CheckStatusError,
			})
			continue
		}

		checker, ok := rt.(Checker)
		if !ok {
			results = append(results, model.CheckResult{
				Backend: b,
				ID:      "runtime_factory",
				Message: "Runtime ready (no preflight checks)",
				Status:  model.CheckStatusOK,
			})
			continue
		}

		for _, res := range checker.Check(ctx) {
			res.Backend = b
			results = append(results, res)
		}
	}

	return results
}

type registration struct {
	factory Factory
	mu      sync.Mutex
	rt      atomic.Pointer[Runtime]
}

func (r *registration) runtime() (Runtime, error) {
	if rt := r.rt.Load(); rt != nil {
		return *rt, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if rt := r.rt.Load(); rt != nil {
		return *rt, nil
	}

	rt, err := r.factory()
	if err != nil {
		return nil, err
	}
	if rt == nil {
		return nil, fmt.Errorf("factory returned a nil runtime")
	}
	r.rt.Store(&rt)

	return rt, nil
}
