package local

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/slok/sbxhub/internal/log"
	"github.com/slok/sbxhub/internal/model"
)

// RuntimeConfig is the configuration for the local runtime.
type RuntimeConfig struct {
	// Host is the host used on the exposed URLs.
	Host string
	// CreateDelay simulates provisioning time.
	CreateDelay time.Duration
	// CreateErr is returned by Create when set, used to simulate infrastructure failures.
	CreateErr error
	Logger    log.Logger
}

func (c *RuntimeConfig) defaults() error {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.CreateDelay < 0 {
		return fmt.Errorf("create delay can't be negative")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "runtime.Local"})
	return nil
}

// Runtime is an in-memory runtime, sandboxes don't run anything.
// It goes from pending to running as soon as it's created.
type Runtime struct {
	host        string
	createDelay time.Duration
	createErr   error
	sandboxes   map[string]*localSandbox
	mu          sync.RWMutex
	logger      log.Logger
}

type localSandbox struct {
	status model.SandboxStatus
	urls   []model.ExposedURL
}

// NewRuntime creates a new local runtime.
func NewRuntime(cfg RuntimeConfig) (*Runtime, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runtime{
		host:        cfg.Host,
		createDelay: cfg.CreateDelay,
		createErr:   cfg.CreateErr,
		sandboxes:   make(map[string]*localSandbox),
		logger:      cfg.Logger,
	}, nil
}

// Create creates a new sandbox.
func (r *Runtime) Create(ctx context.Context, spec model.SandboxSpec) (*model.Sandbox, error) {
	if spec.ID == "" {
		return nil, fmt.Errorf("sandbox id is required: %w", model.ErrProvision)
	}

	if r.createDelay > 0 {
		select {
		case <-time.After(r.createDelay):
		case <-ctx.Done():
			return nil, fmt.Errorf("create interrupted: %w: %w", model.ErrTimeout, ctx.Err())
		}
	}

	if r.createErr != nil {
		return nil, fmt.Errorf("could not create sandbox: %w: %w", model.ErrProvision, r.createErr)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sandboxes[spec.ID]; ok {
		return nil, fmt.Errorf("sandbox %s: %w: %w", spec.ID, model.ErrProvision, model.ErrAlreadyExists)
	}

	urls := make([]model.ExposedURL, 0, len(spec.Ports))
	for _, p := range spec.Ports {
		urls = append(urls, model.ExposedURL{Port: p, URL: fmt.Sprintf("http://%s:%d", r.host, p)})
	}

	r.sandboxes[spec.ID] = &localSandbox{status: model.SandboxStatusRunning, urls: urls}

	metadata, err := json.Marshal(map[string]string{"host": r.host})
	if err != nil {
		return nil, fmt.Errorf("could not marshal metadata: %w", err)
	}

	now := time.Now().UTC()
	sandbox := &model.Sandbox{
		ID:          spec.ID,
		Name:        spec.Name,
		Backend:     model.BackendLocal,
		Status:      model.SandboxStatusRunning, // Local sandboxes go directly to running.
		Spec:        spec,
		ExposedURLs: copyURLs(urls),
		Metadata:    metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
		StartedAt:   &now,
	}

	r.logger.Infof("Created local sandbox: %s", spec.ID)

	return sandbox, nil
}

// Status returns the status of a sandbox.
func (r *Runtime) Status(ctx context.Context, id string) (model.SandboxStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sb, ok := r.sandboxes[id]
	if !ok {
		return "", fmt.Errorf("sandbox %s: %w", id, model.ErrNotFound)
	}

	return sb.status, nil
}

// Terminate stops a sandbox.
func (r *Runtime) Terminate(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sb, ok := r.sandboxes[id]
	if !ok {
		r.logger.Debugf("Sandbox %s is unknown, nothing to terminate", id)
		return nil
	}

	if sb.status == model.SandboxStatusStopped {
		r.logger.Debugf("Sandbox %s is already stopped", id)
		return nil
	}

	sb.status = model.SandboxStatusStopped
	sb.urls = nil
	r.logger.Infof("Terminated local sandbox: %s", id)

	return nil
}

// ExposedURLs returns the exposed URLs of a running sandbox.
func (r *Runtime) ExposedURLs(ctx context.Context, id string) ([]model.ExposedURL, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sb, ok := r.sandboxes[id]
	if !ok {
		return nil, fmt.Errorf("sandbox %s: %w", id, model.ErrNotFound)
	}
	if sb.status != model.SandboxStatusRunning {
		return nil, nil
	}

	return copyURLs(sb.urls), nil
}

// Check implements runtime.Checker.
func (r *Runtime) Check(ctx context.Context) []model.CheckResult {
	return []model.CheckResult{{
		ID:      "local_runtime",
		Message: "In-memory runtime is always available",
		Status:  model.CheckStatusOK,
	}}
}

func copyURLs(urls []model.ExposedURL) []model.ExposedURL {
	if urls == nil {
		return nil
	}
	return append([]model.ExposedURL{}, urls...)
}
