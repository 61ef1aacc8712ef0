package process

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/slok/sbxhub/internal/log"
	"github.com/slok/sbxhub/internal/model"
	"github.com/slok/sbxhub/internal/runtime"
)

// RuntimeConfig is the configuration for the process runtime.
type RuntimeConfig struct {
	// Host is the host used on the exposed URLs.
	Host string
	// GracePeriod is the time a process has to exit after SIGTERM before being killed.
	GracePeriod time.Duration
	// InheritEnv passes the current process environment to the sandbox processes.
	InheritEnv bool
	Logger     log.Logger
}

func (c *RuntimeConfig) defaults() error {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.GracePeriod < 0 {
		return fmt.Errorf("grace period can't be negative")
	}
	if c.GracePeriod == 0 {
		c.GracePeriod = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "runtime.Process"})
	return nil
}

// Runtime runs every sandbox as a local child process on its own process group.
type Runtime struct {
	host        string
	gracePeriod time.Duration
	inheritEnv  bool
	procs       map[string]*proc
	mu          sync.Mutex
	logger      log.Logger
}

type proc struct {
	cmd         *exec.Cmd
	ports       []int
	done        chan struct{}
	exitErr     error
	terminating bool
}

// NewRuntime creates a new process runtime.
func NewRuntime(cfg RuntimeConfig) (*Runtime, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runtime{
		host:        cfg.Host,
		gracePeriod: cfg.GracePeriod,
		inheritEnv:  cfg.InheritEnv,
		procs:       make(map[string]*proc),
		logger:      cfg.Logger,
	}, nil
}

// Metadata is the opaque data the process runtime stores on the sandbox.
type Metadata struct {
	PID     int      `json:"pid"`
	Command []string `json:"command"`
}

// Create starts the sandbox command.
func (r *Runtime) Create(ctx context.Context, spec model.SandboxSpec) (*model.Sandbox, error) {
	if spec.ID == "" {
		return nil, fmt.Errorf("sandbox id is required: %w: %w", model.ErrProvision, model.ErrNotValid)
	}
	if len(spec.Command) == 0 {
		return nil, fmt.Errorf("command is required: %w: %w", model.ErrProvision, model.ErrNotValid)
	}
	if err := ctx.Err(); err != nil {
		return nil, runtime.TimeoutErr(ctx, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.procs[spec.ID]; ok {
		return nil, fmt.Errorf("sandbox %s already exists: %w", spec.ID, model.ErrProvision)
	}

	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	cmd.Env = r.env(spec)
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("could not start process: %w: %w", model.ErrProvision, err)
	}

	p := &proc{
		cmd:   cmd,
		ports: spec.Ports,
		done:  make(chan struct{}),
	}
	go func() {
		err := cmd.Wait()
		r.mu.Lock()
		p.exitErr = err
		r.mu.Unlock()
		close(p.done)
		r.logger.Debugf("Sandbox %s process exited: %v", spec.ID, err)
	}()
	r.procs[spec.ID] = p

	metadata, err := json.Marshal(Metadata{PID: cmd.Process.Pid, Command: spec.Command})
	if err != nil {
		return nil, fmt.Errorf("could not marshal metadata: %w", err)
	}

	now := time.Now().UTC()
	r.logger.Infof("Started sandbox %s process (pid %d)", spec.ID, cmd.Process.Pid)

	return &model.Sandbox{
		ID:          spec.ID,
		Name:        spec.Name,
		Backend:     model.BackendProcess,
		Status:      model.SandboxStatusRunning,
		Spec:        spec,
		ExposedURLs: r.urls(spec.Ports),
		Metadata:    metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
		StartedAt:   &now,
	}, nil
}

// Status returns the sandbox status based on the process state.
func (r *Runtime) Status(_ context.Context, id string) (model.SandboxStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.procs[id]
	if !ok {
		return "", fmt.Errorf("sandbox %s: %w", id, model.ErrNotFound)
	}

	return p.status(), nil
}

// Terminate sends SIGTERM to the sandbox process group and SIGKILL if it didn't
// exit after the grace period.
func (r *Runtime) Terminate(ctx context.Context, id string) error {
	r.mu.Lock()
	p, ok := r.procs[id]
	if !ok {
		r.mu.Unlock()
		r.logger.Debugf("Sandbox %s is unknown, nothing to terminate", id)
		return nil
	}
	p.terminating = true
	r.mu.Unlock()

	select {
	case <-p.done:
		return nil
	default:
	}

	if err := signalTerm(p.cmd); err != nil {
		r.logger.Warningf("Could not send SIGTERM to sandbox %s: %v", id, err)
	}

	grace := time.NewTimer(r.gracePeriod)
	defer grace.Stop()

	select {
	case <-p.done:
		r.logger.Infof("Terminated sandbox %s process", id)
		return nil
	case <-ctx.Done():
		return runtime.TimeoutErr(ctx, ctx.Err())
	case <-grace.C:
	}

	r.logger.Warningf("Sandbox %s process didn't exit after %s, killing it", id, r.gracePeriod)
	if err := signalKill(p.cmd); err != nil {
		return fmt.Errorf("could not kill sandbox %s process: %w", id, err)
	}

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return runtime.TimeoutErr(ctx, ctx.Err())
	}
}

// ExposedURLs returns the URLs of the ports the process listens on while it's running.
func (r *Runtime) ExposedURLs(_ context.Context, id string) ([]model.ExposedURL, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.procs[id]
	if !ok {
		return nil, fmt.Errorf("sandbox %s: %w", id, model.ErrNotFound)
	}
	if p.status() != model.SandboxStatusRunning {
		return nil, nil
	}

	return r.urls(p.ports), nil
}

// Check implements runtime.Checker.
func (r *Runtime) Check(_ context.Context) []model.CheckResult {
	if _, err := exec.LookPath("sh"); err != nil {
		return []model.CheckResult{{
			ID:      "process_shell",
			Message: "No shell found on PATH, only absolute commands can be used",
			Status:  model.CheckStatusWarning,
		}}
	}

	return []model.CheckResult{{
		ID:      "process_shell",
		Message: "Shell found on PATH",
		Status:  model.CheckStatusOK,
	}}
}

func (r *Runtime) env(spec model.SandboxSpec) []string {
	var env []string
	if r.inheritEnv {
		env = os.Environ()
	}

	keys := make([]string, 0, len(spec.Env))
	for k := range spec.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+spec.Env[k])
	}

	env = append(env, "SBXHUB_SANDBOX_ID="+spec.ID)
	for i, p := range spec.Ports {
		if i == 0 {
			env = append(env, "PORT="+strconv.Itoa(p))
		}
		env = append(env, fmt.Sprintf("SBXHUB_PORT_%d=%d", i, p))
	}

	return env
}

func (r *Runtime) urls(ports []int) []model.ExposedURL {
	urls := make([]model.ExposedURL, 0, len(ports))
	for _, p := range ports {
		urls = append(urls, model.ExposedURL{Port: p, URL: fmt.Sprintf("http://%s:%d", r.host, p)})
	}
	return urls
}

// status must be called with the runtime lock held.
func (p *proc) status() model.SandboxStatus {
	select {
	case <-p.done:
	default:
		if p.terminating {
			return model.SandboxStatusStopping
		}
		return model.SandboxStatusRunning
	}

	if p.terminating || p.exitErr == nil {
		return model.SandboxStatusStopped
	}

	var exitErr *exec.ExitError
	if errors.As(p.exitErr, &exitErr) && exitErr.ExitCode() == 0 {
		return model.SandboxStatusStopped
	}
	return model.SandboxStatusFailed
}
