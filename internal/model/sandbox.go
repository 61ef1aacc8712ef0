package model

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Backend identifies the runtime implementation that manages a sandbox.
type Backend string

const (
	// BackendLocal is the in-process stub backend, sandboxes live in memory.
	BackendLocal Backend = "local"
	// BackendDocker runs sandboxes as Docker containers.
	BackendDocker Backend = "docker"
	// BackendProcess runs sandboxes as isolated host processes.
	BackendProcess Backend = "process"
	// BackendRemote is a sandbox provisioned by a remote provider.
	BackendRemote Backend = "remote"
)

// Backends is the closed set of known backends.
var Backends = []Backend{BackendLocal, BackendDocker, BackendProcess, BackendRemote}

// Valid returns true if the backend is one of the known backends.
func (b Backend) Valid() bool {
	for _, known := range Backends {
		if b == known {
			return true
		}
	}
	return false
}

// SandboxStatus represents the lifecycle status of a sandbox.
type SandboxStatus string

const (
	// SandboxStatusPending indicates the sandbox has been requested but not confirmed by the backend.
	SandboxStatusPending SandboxStatus = "pending"
	// SandboxStatusStarting indicates the backend is booting the sandbox.
	SandboxStatusStarting SandboxStatus = "starting"
	// SandboxStatusRunning indicates the sandbox is running.
	SandboxStatusRunning SandboxStatus = "running"
	// SandboxStatusStopping indicates the termination has been requested.
	SandboxStatusStopping SandboxStatus = "stopping"
	// SandboxStatusStopped indicates the sandbox is gone (terminal).
	SandboxStatusStopped SandboxStatus = "stopped"
	// SandboxStatusFailed indicates the sandbox failed (terminal).
	SandboxStatusFailed SandboxStatus = "failed"
	// SandboxStatusUnknown indicates a backend call ended without a confirmed
	// result and the sandbox needs reconciliation.
	SandboxStatusUnknown SandboxStatus = "unknown"
)

// SandboxStatuses is the set of all statuses.
var SandboxStatuses = []SandboxStatus{
	SandboxStatusPending,
	SandboxStatusStarting,
	SandboxStatusRunning,
	SandboxStatusStopping,
	SandboxStatusStopped,
	SandboxStatusFailed,
	SandboxStatusUnknown,
}

// statusRank orders the happy path, transitions only move forward.
var statusRank = map[SandboxStatus]int{
	SandboxStatusPending:  0,
	SandboxStatusStarting: 1,
	SandboxStatusRunning:  2,
	SandboxStatusStopping: 3,
	SandboxStatusStopped:  4,
}

// Valid returns true if the status is a known status.
func (s SandboxStatus) Valid() bool {
	for _, known := range SandboxStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal returns true for statuses that can't change anymore.
func (s SandboxStatus) IsTerminal() bool {
	return s == SandboxStatusStopped || s == SandboxStatusFailed
}

// CanTransitionTo returns true if moving from s to next is a legal transition.
// Staying in the same status is always allowed.
func (s SandboxStatus) CanTransitionTo(next SandboxStatus) bool {
	switch {
	case s == next:
		return true
	case s.IsTerminal():
		return false
	case s == SandboxStatusUnknown:
		// Reconciliation can land anywhere.
		return next.Valid()
	case next == SandboxStatusFailed, next == SandboxStatusUnknown:
		return true
	}

	cur, ok := statusRank[s]
	if !ok {
		return false
	}
	nxt, ok := statusRank[next]
	if !ok {
		return false
	}

	return nxt > cur
}

// ExposedURL maps an internal sandbox port (and optional path) to an
// externally reachable URL.
type ExposedURL struct {
	Port int    `json:"port"`
	Path string `json:"path,omitempty"`
	URL  string `json:"url"`
}

// Sandbox represents a sandbox managed by one of the backends.
type Sandbox struct {
	ID      string
	Name    string
	Backend Backend
	Status  SandboxStatus
	Spec    SandboxSpec

	// ExposedURLs are only set while the sandbox is running.
	ExposedURLs []ExposedURL

	// Metadata is opaque data owned by the backend that created the sandbox.
	// Nothing else should interpret it.
	Metadata []byte

	// Error is the last error reported for the sandbox, if any.
	Error string

	CreatedAt time.Time
	UpdatedAt time.Time
	StartedAt *time.Time
	StoppedAt *time.Time
}

// SandboxSpec is the static configuration used to create a sandbox.
// These settings are immutable after creation.
type SandboxSpec struct {
	// ID is assigned by the lifecycle service before the backend is called.
	ID      string  `json:"id"`
	Name    string  `json:"name,omitempty"`
	Backend Backend `json:"backend"`

	// Image is the container image (docker backend).
	Image string `json:"image,omitempty"`
	// Command is the entrypoint (process backend) or command override (docker backend).
	Command []string          `json:"command,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	// Ports are the internal ports that should be exposed.
	Ports     []int             `json:"ports,omitempty"`
	Resources Resources         `json:"resources"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// Resources defines the compute resources for a sandbox.
type Resources struct {
	VCPUs    float64 `json:"vcpus,omitempty"`
	MemoryMB int     `json:"memory_mb,omitempty"`
}

// Validate validates the generic part of the spec, backends validate their own fields.
func (s *SandboxSpec) Validate() error {
	if s.Backend == "" {
		return fmt.Errorf("backend is required: %w", ErrNotValid)
	}
	if !s.Backend.Valid() {
		return fmt.Errorf("unknown backend %q: %w", s.Backend, ErrNotValid)
	}
	if _, err := ulid.ParseStrict(s.Name); s.Name != "" && err == nil {
		return fmt.Errorf("name %q can't be a sandbox ID: %w", s.Name, ErrNotValid)
	}

	seen := map[int]bool{}
	for _, p := range s.Ports {
		if p < 1 || p > 65535 {
			return fmt.Errorf("port %d out of range (1-65535): %w", p, ErrNotValid)
		}
		if seen[p] {
			return fmt.Errorf("port %d is duplicated: %w", p, ErrNotValid)
		}
		seen[p] = true
	}

	if s.Resources.VCPUs < 0 {
		return fmt.Errorf("vcpus can't be negative: %w", ErrNotValid)
	}
	if s.Resources.MemoryMB < 0 {
		return fmt.Errorf("memory_mb can't be negative: %w", ErrNotValid)
	}

	return nil
}

// SandboxFilter filters sandbox listings, nil fields match everything.
type SandboxFilter struct {
	Backend *Backend
	Status  *SandboxStatus
}

// Match returns true if the sandbox matches the filter.
func (f SandboxFilter) Match(s Sandbox) bool {
	if f.Backend != nil && s.Backend != *f.Backend {
		return false
	}
	if f.Status != nil && s.Status != *f.Status {
		return false
	}
	return true
}
