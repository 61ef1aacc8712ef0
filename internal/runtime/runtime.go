package runtime

import (
	"context"

	"github.com/slok/sbxhub/internal/model"
)

// Runtime is the capability set every sandbox backend implements.
//
// All the state a runtime needs is local to the backend, runtimes never share
// state between them. Every call is bounded by the received context.
type Runtime interface {
	// Create provisions a new sandbox for the spec. spec.ID is already set by the caller
	// and must be used as the sandbox ID.
	// Returns model.ErrProvision when the infrastructure rejects the request.
	Create(ctx context.Context, spec model.SandboxSpec) (*model.Sandbox, error)

	// Status returns the current status of the sandbox.
	// Returns model.ErrNotFound when the ID is unknown to the backend.
	Status(ctx context.Context, id string) (model.SandboxStatus, error)

	// Terminate tears down the sandbox. Terminating an unknown or already stopped
	// sandbox is not an error.
	Terminate(ctx context.Context, id string) error

	// ExposedURLs returns the currently reachable endpoints, empty if the sandbox is not running.
	ExposedURLs(ctx context.Context, id string) ([]model.ExposedURL, error)
}

//go:generate mockery --case underscore --output runtimemock --outpkg runtimemock --name Runtime

// Checker is implemented by runtimes that can check their dependencies before being used.
type Checker interface {
	Check(ctx context.Context) []model.CheckResult
}

// Factory creates the runtime of a backend.
type Factory func() (Runtime, error)
