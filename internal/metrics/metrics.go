package metrics

import (
	"context"
	"time"

	"github.com/slok/sbxhub/internal/model"
)

// OutcomeSuccess is the outcome recorded for operations that didn't fail.
const OutcomeSuccess = "success"

// Recorder records the lifecycle metrics.
type Recorder interface {
	// ObserveOperation measures a lifecycle operation, outcome is OutcomeSuccess or a model.Outcome.
	ObserveOperation(ctx context.Context, backend model.Backend, op string, outcome string, duration time.Duration)
	// SetSandboxCount sets the number of known sandboxes of a backend on a status.
	SetSandboxCount(ctx context.Context, backend model.Backend, status model.SandboxStatus, n int)
}

// Noop is a Recorder that doesn't record anything.
const Noop = noop(0)

type noop int

func (noop) ObserveOperation(context.Context, model.Backend, string, string, time.Duration) {}
func (noop) SetSandboxCount(context.Context, model.Backend, model.SandboxStatus, int)       {}
