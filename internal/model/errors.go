package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrProvision is returned when the infrastructure rejected the creation of a sandbox.
	ErrProvision = errors.New("provision failed")
	// ErrUnregisteredBackend is returned when a backend has no registered factory.
	ErrUnregisteredBackend = errors.New("backend not registered")
	// ErrTimeout is returned when a backend call exceeded the caller deadline.
	ErrTimeout = errors.New("timeout")
	// ErrTransientInfra is returned for retryable infrastructure errors.
	ErrTransientInfra = errors.New("transient infrastructure error")
)

// Outcome tells the caller what happened with the sandbox on a failed operation.
type Outcome string

const (
	// OutcomeNothingHappened means the operation failed before touching the backend state.
	OutcomeNothingHappened Outcome = "nothing-happened"
	// OutcomeFailed means the backend rejected the operation and the sandbox was marked as failed.
	OutcomeFailed Outcome = "failed"
	// OutcomeStateUnknown means something may have happened on the backend and the
	// sandbox needs reconciliation.
	OutcomeStateUnknown Outcome = "state-unknown"
)

// OperationError is the error returned by lifecycle operations.
type OperationError struct {
	Op        string
	SandboxID string
	Outcome   Outcome
	Err       error
}

func (e *OperationError) Error() string {
	if e.SandboxID == "" {
		return fmt.Sprintf("%s (%s): %s", e.Op, e.Outcome, e.Err)
	}
	return fmt.Sprintf("%s %s (%s): %s", e.Op, e.SandboxID, e.Outcome, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// OutcomeOf returns the outcome of an error, errors that are not operation
// errors didn't change anything.
func OutcomeOf(err error) Outcome {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Outcome
	}
	return OutcomeNothingHappened
}
