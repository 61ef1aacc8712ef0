package lib

import (
	"github.com/slok/sbxhub/internal/model"
	"github.com/slok/sbxhub/internal/runtime"
)

type (
	// Backend is the infrastructure a sandbox runs on.
	Backend = model.Backend
	// SandboxStatus is the lifecycle status of a sandbox.
	SandboxStatus = model.SandboxStatus
	// Sandbox is a stored sandbox.
	Sandbox = model.Sandbox
	// SandboxSpec is the configuration used to create a sandbox.
	SandboxSpec = model.SandboxSpec
	// Resources are the compute resources of a sandbox.
	Resources = model.Resources
	// ExposedURL maps an internal sandbox port to an external URL.
	ExposedURL = model.ExposedURL
	// SandboxFilter filters sandbox listings.
	SandboxFilter = model.SandboxFilter
	// PageRequest asks for a page of a sandbox listing.
	PageRequest = model.PageRequest
	// Page is a page of a sandbox listing.
	Page = model.Page
	// OperationError is the error returned by lifecycle operations.
	OperationError = model.OperationError
	// Outcome tells what happened with a sandbox on a failed operation.
	Outcome = model.Outcome
	// CheckResult is the result of a preflight check.
	CheckResult = model.CheckResult
	// Task is an ordered step of a session.
	Task = model.Task
	// TaskStatus is the status of a task.
	TaskStatus = model.TaskStatus
	// TaskUpdate has the task fields to update, nil fields are left untouched.
	TaskUpdate = model.TaskUpdate

	// Runtime is the interface a backend implements.
	Runtime = runtime.Runtime
	// RuntimeFactory creates the runtime of a backend.
	RuntimeFactory = runtime.Factory
)

const (
	BackendLocal   = model.BackendLocal
	BackendDocker  = model.BackendDocker
	BackendProcess = model.BackendProcess
	BackendRemote  = model.BackendRemote

	SandboxStatusPending  = model.SandboxStatusPending
	SandboxStatusStarting = model.SandboxStatusStarting
	SandboxStatusRunning  = model.SandboxStatusRunning
	SandboxStatusStopping = model.SandboxStatusStopping
	SandboxStatusStopped  = model.SandboxStatusStopped
	SandboxStatusFailed   = model.SandboxStatusFailed
	SandboxStatusUnknown  = model.SandboxStatusUnknown

	OutcomeNothingHappened = model.OutcomeNothingHappened
	OutcomeFailed          = model.OutcomeFailed
	OutcomeStateUnknown    = model.OutcomeStateUnknown

	TaskStatusPending = model.TaskStatusPending
	TaskStatusRunning = model.TaskStatusRunning
	TaskStatusSuccess = model.TaskStatusSuccess
	TaskStatusFailed  = model.TaskStatusFailed
)

var (
	ErrNotFound            = model.ErrNotFound
	ErrAlreadyExists       = model.ErrAlreadyExists
	ErrNotValid            = model.ErrNotValid
	ErrProvision           = model.ErrProvision
	ErrUnregisteredBackend = model.ErrUnregisteredBackend
	ErrTimeout             = model.ErrTimeout
	ErrTransientInfra      = model.ErrTransientInfra
)

// OutcomeOf returns the outcome of an error returned by a lifecycle operation.
func OutcomeOf(err error) Outcome { return model.OutcomeOf(err) }
