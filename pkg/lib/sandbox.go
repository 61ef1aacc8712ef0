package lib

import (
	"context"

	"github.com/slok/sbxhub/internal/app/lifecycle"
	"github.com/slok/sbxhub/internal/app/task"
)

// ReconcileResult is the summary of a reconciliation.
type ReconcileResult = lifecycle.ReconcileResult

// CreateSandbox creates a sandbox on the backend set on the spec.
func (c *Client) CreateSandbox(ctx context.Context, spec SandboxSpec) (*Sandbox, error) {
	return c.lifecycle.Create(ctx, spec)
}

// GetSandbox returns the stored sandbox by name or ID without asking its backend.
func (c *Client) GetSandbox(ctx context.Context, nameOrID string) (*Sandbox, error) {
	return c.lifecycle.Get(ctx, nameOrID)
}

// SandboxStatus refreshes the sandbox status and exposed URLs from its backend.
func (c *Client) SandboxStatus(ctx context.Context, nameOrID string) (*Sandbox, error) {
	return c.lifecycle.Status(ctx, nameOrID)
}

// ListSandboxes returns a page of sandboxes ordered by creation time.
func (c *Client) ListSandboxes(ctx context.Context, filter SandboxFilter, page PageRequest) (*Page, error) {
	return c.lifecycle.List(ctx, filter, page)
}

// TerminateSandbox terminates a sandbox, missing and already stopped sandboxes
// are not an error.
func (c *Client) TerminateSandbox(ctx context.Context, nameOrID string) error {
	return c.lifecycle.Terminate(ctx, nameOrID)
}

// PurgeSandbox deletes the record of a stopped or failed sandbox.
func (c *Client) PurgeSandbox(ctx context.Context, nameOrID string) error {
	return c.lifecycle.Purge(ctx, nameOrID)
}

// Reconcile refreshes every sandbox in a non settled status from its backend.
func (c *Client) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	return c.lifecycle.Reconcile(ctx)
}

// ListTasks returns the tasks of a session ordered by their order, statuses is an optional filter.
func (c *Client) ListTasks(ctx context.Context, sessionID string, statuses ...TaskStatus) ([]Task, error) {
	return c.tasks.List(ctx, task.ListRequest{SessionID: sessionID, Statuses: statuses})
}

// AddTask adds a pending task at the end of a session.
func (c *Client) AddTask(ctx context.Context, sessionID string, data map[string]any) (*Task, error) {
	return c.tasks.Add(ctx, task.AddRequest{SessionID: sessionID, Data: data})
}

// UpdateTask updates the set fields of a task.
func (c *Client) UpdateTask(ctx context.Context, id string, update TaskUpdate) (*Task, error) {
	return c.tasks.Update(ctx, id, update)
}

// RemoveTask removes a task.
func (c *Client) RemoveTask(ctx context.Context, id string) error {
	return c.tasks.Remove(ctx, id)
}
