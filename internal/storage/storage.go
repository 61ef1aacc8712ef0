package storage

import (
	"context"

	"github.com/slok/sbxhub/internal/model"
)

// Repository is the interface for sandbox persistence.
type Repository interface {
	CreateSandbox(ctx context.Context, s model.Sandbox) error
	GetSandbox(ctx context.Context, id string) (*model.Sandbox, error)
	GetSandboxByName(ctx context.Context, name string) (*model.Sandbox, error)
	// ListSandboxes returns the sandboxes matching the filter ordered by creation time
	// and ID, starting after the page token.
	ListSandboxes(ctx context.Context, filter model.SandboxFilter, page model.PageRequest) (*model.Page, error)
	UpdateSandbox(ctx context.Context, s model.Sandbox) error
	DeleteSandbox(ctx context.Context, id string) error
}

//go:generate mockery --case underscore --output storagemock --outpkg storagemock --name Repository

// TaskRepository is the interface for session task persistence.
type TaskRepository interface {
	// ListTasks returns the session tasks ordered by their order, statuses filter is optional.
	ListTasks(ctx context.Context, sessionID string, statuses []model.TaskStatus) ([]model.Task, error)
	InsertTask(ctx context.Context, sessionID string, order int, data map[string]any, status model.TaskStatus) (*model.Task, error)
	UpdateTask(ctx context.Context, id string, update model.TaskUpdate) (*model.Task, error)
	// DeleteTask deletes a task, deleting a missing task is not an error.
	DeleteTask(ctx context.Context, id string) error
}

//go:generate mockery --case underscore --output storagemock --outpkg storagemock --name TaskRepository
