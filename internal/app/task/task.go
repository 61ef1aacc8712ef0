package task

import (
	"context"
	"fmt"

	"github.com/slok/sbxhub/internal/log"
	"github.com/slok/sbxhub/internal/model"
	"github.com/slok/sbxhub/internal/storage"
)

// ServiceConfig is the configuration for the task service.
type ServiceConfig struct {
	Repository storage.TaskRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Task"})

	return nil
}

// Service manages the ordered tasks of a session.
type Service struct {
	repo   storage.TaskRepository
	logger log.Logger
}

// NewService creates a new task service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// ListRequest represents the list request parameters.
type ListRequest struct {
	SessionID string
	// Statuses is an optional filter, empty lists every task.
	Statuses []model.TaskStatus
}

// List returns the session tasks ordered by their order.
func (s *Service) List(ctx context.Context, req ListRequest) ([]model.Task, error) {
	if req.SessionID == "" {
		return nil, fmt.Errorf("session id is required: %w", model.ErrNotValid)
	}
	for _, st := range req.Statuses {
		if !st.Valid() {
			return nil, fmt.Errorf("unknown task status %q: %w", st, model.ErrNotValid)
		}
	}

	tasks, err := s.repo.ListTasks(ctx, req.SessionID, req.Statuses)
	if err != nil {
		return nil, fmt.Errorf("could not list tasks: %w", err)
	}

	return tasks, nil
}

// AddRequest represents the add request parameters.
type AddRequest struct {
	SessionID string
	// Order is the position of the task, when nil the task is placed after the last one.
	Order  *int
	Data   map[string]any
	Status model.TaskStatus
}

// Add adds a task to a session.
func (s *Service) Add(ctx context.Context, req AddRequest) (*model.Task, error) {
	if req.SessionID == "" {
		return nil, fmt.Errorf("session id is required: %w", model.ErrNotValid)
	}
	if req.Status == "" {
		req.Status = model.TaskStatusPending
	}
	if !req.Status.Valid() {
		return nil, fmt.Errorf("unknown task status %q: %w", req.Status, model.ErrNotValid)
	}

	order := 0
	if req.Order != nil {
		order = *req.Order
	} else {
		tasks, err := s.repo.ListTasks(ctx, req.SessionID, nil)
		if err != nil {
			return nil, fmt.Errorf("could not list tasks: %w", err)
		}
		if len(tasks) > 0 {
			order = tasks[len(tasks)-1].Order + 1
		}
	}

	task, err := s.repo.InsertTask(ctx, req.SessionID, order, req.Data, req.Status)
	if err != nil {
		return nil, fmt.Errorf("could not insert task: %w", err)
	}

	s.logger.Debugf("Added task %s to session %s at %d", task.ID, req.SessionID, order)
	return task, nil
}

// Update updates the set fields of a task.
func (s *Service) Update(ctx context.Context, id string, update model.TaskUpdate) (*model.Task, error) {
	if id == "" {
		return nil, fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}
	if update.Status != nil && !update.Status.Valid() {
		return nil, fmt.Errorf("unknown task status %q: %w", *update.Status, model.ErrNotValid)
	}

	task, err := s.repo.UpdateTask(ctx, id, update)
	if err != nil {
		return nil, fmt.Errorf("could not update task: %w", err)
	}

	return task, nil
}

// Remove deletes a task, removing a missing task is not an error.
func (s *Service) Remove(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}

	if err := s.repo.DeleteTask(ctx, id); err != nil {
		return fmt.Errorf("could not delete task: %w", err)
	}

	return nil
}

// Progress represents the completion state of a session.
type Progress struct {
	Done   int
	Failed int
	Total  int
}

// Progress returns the completion progress of a session.
func (s *Service) Progress(ctx context.Context, sessionID string) (*Progress, error) {
	tasks, err := s.List(ctx, ListRequest{SessionID: sessionID})
	if err != nil {
		return nil, err
	}

	p := &Progress{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case model.TaskStatusSuccess:
			p.Done++
		case model.TaskStatusFailed:
			p.Failed++
		}
	}

	return p, nil
}
