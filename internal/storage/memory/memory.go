package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slok/sbxhub/internal/log"
	"github.com/slok/sbxhub/internal/model"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.Repository and storage.TaskRepository.
type Repository struct {
	sandboxes map[string]model.Sandbox
	tasks     map[string]model.Task
	mu        sync.RWMutex
	logger    log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		sandboxes: make(map[string]model.Sandbox),
		tasks:     make(map[string]model.Task),
		logger:    cfg.Logger,
	}, nil
}

// CreateSandbox creates a new sandbox in the repository.
func (r *Repository) CreateSandbox(ctx context.Context, s model.Sandbox) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sandboxes[s.ID]; ok {
		return fmt.Errorf("sandbox with id %s: %w", s.ID, model.ErrAlreadyExists)
	}

	for _, existing := range r.sandboxes {
		if existing.Name == s.Name {
			return fmt.Errorf("sandbox with name %s: %w", s.Name, model.ErrAlreadyExists)
		}
	}

	r.sandboxes[s.ID] = cloneSandbox(s)
	r.logger.Debugf("Created sandbox in repository: %s", s.ID)

	return nil
}

// GetSandbox retrieves a sandbox by ID.
func (r *Repository) GetSandbox(ctx context.Context, id string) (*model.Sandbox, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sandbox, ok := r.sandboxes[id]
	if !ok {
		return nil, fmt.Errorf("sandbox %s: %w", id, model.ErrNotFound)
	}

	sandbox = cloneSandbox(sandbox)
	return &sandbox, nil
}

// GetSandboxByName retrieves a sandbox by name.
func (r *Repository) GetSandboxByName(ctx context.Context, name string) (*model.Sandbox, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sandbox := range r.sandboxes {
		if sandbox.Name == name {
			sandbox = cloneSandbox(sandbox)
			return &sandbox, nil
		}
	}

	return nil, fmt.Errorf("sandbox with name %s: %w", name, model.ErrNotFound)
}

// ListSandboxes returns a page of the sandboxes matching the filter.
func (r *Repository) ListSandboxes(ctx context.Context, filter model.SandboxFilter, page model.PageRequest) (*model.Page, error) {
	page = page.Normalize()
	cursor, err := model.DecodePageToken(page.Token)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	matched := make([]model.Sandbox, 0, len(r.sandboxes))
	for _, sandbox := range r.sandboxes {
		if !filter.Match(sandbox) {
			continue
		}
		if cursor != nil && !cursor.After(sandbox) {
			continue
		}
		matched = append(matched, cloneSandbox(sandbox))
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	result := &model.Page{Items: matched}
	if len(matched) > page.Size {
		result.Items = matched[:page.Size]
		result.NextToken = model.CursorFor(result.Items[page.Size-1]).Encode()
	}

	return result, nil
}

// UpdateSandbox updates an existing sandbox.
func (r *Repository) UpdateSandbox(ctx context.Context, s model.Sandbox) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sandboxes[s.ID]; !ok {
		return fmt.Errorf("sandbox %s: %w", s.ID, model.ErrNotFound)
	}

	r.sandboxes[s.ID] = cloneSandbox(s)
	r.logger.Debugf("Updated sandbox in repository: %s", s.ID)

	return nil
}

// DeleteSandbox deletes a sandbox.
func (r *Repository) DeleteSandbox(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sandboxes[id]; !ok {
		return fmt.Errorf("sandbox %s: %w", id, model.ErrNotFound)
	}

	delete(r.sandboxes, id)
	r.logger.Debugf("Deleted sandbox from repository: %s", id)

	return nil
}

// ListTasks returns the session tasks ordered by their order.
func (r *Repository) ListTasks(ctx context.Context, sessionID string, statuses []model.TaskStatus) ([]model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := []model.Task{}
	for _, t := range r.tasks {
		if t.SessionID != sessionID {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, t.Status) {
			continue
		}
		t.Data = maps.Clone(t.Data)
		tasks = append(tasks, t)
	}

	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].Order != tasks[j].Order {
			return tasks[i].Order < tasks[j].Order
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})

	return tasks, nil
}

// InsertTask adds a new task to a session.
func (r *Repository) InsertTask(ctx context.Context, sessionID string, order int, data map[string]any, status model.TaskStatus) (*model.Task, error) {
	if status == "" {
		status = model.TaskStatusPending
	}
	if !status.Valid() {
		return nil, fmt.Errorf("unknown task status %q: %w", status, model.ErrNotValid)
	}

	now := time.Now().UTC()
	t := model.Task{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Order:     order,
		Status:    status,
		Data:      maps.Clone(data),
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	r.tasks[t.ID] = t
	r.mu.Unlock()

	r.logger.Debugf("Inserted task %s on session %s", t.ID, sessionID)
	t.Data = maps.Clone(t.Data)
	return &t, nil
}

// UpdateTask updates the set fields of a task.
func (r *Repository) UpdateTask(ctx context.Context, id string, update model.TaskUpdate) (*model.Task, error) {
	if update.Status != nil && !update.Status.Valid() {
		return nil, fmt.Errorf("unknown task status %q: %w", *update.Status, model.ErrNotValid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	if update.Status != nil {
		t.Status = *update.Status
	}
	if update.Order != nil {
		t.Order = *update.Order
	}
	if update.Data != nil {
		t.Data = maps.Clone(update.Data)
	}
	t.UpdatedAt = time.Now().UTC()
	r.tasks[id] = t

	t.Data = maps.Clone(t.Data)
	return &t, nil
}

// DeleteTask deletes a task.
func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tasks, id)
	return nil
}

func cloneSandbox(s model.Sandbox) model.Sandbox {
	s.ExposedURLs = slices.Clone(s.ExposedURLs)
	s.Metadata = slices.Clone(s.Metadata)
	s.Spec.Command = slices.Clone(s.Spec.Command)
	s.Spec.Ports = slices.Clone(s.Spec.Ports)
	s.Spec.Env = maps.Clone(s.Spec.Env)
	s.Spec.Labels = maps.Clone(s.Spec.Labels)
	return s
}
