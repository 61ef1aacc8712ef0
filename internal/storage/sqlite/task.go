package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/slok/sbxhub/internal/log"
	"github.com/slok/sbxhub/internal/model"
)

// TaskRepositoryConfig is the configuration for the SQLite task repository.
type TaskRepositoryConfig struct {
	DB     *sql.DB
	Logger log.Logger
}

func (c *TaskRepositoryConfig) defaults() error {
	if c.DB == nil {
		return fmt.Errorf("db is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.TaskRepository"})
	return nil
}

// TaskRepository is a SQLite implementation of storage.TaskRepository.
type TaskRepository struct {
	db     *sql.DB
	logger log.Logger
}

// NewTaskRepository creates a new SQLite task repository.
func NewTaskRepository(cfg TaskRepositoryConfig) (*TaskRepository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &TaskRepository{
		db:     cfg.DB,
		logger: cfg.Logger,
	}, nil
}

const taskColumns = `id, session_id, task_order, status, data, created_at, updated_at`

// ListTasks returns the session tasks ordered by their order, optionally filtered by status.
func (r *TaskRepository) ListTasks(ctx context.Context, sessionID string, statuses []model.TaskStatus) ([]model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE session_id = ?`
	args := []any{sessionID}
	if len(statuses) > 0 {
		placeholders := make([]string, 0, len(statuses))
		for _, s := range statuses {
			placeholders = append(placeholders, "?")
			args = append(args, string(s))
		}
		query += ` AND status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY task_order ASC, created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return tasks, nil
}

// InsertTask adds a task to a session, the status defaults to pending.
func (r *TaskRepository) InsertTask(ctx context.Context, sessionID string, order int, data map[string]any, status model.TaskStatus) (*model.Task, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required: %w", model.ErrNotValid)
	}
	if status == "" {
		status = model.TaskStatusPending
	}
	if !status.Valid() {
		return nil, fmt.Errorf("unknown task status %q: %w", status, model.ErrNotValid)
	}

	rawData, err := marshalTaskData(data)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t := &model.Task{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Order:     order,
		Status:    status,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := `INSERT INTO tasks (` + taskColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query, t.ID, t.SessionID, t.Order, string(t.Status), rawData, now.UnixNano(), now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("could not insert task: %w", err)
	}

	r.logger.Debugf("Inserted task %s on session %s", t.ID, sessionID)
	return t, nil
}

// UpdateTask updates only the set fields of the task and returns the updated task.
func (r *TaskRepository) UpdateTask(ctx context.Context, id string, update model.TaskUpdate) (*model.Task, error) {
	var (
		sets []string
		args []any
	)
	if update.Status != nil {
		if !update.Status.Valid() {
			return nil, fmt.Errorf("unknown task status %q: %w", *update.Status, model.ErrNotValid)
		}
		sets = append(sets, "status = ?")
		args = append(args, string(*update.Status))
	}
	if update.Order != nil {
		sets = append(sets, "task_order = ?")
		args = append(args, *update.Order)
	}
	if update.Data != nil {
		rawData, err := marshalTaskData(update.Data)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "data = ?")
		args = append(args, rawData)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC().UnixNano(), id)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // Rollback is safe to call after Commit.

	result, err := tx.ExecContext(ctx, `UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("could not update task: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	t, err := scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("could not query updated task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("could not commit transaction: %w", err)
	}

	r.logger.Debugf("Updated task: %s", id)
	return t, nil
}

// DeleteTask deletes a task, missing tasks are ignored.
func (r *TaskRepository) DeleteTask(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("could not delete task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}

	r.logger.Debugf("Deleted %d tasks with id %s", rows, id)
	return nil
}

func marshalTaskData(data map[string]any) (string, error) {
	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("could not marshal task data: %w: %w", model.ErrNotValid, err)
	}
	return string(raw), nil
}

func scanTask(s scanner) (*model.Task, error) {
	var (
		t                    model.Task
		status, data         string
		createdAt, updatedAt int64
	)
	err := s.Scan(&t.ID, &t.SessionID, &t.Order, &status, &data, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task: %w", model.ErrNotFound)
		}
		return nil, err
	}

	t.Status = model.TaskStatus(status)
	t.CreatedAt = timeFromUnixNano(createdAt)
	t.UpdatedAt = timeFromUnixNano(updatedAt)
	if err := json.Unmarshal([]byte(data), &t.Data); err != nil {
		return nil, fmt.Errorf("could not unmarshal task data: %w", err)
	}

	return &t, nil
}
