package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/slok/sbxhub/internal/model"
)

const taskColumns = `id, session_id, task_order, status, data, created_at, updated_at`

// ListTasks returns the session tasks ordered by their order, optionally filtered by status.
func (r *Repository) ListTasks(ctx context.Context, sessionID string, statuses []model.TaskStatus) ([]model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE session_id = $1`
	args := []any{sessionID}
	if len(statuses) > 0 {
		ss := make([]string, 0, len(statuses))
		for _, s := range statuses {
			ss = append(ss, string(s))
		}
		query += ` AND status = ANY($2)`
		args = append(args, ss)
	}
	query += ` ORDER BY task_order ASC, created_at ASC`

	rows, err := r.pool.Query(ctx, query, args...)
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
func (r *Repository) InsertTask(ctx context.Context, sessionID string, order int, data map[string]any, status model.TaskStatus) (*model.Task, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required: %w", model.ErrNotValid)
	}
	if status == "" {
		status = model.TaskStatusPending
	}
	if !status.Valid() {
		return nil, fmt.Errorf("unknown task status %q: %w", status, model.ErrNotValid)
	}
	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("could not marshal task data: %w: %w", model.ErrNotValid, err)
	}

	now := time.Now().UTC().UnixNano()
	t, err := scanTask(r.pool.QueryRow(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+taskColumns,
		uuid.New(), sessionID, order, string(status), raw, now, now,
	))
	if err != nil {
		return nil, fmt.Errorf("could not insert task: %w", err)
	}

	r.logger.Debugf("Inserted task %s on session %s", t.ID, sessionID)
	return t, nil
}

// UpdateTask updates only the set fields of the task and returns the updated task.
func (r *Repository) UpdateTask(ctx context.Context, id string, update model.TaskUpdate) (*model.Task, error) {
	taskID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	var (
		sets []string
		args []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if update.Status != nil {
		if !update.Status.Valid() {
			return nil, fmt.Errorf("unknown task status %q: %w", *update.Status, model.ErrNotValid)
		}
		sets = append(sets, "status = "+arg(string(*update.Status)))
	}
	if update.Order != nil {
		sets = append(sets, "task_order = "+arg(*update.Order))
	}
	if update.Data != nil {
		raw, err := json.Marshal(update.Data)
		if err != nil {
			return nil, fmt.Errorf("could not marshal task data: %w: %w", model.ErrNotValid, err)
		}
		sets = append(sets, "data = "+arg(raw))
	}
	sets = append(sets, "updated_at = "+arg(time.Now().UTC().UnixNano()))

	query := `UPDATE tasks SET ` + strings.Join(sets, ", ") + ` WHERE id = ` + arg(taskID) + ` RETURNING ` + taskColumns
	t, err := scanTask(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not update task: %w", err)
	}

	r.logger.Debugf("Updated task: %s", id)
	return t, nil
}

// DeleteTask deletes a task, missing tasks are ignored.
func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	taskID, err := uuid.Parse(id)
	if err != nil {
		return nil
	}

	if _, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, taskID); err != nil {
		return fmt.Errorf("could not delete task: %w", err)
	}

	return nil
}

func scanTask(row pgx.Row) (*model.Task, error) {
	var (
		t                    model.Task
		id                   uuid.UUID
		status               string
		data                 []byte
		createdAt, updatedAt int64
	)
	if err := row.Scan(&id, &t.SessionID, &t.Order, &status, &data, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	t.ID = id.String()
	t.Status = model.TaskStatus(status)
	t.CreatedAt = timeFromUnixNano(createdAt)
	t.UpdatedAt = timeFromUnixNano(updatedAt)
	if err := json.Unmarshal(data, &t.Data); err != nil {
		return nil, fmt.Errorf("could not unmarshal task data: %w", err)
	}

	return &t, nil
}
