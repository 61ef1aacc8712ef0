package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/sbxhub/internal/log"
	"github.com/slok/sbxhub/internal/model"
	"github.com/slok/sbxhub/internal/storage"
	"github.com/slok/sbxhub/internal/storage/sqlite"
)

func newTaskRepo(t *testing.T) *sqlite.TaskRepository {
	t.Helper()
	repo := newRepo(t)
	taskRepo, err := sqlite.NewTaskRepository(sqlite.TaskRepositoryConfig{DB: repo.DB(), Logger: log.Noop})
	require.NoError(t, err)
	return taskRepo
}

var _ storage.TaskRepository = &sqlite.TaskRepository{}

func TestInsertTask(t *testing.T) {
	tests := map[string]struct {
		sessionID string
		order     int
		data      map[string]any
		status    model.TaskStatus
		expStatus model.TaskStatus
		expErr    error
	}{
		"Inserting a task without status should be pending": {
			sessionID: "session-1",
			order:     1,
			data:      map[string]any{"name": "plan"},
			expStatus: model.TaskStatusPending,
		},

		"Inserting a task with a status should keep it": {
			sessionID: "session-1",
			order:     2,
			status:    model.TaskStatusRunning,
			expStatus: model.TaskStatusRunning,
		},

		"Inserting a task with an unknown status should fail": {
			sessionID: "session-1",
			status:    "wrong",
			expErr:    model.ErrNotValid,
		},

		"Inserting a task without session should fail": {
			expErr: model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)
			ctx := context.Background()

			repo := newTaskRepo(t)
			task, err := repo.InsertTask(ctx, test.sessionID, test.order, test.data, test.status)

			if test.expErr != nil {
				require.Error(err)
				assert.True(errors.Is(err, test.expErr))
				return
			}
			require.NoError(err)
			assert.NotEmpty(task.ID)
			assert.Equal(test.expStatus, task.Status)

			tasks, err := repo.ListTasks(ctx, test.sessionID, nil)
			require.NoError(err)
			require.Len(tasks, 1)
			assert.Equal(task.ID, tasks[0].ID)
			assert.Equal(test.order, tasks[0].Order)
			assert.Equal(test.expStatus, tasks[0].Status)
			if test.data == nil {
				assert.Empty(tasks[0].Data)
			} else {
				assert.Equal(test.data, tasks[0].Data)
			}
		})
	}
}

func TestListTasks(t *testing.T) {
	ctx := context.Background()
	repo := newTaskRepo(t)

	t3, err := repo.InsertTask(ctx, "session-1", 3, nil, model.TaskStatusFailed)
	require.NoError(t, err)
	t1, err := repo.InsertTask(ctx, "session-1", 1, nil, model.TaskStatusSuccess)
	require.NoError(t, err)
	t2, err := repo.InsertTask(ctx, "session-1", 2, nil, model.TaskStatusPending)
	require.NoError(t, err)
	_, err = repo.InsertTask(ctx, "session-2", 1, nil, model.TaskStatusPending)
	require.NoError(t, err)

	tests := map[string]struct {
		sessionID string
		statuses  []model.TaskStatus
		expIDs    []string
	}{
		"Listing without filter should return all the session tasks in order": {
			sessionID: "session-1",
			expIDs:    []string{t1.ID, t2.ID, t3.ID},
		},
		"Listing filtering by a status should return only those tasks": {
			sessionID: "session-1",
			statuses:  []model.TaskStatus{model.TaskStatusPending},
			expIDs:    []string{t2.ID},
		},
		"Listing filtering by multiple statuses should return those tasks": {
			sessionID: "session-1",
			statuses:  []model.TaskStatus{model.TaskStatusFailed, model.TaskStatusSuccess},
			expIDs:    []string{t1.ID, t3.ID},
		},
		"Listing a missing session should return nothing": {
			sessionID: "session-3",
			expIDs:    []string{},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			tasks, err := repo.ListTasks(ctx, test.sessionID, test.statuses)
			require.NoError(t, err)

			ids := []string{}
			for _, tk := range tasks {
				ids = append(ids, tk.ID)
			}
			assert.Equal(t, test.expIDs, ids)
		})
	}
}

func TestUpdateTask(t *testing.T) {
	success := model.TaskStatusSuccess
	wrong := model.TaskStatus("wrong")
	five := 5

	tests := map[string]struct {
		update    model.TaskUpdate
		missing   bool
		expErr    error
		expStatus model.TaskStatus
		expOrder  int
		expData   map[string]any
	}{
		"Updating only the status should keep the rest": {
			update:    model.TaskUpdate{Status: &success},
			expStatus: model.TaskStatusSuccess,
			expOrder:  1,
			expData:   map[string]any{"name": "plan"},
		},
		"Updating only the order should keep the rest": {
			update:    model.TaskUpdate{Order: &five},
			expStatus: model.TaskStatusPending,
			expOrder:  5,
			expData:   map[string]any{"name": "plan"},
		},
		"Updating the data should replace it": {
			update:    model.TaskUpdate{Data: map[string]any{"name": "execute", "tool": "shell"}},
			expStatus: model.TaskStatusPending,
			expOrder:  1,
			expData:   map[string]any{"name": "execute", "tool": "shell"},
		},
		"Updating with nothing set should keep the task": {
			expStatus: model.TaskStatusPending,
			expOrder:  1,
			expData:   map[string]any{"name": "plan"},
		},
		"Updating with an unknown status should fail": {
			update: model.TaskUpdate{Status: &wrong},
			expErr: model.ErrNotValid,
		},
		"Updating a missing task should fail": {
			update:  model.TaskUpdate{Status: &success},
			missing: true,
			expErr:  model.ErrNotFound,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := newTaskRepo(t)

			task, err := repo.InsertTask(ctx, "session-1", 1, map[string]any{"name": "plan"}, "")
			require.NoError(t, err)

			id := task.ID
			if test.missing {
				id = "missing"
			}
			got, err := repo.UpdateTask(ctx, id, test.update)

			if test.expErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, test.expErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, task.ID, got.ID)
			assert.Equal(t, test.expStatus, got.Status)
			assert.Equal(t, test.expOrder, got.Order)
			assert.Equal(t, test.expData, got.Data)
			assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
		})
	}
}

func TestDeleteTask(t *testing.T) {
	ctx := context.Background()
	repo := newTaskRepo(t)

	task, err := repo.InsertTask(ctx, "session-1", 1, nil, "")
	require.NoError(t, err)

	require.NoError(t, repo.DeleteTask(ctx, task.ID))
	// Deleting twice is not an error.
	require.NoError(t, repo.DeleteTask(ctx, task.ID))

	tasks, err := repo.ListTasks(ctx, "session-1", nil)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
