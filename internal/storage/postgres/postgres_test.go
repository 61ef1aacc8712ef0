package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/sbxhub/internal/log"
	"github.com/slok/sbxhub/internal/model"
	"github.com/slok/sbxhub/internal/storage"
	"github.com/slok/sbxhub/internal/storage/postgres"
)

var (
	_ storage.Repository     = &postgres.Repository{}
	_ storage.TaskRepository = &postgres.Repository{}
)

func newRepo(t *testing.T) *postgres.Repository {
	t.Helper()

	dsn := os.Getenv("SBXHUB_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SBXHUB_TEST_POSTGRES_DSN not set")
	}

	repo, err := postgres.NewRepository(context.Background(), postgres.RepositoryConfig{DSN: dsn, Logger: log.Noop})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func sandboxFixture(name string, backend model.Backend, createdAt time.Time) model.Sandbox {
	id := ulid.Make().String()
	return model.Sandbox{
		ID:        id,
		Name:      name,
		Backend:   backend,
		Status:    model.SandboxStatusRunning,
		Spec:      model.SandboxSpec{ID: id, Name: name, Backend: backend, Ports: []int{8080}},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestRepositorySandboxes(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	run := ulid.Make().String()
	base := time.Now().UTC().Truncate(time.Second)
	var created []model.Sandbox
	for i := range 5 {
		sb := sandboxFixture(fmt.Sprintf("%s-%d", run, i), model.BackendLocal, base.Add(time.Duration(i/2)*time.Nanosecond))
		sb.ExposedURLs = []model.ExposedURL{{Port: 8080, URL: "http://127.0.0.1:8080"}}
		require.NoError(t, repo.CreateSandbox(ctx, sb))
		created = append(created, sb)
		t.Cleanup(func() { _ = repo.DeleteSandbox(context.Background(), sb.ID) })
	}

	got, err := repo.GetSandbox(ctx, created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, created[0], *got)

	got, err = repo.GetSandboxByName(ctx, created[1].Name)
	require.NoError(t, err)
	assert.Equal(t, created[1].ID, got.ID)

	err = repo.CreateSandbox(ctx, created[0])
	assert.True(t, errors.Is(err, model.ErrAlreadyExists))

	stopped := base.Add(time.Minute)
	upd := created[2]
	upd.Status = model.SandboxStatusStopped
	upd.ExposedURLs = nil
	upd.StoppedAt = &stopped
	require.NoError(t, repo.UpdateSandbox(ctx, upd))
	got, err = repo.GetSandbox(ctx, upd.ID)
	require.NoError(t, err)
	assert.Equal(t, upd, *got)

	// Paginate only over the sandboxes of this run.
	status := model.SandboxStatusRunning
	var paged []model.Sandbox
	token := ""
	for {
		page, err := repo.ListSandboxes(ctx, model.SandboxFilter{Status: &status}, model.PageRequest{Size: 2, Token: token})
		require.NoError(t, err)
		for _, sb := range page.Items {
			if sb.CreatedAt.Before(base) || sb.CreatedAt.After(base.Add(time.Second)) {
				continue
			}
			paged = append(paged, sb)
		}
		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}
	assert.Len(t, paged, 4)
	for i := 1; i < len(paged); i++ {
		assert.True(t, model.CursorFor(paged[i-1]).After(paged[i]))
	}

	require.NoError(t, repo.DeleteSandbox(ctx, created[4].ID))
	_, err = repo.GetSandbox(ctx, created[4].ID)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestRepositoryTasks(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	session := ulid.Make().String()
	t2, err := repo.InsertTask(ctx, session, 2, map[string]any{"name": "b"}, "")
	require.NoError(t, err)
	t1, err := repo.InsertTask(ctx, session, 1, map[string]any{"name": "a"}, model.TaskStatusRunning)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = repo.DeleteTask(context.Background(), t1.ID)
		_ = repo.DeleteTask(context.Background(), t2.ID)
	})

	tasks, err := repo.ListTasks(ctx, session, nil)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, t1.ID, tasks[0].ID)

	tasks, err = repo.ListTasks(ctx, session, []model.TaskStatus{model.TaskStatusPending})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, t2.ID, tasks[0].ID)

	failed := model.TaskStatusFailed
	updated, err := repo.UpdateTask(ctx, t2.ID, model.TaskUpdate{Status: &failed})
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFailed, updated.Status)
	assert.Equal(t, map[string]any{"name": "b"}, updated.Data)

	_, err = repo.UpdateTask(ctx, "not-a-task", model.TaskUpdate{Status: &failed})
	assert.True(t, errors.Is(err, model.ErrNotFound))

	require.NoError(t, repo.DeleteTask(ctx, t1.ID))
	require.NoError(t, repo.DeleteTask(ctx, t1.ID))
}
