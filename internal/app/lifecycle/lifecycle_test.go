package lifecycle_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/sbxhub/internal/app/lifecycle"
	"github.com/slok/sbxhub/internal/model"
	"github.com/slok/sbxhub/internal/runtime"
	"github.com/slok/sbxhub/internal/runtime/local"
	"github.com/slok/sbxhub/internal/runtime/runtimemock"
	"github.com/slok/sbxhub/internal/storage/memory"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type testEnv struct {
	svc  *lifecycle.Service
	repo *memory.Repository
	reg  *runtime.Registry
}

func newTestEnv(t *testing.T, runtimes map[model.Backend]runtime.Runtime, rec *recorder) testEnv {
	t.Helper()

	reg, err := runtime.NewRegistry(runtime.RegistryConfig{})
	require.NoError(t, err)
	for backend, rt := range runtimes {
		reg.Register(backend, func() (runtime.Runtime, error) { return rt, nil })
	}

	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)

	cfg := lifecycle.ServiceConfig{
		Runtimes:   reg,
		Repository: repo,
		TimeNow:    func() time.Time { return t0 },
	}
	if rec != nil {
		cfg.Metrics = rec
	}
	svc, err := lifecycle.NewService(cfg)
	require.NoError(t, err)

	return testEnv{svc: svc, repo: repo, reg: reg}
}

func newLocal(t *testing.T, cfg local.RuntimeConfig) *local.Runtime {
	t.Helper()
	rt, err := local.NewRuntime(cfg)
	require.NoError(t, err)
	return rt
}

// storeSandbox stores a sandbox record directly on the repository.
func storeSandbox(t *testing.T, env testEnv, name string, backend model.Backend, status model.SandboxStatus) model.Sandbox {
	t.Helper()

	id := ulid.Make().String()
	sb := model.Sandbox{
		ID:        id,
		Name:      name,
		Backend:   backend,
		Status:    status,
		Spec:      model.SandboxSpec{ID: id, Name: name, Backend: backend},
		CreatedAt: t0,
		UpdatedAt: t0,
	}
	if status == model.SandboxStatusRunning {
		started := t0
		sb.StartedAt = &started
		sb.ExposedURLs = []model.ExposedURL{{Port: 8080, URL: "http://127.0.0.1:8080"}}
	}
	require.NoError(t, env.repo.CreateSandbox(context.Background(), sb))
	return sb
}

func getStored(t *testing.T, env testEnv, id string) *model.Sandbox {
	t.Helper()
	sb, err := env.repo.GetSandbox(context.Background(), id)
	require.NoError(t, err)
	return sb
}

func requireOpError(t *testing.T, err error, outcome model.Outcome, kind error) {
	t.Helper()
	require.Error(t, err)
	var opErr *model.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, outcome, opErr.Outcome)
	if kind != nil {
		assert.ErrorIs(t, err, kind)
	}
}

type observation struct {
	backend model.Backend
	op      string
	outcome string
}

type recorder struct {
	mu     sync.Mutex
	ops    []observation
	counts map[string]int
}

func (r *recorder) ObserveOperation(_ context.Context, backend model.Backend, op, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, observation{backend: backend, op: op, outcome: outcome})
}

func (r *recorder) SetSandboxCount(_ context.Context, backend model.Backend, status model.SandboxStatus, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[fmt.Sprintf("%s/%s", backend, status)] = n
}

func TestLocalSandboxLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, map[model.Backend]runtime.Runtime{
		model.BackendLocal: newLocal(t, local.RuntimeConfig{}),
	}, nil)

	created, err := env.svc.Create(ctx, model.SandboxSpec{Name: "web", Backend: model.BackendLocal, Ports: []int{8080}})
	require.NoError(t, err)
	assert.Equal(t, model.SandboxStatusRunning, created.Status)
	assert.Equal(t, []model.ExposedURL{{Port: 8080, URL: "http://127.0.0.1:8080"}}, created.ExposedURLs)
	assert.NotNil(t, created.StartedAt)

	got, err := env.svc.Status(ctx, "web")
	require.NoError(t, err)
	assert.Equal(t, model.SandboxStatusRunning, got.Status)
	assert.Equal(t, created.ExposedURLs, got.ExposedURLs)

	// By ID.
	got, err = env.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "web", got.Name)

	require.NoError(t, env.svc.Terminate(ctx, "web"))

	got, err = env.svc.Get(ctx, "web")
	require.NoError(t, err)
	assert.Equal(t, model.SandboxStatusStopped, got.Status)
	assert.Empty(t, got.ExposedURLs)
	assert.NotNil(t, got.StoppedAt)

	// Terminating again is a no-op.
	require.NoError(t, env.svc.Terminate(ctx, "web"))
	require.NoError(t, env.svc.Terminate(ctx, "missing"))

	require.NoError(t, env.svc.Purge(ctx, "web"))
	_, err = env.svc.Get(ctx, "web")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRemoteBackendUnregistered(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, map[model.Backend]runtime.Runtime{
		model.BackendLocal: newLocal(t, local.RuntimeConfig{}),
	}, nil)

	_, err := env.svc.Create(ctx, model.SandboxSpec{Name: "rmt", Backend: model.BackendRemote})
	requireOpError(t, err, model.OutcomeNothingHappened, model.ErrUnregisteredBackend)

	page, err := env.svc.List(ctx, model.SandboxFilter{}, model.PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	// Records of an unregistered backend can't be operated.
	sb := storeSandbox(t, env, "rmt", model.BackendRemote, model.SandboxStatusRunning)

	_, err = env.svc.Status(ctx, "rmt")
	requireOpError(t, err, model.OutcomeNothingHappened, model.ErrUnregisteredBackend)

	err = env.svc.Terminate(ctx, "rmt")
	requireOpError(t, err, model.OutcomeNothingHappened, model.ErrUnregisteredBackend)

	assert.Equal(t, model.SandboxStatusRunning, getStored(t, env, sb.ID).Status)
}

func TestServiceCreate(t *testing.T) {
	tests := map[string]struct {
		spec       model.SandboxSpec
		mock       func(m *runtimemock.Runtime)
		expOutcome model.Outcome
		expErrKind error
		expStored  bool
		expStatus  model.SandboxStatus
	}{
		"An invalid spec should fail without storing anything.": {
			spec:       model.SandboxSpec{Backend: model.BackendDocker, Ports: []int{0}},
			mock:       func(m *runtimemock.Runtime) {},
			expOutcome: model.OutcomeNothingHappened,
			expErrKind: model.ErrNotValid,
		},

		"A backend rejection should mark the sandbox as failed.": {
			spec: model.SandboxSpec{Name: "sb", Backend: model.BackendDocker},
			mock: func(m *runtimemock.Runtime) {
				m.On("Create", mock.Anything, mock.Anything).Once().Return(nil, fmt.Errorf("no image: %w", model.ErrProvision))
			},
			expOutcome: model.OutcomeFailed,
			expErrKind: model.ErrProvision,
			expStored:  true,
			expStatus:  model.SandboxStatusFailed,
		},

		"A backend timeout should mark the sandbox as unknown.": {
			spec: model.SandboxSpec{Name: "sb", Backend: model.BackendDocker},
			mock: func(m *runtimemock.Runtime) {
				m.On("Create", mock.Anything, mock.Anything).Once().Return(nil, fmt.Errorf("slow: %w", model.ErrTimeout))
			},
			expOutcome: model.OutcomeStateUnknown,
			expErrKind: model.ErrTimeout,
			expStored:  true,
			expStatus:  model.SandboxStatusUnknown,
		},

		"An unclassified backend error should mark the sandbox as unknown.": {
			spec: model.SandboxSpec{Name: "sb", Backend: model.BackendDocker},
			mock: func(m *runtimemock.Runtime) {
				m.On("Create", mock.Anything, mock.Anything).Once().Return(nil, errors.New("something"))
			},
			expOutcome: model.OutcomeStateUnknown,
			expStored:  true,
			expStatus:  model.SandboxStatusUnknown,
		},

		"A backend reporting an impossible status should leave the sandbox as unknown.": {
			spec: model.SandboxSpec{Name: "sb", Backend: model.BackendDocker},
			mock: func(m *runtimemock.Runtime) {
				m.On("Create", mock.Anything, mock.Anything).Once().Return(&model.Sandbox{Status: "weird"}, nil)
			},
			expStored: true,
			expStatus: model.SandboxStatusUnknown,
		},

		"A starting sandbox should be stored as starting without URLs.": {
			spec: model.SandboxSpec{Name: "sb", Backend: model.BackendDocker, Image: "alpine", Ports: []int{80}},
			mock: func(m *runtimemock.Runtime) {
				m.On("Create", mock.Anything, mock.MatchedBy(func(s model.SandboxSpec) bool {
					return s.ID != "" && s.Name == "sb" && s.Image == "alpine"
				})).Once().Return(&model.Sandbox{
					Status:      model.SandboxStatusStarting,
					ExposedURLs: []model.ExposedURL{{Port: 80, URL: "http://x"}},
					Metadata:    []byte(`{"container_id":"c1"}`),
				}, nil)
			},
			expStored: true,
			expStatus: model.SandboxStatusStarting,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			mrt := runtimemock.NewRuntime(t)
			test.mock(mrt)
			env := newTestEnv(t, map[model.Backend]runtime.Runtime{model.BackendDocker: mrt}, nil)

			gotSB, err := env.svc.Create(context.Background(), test.spec)

			if test.expOutcome != "" {
				requireOpError(t, err, test.expOutcome, test.expErrKind)
				assert.Nil(gotSB)
			} else {
				require.NoError(err)
				assert.Equal(test.expStatus, gotSB.Status)
				assert.Empty(gotSB.ExposedURLs)
			}

			page, err := env.repo.ListSandboxes(context.Background(), model.SandboxFilter{}, model.PageRequest{})
			require.NoError(err)
			if !test.expStored {
				assert.Empty(page.Items)
				return
			}
			require.Len(page.Items, 1)
			assert.Equal(test.expStatus, page.Items[0].Status)
			assert.Equal(test.expStatus == model.SandboxStatusFailed, page.Items[0].StoppedAt != nil)
			assert.Empty(page.Items[0].ExposedURLs)
		})
	}
}

func TestServiceCreateCancelledMarksUnknown(t *testing.T) {
	rec := &recorder{}
	env := newTestEnv(t, map[model.Backend]runtime.Runtime{
		model.BackendLocal: newLocal(t, local.RuntimeConfig{CreateDelay: time.Minute}),
	}, rec)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := env.svc.Create(ctx, model.SandboxSpec{Name: "slow", Backend: model.BackendLocal})
	requireOpError(t, err, model.OutcomeStateUnknown, model.ErrTimeout)

	// The record is stored even with the caller context cancelled.
	got, err := env.svc.Get(context.Background(), "slow")
	require.NoError(t, err)
	assert.Equal(t, model.SandboxStatusUnknown, got.Status)
	assert.NotEmpty(t, got.Error)

	require.Len(t, rec.ops, 1)
	assert.Equal(t, observation{backend: model.BackendLocal, op: "create", outcome: "state-unknown"}, rec.ops[0])
}

func TestServiceCreateDefaultName(t *testing.T) {
	env := newTestEnv(t, map[model.Backend]runtime.Runtime{
		model.BackendLocal: newLocal(t, local.RuntimeConfig{}),
	}, nil)

	sb, err := env.svc.Create(context.Background(), model.SandboxSpec{Backend: model.BackendLocal})
	require.NoError(t, err)
	assert.Regexp(t, `^sbx-[0-9a-z]{10}$`, sb.Name)
	assert.Equal(t, sb.Name, sb.Spec.Name)
}

func TestServiceStatus(t *testing.T) {
	urls := []model.ExposedURL{{Port: 9090, URL: "http://127.0.0.1:9090"}}

	tests := map[string]struct {
		status     model.SandboxStatus
		mock       func(m *runtimemock.Runtime)
		expErr     bool
		expStatus  model.SandboxStatus
		expURLs    []model.ExposedURL
		expError   string
		expStopped bool
	}{
		"A terminal sandbox should not ask the backend.": {
			status:    model.SandboxStatusFailed,
			mock:      func(m *runtimemock.Runtime) {},
			expStatus: model.SandboxStatusFailed,
		},

		"An unknown sandbox found running should be running with its URLs.": {
			status: model.SandboxStatusUnknown,
			mock: func(m *runtimemock.Runtime) {
				m.On("Status", mock.Anything, mock.Anything).Once().Return(model.SandboxStatusRunning, nil)
				m.On("ExposedURLs", mock.Anything, mock.Anything).Once().Return(urls, nil)
			},
			expStatus: model.SandboxStatusRunning,
			expURLs:   urls,
		},

		"A running sandbox with new URLs should update them.": {
			status: model.SandboxStatusRunning,
			mock: func(m *runtimemock.Runtime) {
				m.On("Status", mock.Anything, mock.Anything).Once().Return(model.SandboxStatusRunning, nil)
				m.On("ExposedURLs", mock.Anything, mock.Anything).Once().Return(urls, nil)
			},
			expStatus: model.SandboxStatusRunning,
			expURLs:   urls,
		},

		"Failing to get the URLs should keep the stored ones.": {
			status: model.SandboxStatusRunning,
			mock: func(m *runtimemock.Runtime) {
				m.On("Status", mock.Anything, mock.Anything).Once().Return(model.SandboxStatusRunning, nil)
				m.On("ExposedURLs", mock.Anything, mock.Anything).Once().Return(nil, errors.New("whatever"))
			},
			expStatus: model.SandboxStatusRunning,
			expURLs:   []model.ExposedURL{{Port: 8080, URL: "http://127.0.0.1:8080"}},
		},

		"A running sandbox that exited should be stopped without URLs.": {
			status: model.SandboxStatusRunning,
			mock: func(m *runtimemock.Runtime) {
				m.On("Status", mock.Anything, mock.Anything).Once().Return(model.SandboxStatusStopped, nil)
			},
			expStatus:  model.SandboxStatusStopped,
			expStopped: true,
		},

		"A backward report should be ignored.": {
			status: model.SandboxStatusRunning,
			mock: func(m *runtimemock.Runtime) {
				m.On("Status", mock.Anything, mock.Anything).Once().Return(model.SandboxStatusPending, nil)
			},
			expStatus: model.SandboxStatusRunning,
			expURLs:   []model.ExposedURL{{Port: 8080, URL: "http://127.0.0.1:8080"}},
		},

		"A stopping sandbox missing on the backend should be stopped.": {
			status: model.SandboxStatusStopping,
			mock: func(m *runtimemock.Runtime) {
				m.On("Status", mock.Anything, mock.Anything).Once().Return(model.SandboxStatus(""), model.ErrNotFound)
			},
			expStatus:  model.SandboxStatusStopped,
			expStopped: true,
		},

		"A running sandbox missing on the backend should be failed.": {
			status: model.SandboxStatusRunning,
			mock: func(m *runtimemock.Runtime) {
				m.On("Status", mock.Anything, mock.Anything).Once().Return(model.SandboxStatus(""), fmt.Errorf("gone: %w", model.ErrNotFound))
			},
			expStatus:  model.SandboxStatusFailed,
			expError:   "sandbox missing on backend",
			expStopped: true,
		},

		"A backend error should fail without changing the sandbox.": {
			status: model.SandboxStatusPending,
			mock: func(m *runtimemock.Runtime) {
				m.On("Status", mock.Anything, mock.Anything).Once().Return(model.SandboxStatus(""), model.ErrTransientInfra)
			},
			expErr:    true,
			expStatus: model.SandboxStatusPending,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			mrt := runtimemock.NewRuntime(t)
			test.mock(mrt)
			env := newTestEnv(t, map[model.Backend]runtime.Runtime{model.BackendDocker: mrt}, nil)
			sb := storeSandbox(t, env, "sb", model.BackendDocker, test.status)

			got, err := env.svc.Status(context.Background(), "sb")

			if test.expErr {
				requireOpError(t, err, model.OutcomeNothingHappened, model.ErrTransientInfra)
			} else {
				require.NoError(err)
				assert.Equal(test.expStatus, got.Status)
			}

			stored := getStored(t, env, sb.ID)
			assert.Equal(test.expStatus, stored.Status)
			assert.Equal(test.expURLs, stored.ExposedURLs)
			assert.Equal(test.expError, stored.Error)
			assert.Equal(test.expStopped, stored.StoppedAt != nil)
		})
	}
}

func TestServiceTerminate(t *testing.T) {
	tests := map[string]struct {
		status     model.SandboxStatus
		mock       func(m *runtimemock.Runtime)
		expOutcome model.Outcome
		expStatus  model.SandboxStatus
	}{
		"A running sandbox should be stopped.": {
			status: model.SandboxStatusRunning,
			mock: func(m *runtimemock.Runtime) {
				m.On("Terminate", mock.Anything, mock.Anything).Once().Return(nil)
			},
			expStatus: model.SandboxStatusStopped,
		},

		"A sandbox already gone on the backend should be stopped.": {
			status: model.SandboxStatusUnknown,
			mock: func(m *runtimemock.Runtime) {
				m.On("Terminate", mock.Anything, mock.Anything).Once().Return(model.ErrNotFound)
			},
			expStatus: model.SandboxStatusStopped,
		},

		"A stopped sandbox should not call the backend.": {
			status:    model.SandboxStatusStopped,
			mock:      func(m *runtimemock.Runtime) {},
			expStatus: model.SandboxStatusStopped,
		},

		"A failed sandbox should not call the backend.": {
			status:    model.SandboxStatusFailed,
			mock:      func(m *runtimemock.Runtime) {},
			expStatus: model.SandboxStatusFailed,
		},

		"A backend timeout should mark the sandbox as unknown.": {
			status: model.SandboxStatusRunning,
			mock: func(m *runtimemock.Runtime) {
				m.On("Terminate", mock.Anything, mock.Anything).Once().Return(model.ErrTimeout)
			},
			expOutcome: model.OutcomeStateUnknown,
			expStatus:  model.SandboxStatusUnknown,
		},

		"A backend error should mark the sandbox as failed.": {
			status: model.SandboxStatusRunning,
			mock: func(m *runtimemock.Runtime) {
				m.On("Terminate", mock.Anything, mock.Anything).Once().Return(errors.New("whatever"))
			},
			expOutcome: model.OutcomeFailed,
			expStatus:  model.SandboxStatusFailed,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			mrt := runtimemock.NewRuntime(t)
			test.mock(mrt)
			env := newTestEnv(t, map[model.Backend]runtime.Runtime{model.BackendDocker: mrt}, nil)
			sb := storeSandbox(t, env, "sb", model.BackendDocker, test.status)

			err := env.svc.Terminate(context.Background(), "sb")

			if test.expOutcome != "" {
				requireOpError(t, err, test.expOutcome, nil)
			} else {
				require.NoError(err)
			}

			stored := getStored(t, env, sb.ID)
			assert.Equal(test.expStatus, stored.Status)
			assert.Empty(stored.ExposedURLs)
		})
	}
}

func TestServicePurge(t *testing.T) {
	tests := map[string]struct {
		status    model.SandboxStatus
		expErr    error
		expExists bool
	}{
		"A stopped sandbox should be purged.": {
			status: model.SandboxStatusStopped,
		},

		"A failed sandbox should be purged.": {
			status: model.SandboxStatusFailed,
		},

		"A running sandbox should not be purged.": {
			status:    model.SandboxStatusRunning,
			expErr:    model.ErrNotValid,
			expExists: true,
		},

		"An unknown sandbox should not be purged.": {
			status:    model.SandboxStatusUnknown,
			expErr:    model.ErrNotValid,
			expExists: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t, nil, nil)
			sb := storeSandbox(t, env, "sb", model.BackendDocker, test.status)

			err := env.svc.Purge(context.Background(), "sb")

			if test.expErr != nil {
				requireOpError(t, err, model.OutcomeNothingHappened, test.expErr)
			} else {
				require.NoError(t, err)
			}

			_, err = env.repo.GetSandbox(context.Background(), sb.ID)
			assert.Equal(t, test.expExists, err == nil)
		})
	}
}

func TestServiceNameOrIDResolution(t *testing.T) {
	tests := map[string]struct {
		bNameIsAID bool
		bName      string
		ref        func(a, b model.Sandbox) string
		expTarget  string
	}{
		"An ID should resolve to its sandbox.": {
			bName:     "b",
			ref:       func(a, b model.Sandbox) string { return a.ID },
			expTarget: "a",
		},

		"A name should resolve to its sandbox.": {
			bName:     "b",
			ref:       func(a, b model.Sandbox) string { return "b" },
			expTarget: "b",
		},

		"An ID should win over a name with the same value.": {
			bNameIsAID: true,
			ref:        func(a, b model.Sandbox) string { return a.ID },
			expTarget:  "a",
		},

		"A name shaped as an ID with no matching ID should resolve by name.": {
			bName:     "01ARZ3NDEKTSV4RRFFQ69G5FAV",
			ref:       func(a, b model.Sandbox) string { return "01ARZ3NDEKTSV4RRFFQ69G5FAV" },
			expTarget: "b",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)
			ctx := context.Background()

			mrt := runtimemock.NewRuntime(t)
			env := newTestEnv(t, map[model.Backend]runtime.Runtime{model.BackendDocker: mrt}, nil)
			a := storeSandbox(t, env, "a", model.BackendDocker, model.SandboxStatusRunning)
			bName := test.bName
			if test.bNameIsAID {
				bName = a.ID
			}
			b := storeSandbox(t, env, bName, model.BackendDocker, model.SandboxStatusRunning)
			target, other := a, b
			if test.expTarget == "b" {
				target, other = b, a
			}
			ref := test.ref(a, b)

			// Only the target reaches the backend.
			mrt.On("Status", mock.Anything, target.ID).Once().Return(model.SandboxStatusRunning, nil)
			mrt.On("ExposedURLs", mock.Anything, target.ID).Once().Return(target.ExposedURLs, nil)
			mrt.On("Terminate", mock.Anything, target.ID).Once().Return(nil)

			got, err := env.svc.Get(ctx, ref)
			require.NoError(err)
			assert.Equal(target.ID, got.ID)

			got, err = env.svc.Status(ctx, ref)
			require.NoError(err)
			assert.Equal(target.ID, got.ID)

			require.NoError(env.svc.Terminate(ctx, ref))
			assert.Equal(model.SandboxStatusStopped, getStored(t, env, target.ID).Status)
			assert.Equal(model.SandboxStatusRunning, getStored(t, env, other.ID).Status)

			require.NoError(env.svc.Purge(ctx, ref))
			_, err = env.repo.GetSandbox(ctx, target.ID)
			assert.ErrorIs(err, model.ErrNotFound)
			_, err = env.repo.GetSandbox(ctx, other.ID)
			assert.NoError(err)
		})
	}
}

func TestServiceCreateRejectsIDNames(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, map[model.Backend]runtime.Runtime{
		model.BackendLocal: newLocal(t, local.RuntimeConfig{}),
	}, nil)

	a, err := env.svc.Create(ctx, model.SandboxSpec{Name: "a", Backend: model.BackendLocal})
	require.NoError(t, err)

	_, err = env.svc.Create(ctx, model.SandboxSpec{Name: a.ID, Backend: model.BackendLocal})
	requireOpError(t, err, model.OutcomeNothingHappened, model.ErrNotValid)

	page, err := env.svc.List(ctx, model.SandboxFilter{}, model.PageRequest{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

func TestServiceListPagesConcatenation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, map[model.Backend]runtime.Runtime{
		model.BackendLocal: newLocal(t, local.RuntimeConfig{}),
	}, nil)

	for i := range 7 {
		_, err := env.svc.Create(ctx, model.SandboxSpec{Name: fmt.Sprintf("sb-%d", i), Backend: model.BackendLocal})
		require.NoError(t, err)
	}

	full, err := env.svc.List(ctx, model.SandboxFilter{}, model.PageRequest{Size: model.MaxPageSize})
	require.NoError(t, err)
	require.Len(t, full.Items, 7)
	assert.Empty(t, full.NextToken)

	for size := 1; size <= 8; size++ {
		t.Run(fmt.Sprintf("size-%d", size), func(t *testing.T) {
			var (
				got   []model.Sandbox
				token string
			)
			for {
				page, err := env.svc.List(ctx, model.SandboxFilter{}, model.PageRequest{Size: size, Token: token})
				require.NoError(t, err)
				require.LessOrEqual(t, len(page.Items), size)
				got = append(got, page.Items...)
				if page.NextToken == "" {
					break
				}
				token = page.NextToken
			}
			assert.Equal(t, full.Items, got)
		})
	}

	_, err = env.svc.List(ctx, model.SandboxFilter{}, model.PageRequest{Token: "%%%"})
	requireOpError(t, err, model.OutcomeNothingHappened, model.ErrNotValid)
}

func TestServiceConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, map[model.Backend]runtime.Runtime{
		model.BackendLocal: newLocal(t, local.RuntimeConfig{}),
	}, nil)

	const total = 20
	var wg sync.WaitGroup
	ids := make([]string, total)
	errs := make([]error, total)
	for i := range total {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sb, err := env.svc.Create(ctx, model.SandboxSpec{Backend: model.BackendLocal, Ports: []int{3000 + i}})
			errs[i] = err
			if sb != nil {
				ids[i] = sb.ID
			}
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := range total {
		require.NoError(t, errs[i])
		assert.False(t, seen[ids[i]], "duplicated id %s", ids[i])
		seen[ids[i]] = true
	}

	page, err := env.svc.List(ctx, model.SandboxFilter{}, model.PageRequest{Size: model.MaxPageSize})
	require.NoError(t, err)
	assert.Len(t, page.Items, total)
	for _, sb := range page.Items {
		assert.Equal(t, model.SandboxStatusRunning, sb.Status)
	}
}

// trackingRuntime counts the backend calls running at the same time per sandbox.
type trackingRuntime struct {
	mu       sync.Mutex
	inFlight map[string]int
	maxSeen  atomic.Int32
	calls    atomic.Int32
}

func (r *trackingRuntime) enter(id string) func() {
	r.calls.Add(1)
	r.mu.Lock()
	r.inFlight[id]++
	if n := int32(r.inFlight[id]); n > r.maxSeen.Load() {
		r.maxSeen.Store(n)
	}
	r.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	return func() {
		r.mu.Lock()
		r.inFlight[id]--
		r.mu.Unlock()
	}
}

func (r *trackingRuntime) Create(ctx context.Context, spec model.SandboxSpec) (*model.Sandbox, error) {
	defer r.enter(spec.ID)()
	return &model.Sandbox{Status: model.SandboxStatusRunning}, nil
}

func (r *trackingRuntime) Status(ctx context.Context, id string) (model.SandboxStatus, error) {
	defer r.enter(id)()
	return model.SandboxStatusRunning, nil
}

func (r *trackingRuntime) Terminate(ctx context.Context, id string) error {
	defer r.enter(id)()
	return nil
}

func (r *trackingRuntime) ExposedURLs(ctx context.Context, id string) ([]model.ExposedURL, error) {
	return nil, nil
}

func TestServiceSameSandboxOperationsAreSerialized(t *testing.T) {
	ctx := context.Background()
	rt := &trackingRuntime{inFlight: map[string]int{}}
	env := newTestEnv(t, map[model.Backend]runtime.Runtime{model.BackendDocker: rt}, nil)
	storeSandbox(t, env, "sb", model.BackendDocker, model.SandboxStatusRunning)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = env.svc.Status(ctx, "sb")
		}()
		go func() {
			defer wg.Done()
			_ = env.svc.Terminate(ctx, "sb")
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, rt.maxSeen.Load())
	assert.Positive(t, rt.calls.Load())
	assert.Equal(t, model.SandboxStatusStopped, getStored(t, env, mustID(t, env, "sb")).Status)
}

func mustID(t *testing.T, env testEnv, name string) string {
	t.Helper()
	sb, err := env.repo.GetSandboxByName(context.Background(), name)
	require.NoError(t, err)
	return sb.ID
}

func TestServiceReconcile(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	mrt := runtimemock.NewRuntime(t)
	env := newTestEnv(t, map[model.Backend]runtime.Runtime{model.BackendDocker: mrt}, rec)

	unknown := storeSandbox(t, env, "unknown", model.BackendDocker, model.SandboxStatusUnknown)
	stopping := storeSandbox(t, env, "stopping", model.BackendDocker, model.SandboxStatusStopping)
	pending := storeSandbox(t, env, "pending", model.BackendDocker, model.SandboxStatusPending)
	storeSandbox(t, env, "running", model.BackendDocker, model.SandboxStatusRunning)
	storeSandbox(t, env, "stopped", model.BackendDocker, model.SandboxStatusStopped)
	storeSandbox(t, env, "remote", model.BackendRemote, model.SandboxStatusUnknown)

	mrt.On("Status", mock.Anything, unknown.ID).Once().Return(model.SandboxStatusRunning, nil)
	mrt.On("ExposedURLs", mock.Anything, unknown.ID).Once().Return([]model.ExposedURL{{Port: 1, URL: "http://h:1"}}, nil)
	mrt.On("Status", mock.Anything, stopping.ID).Once().Return(model.SandboxStatus(""), model.ErrNotFound)
	mrt.On("Status", mock.Anything, pending.ID).Once().Return(model.SandboxStatusPending, nil)

	res, err := env.svc.Reconcile(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Checked)
	assert.Len(t, res.Changed, 2)
	require.Len(t, res.Errors, 1)
	for _, err := range res.Errors {
		assert.ErrorIs(t, err, model.ErrUnregisteredBackend)
	}

	assert.Equal(t, model.SandboxStatusRunning, getStored(t, env, unknown.ID).Status)
	assert.Equal(t, model.SandboxStatusStopped, getStored(t, env, stopping.ID).Status)
	assert.Equal(t, model.SandboxStatusPending, getStored(t, env, pending.ID).Status)

	assert.Equal(t, 2, rec.counts["docker/running"])
	assert.Equal(t, 2, rec.counts["docker/stopped"])
	assert.Equal(t, 1, rec.counts["docker/pending"])
	assert.Equal(t, 0, rec.counts["docker/unknown"])
	assert.Equal(t, 0, rec.counts["docker/stopping"])
	assert.Equal(t, 1, rec.counts["remote/unknown"])
}

func TestNewServiceInvalidConfig(t *testing.T) {
	_, err := lifecycle.NewService(lifecycle.ServiceConfig{})
	assert.Error(t, err)
}
