package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/sbxhub/internal/log"
	"github.com/slok/sbxhub/internal/metrics"
	"github.com/slok/sbxhub/internal/model"
	"github.com/slok/sbxhub/internal/runtime"
	"github.com/slok/sbxhub/internal/storage"
)

// RuntimeResolver returns the runtime of a backend.
type RuntimeResolver interface {
	Resolve(backend model.Backend) (runtime.Runtime, error)
}

// ServiceConfig is the configuration for the lifecycle service.
type ServiceConfig struct {
	Runtimes   RuntimeResolver
	Repository storage.Repository
	Metrics    metrics.Recorder
	// PersistTimeout bounds the writes done after a backend call, these don't
	// depend on the caller context so the record is not left behind.
	PersistTimeout time.Duration
	// ReconcileConcurrency is the max number of sandboxes refreshed at the same time.
	ReconcileConcurrency int
	// IDGenerator returns new sandbox IDs.
	IDGenerator func() string
	// TimeNow returns the current time.
	TimeNow func() time.Time
	Logger  log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Runtimes == nil {
		return fmt.Errorf("runtimes is required")
	}
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Metrics == nil {
		c.Metrics = metrics.Noop
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = 10 * time.Second
	}
	if c.ReconcileConcurrency <= 0 {
		c.ReconcileConcurrency = 8
	}
	if c.IDGenerator == nil {
		c.IDGenerator = func() string { return ulid.Make().String() }
	}
	if c.TimeNow == nil {
		c.TimeNow = func() time.Time { return time.Now().UTC() }
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Lifecycle"})
	return nil
}

// Service manages the sandbox lifecycle on top of the backend runtimes.
//
// The repository is the source of truth of the sandboxes, runtimes are only asked
// for the things they own. Operations on the same sandbox are serialized.
type Service struct {
	runtimes       RuntimeResolver
	repo           storage.Repository
	metrics        metrics.Recorder
	locks          *keyedLock
	persistTimeout time.Duration
	concurrency    int
	newID          func() string
	now            func() time.Time
	logger         log.Logger
}

// NewService creates a new lifecycle service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		runtimes:       cfg.Runtimes,
		repo:           cfg.Repository,
		metrics:        cfg.Metrics,
		locks:          newKeyedLock(),
		persistTimeout: cfg.PersistTimeout,
		concurrency:    cfg.ReconcileConcurrency,
		newID:          cfg.IDGenerator,
		now:            cfg.TimeNow,
		logger:         cfg.Logger,
	}, nil
}

const (
	opCreate    = "create"
	opGet       = "get"
	opStatus    = "status"
	opList      = "list"
	opTerminate = "terminate"
	opPurge     = "purge"
	opReconcile = "reconcile"
)

// lookup gets a sandbox by ID when the value looks like one and by name otherwise,
// an ID always wins over a name with the same value.
func (s *Service) lookup(ctx context.Context, nameOrID string) (*model.Sandbox, error) {
	var (
		sandbox *model.Sandbox
		err     error
	)
	if looksLikeULID(nameOrID) {
		sandbox, err = s.repo.GetSandbox(ctx, nameOrID)
		if errors.Is(err, model.ErrNotFound) {
			sandbox, err = s.repo.GetSandboxByName(ctx, nameOrID)
		}
	} else {
		sandbox, err = s.repo.GetSandboxByName(ctx, nameOrID)
	}
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("sandbox not found: %s: %w", nameOrID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not get sandbox: %w", err)
	}

	return sandbox, nil
}

// persist stores the sandbox with a context detached from the caller cancellation.
func (s *Service) persist(ctx context.Context, sandbox model.Sandbox) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()

	return s.repo.UpdateSandbox(ctx, sandbox)
}

// setStatus moves the sandbox to a new status keeping the derived fields consistent.
func (s *Service) setStatus(sandbox *model.Sandbox, status model.SandboxStatus, urls []model.ExposedURL) {
	now := s.now()
	sandbox.Status = status
	sandbox.UpdatedAt = now

	switch {
	case status == model.SandboxStatusRunning:
		sandbox.ExposedURLs = urls
		if sandbox.StartedAt == nil {
			sandbox.StartedAt = &now
		}
		sandbox.Error = ""
	case status.IsTerminal():
		sandbox.ExposedURLs = nil
		if sandbox.StoppedAt == nil {
			sandbox.StoppedAt = &now
		}
	default:
		sandbox.ExposedURLs = nil
	}
}

func (s *Service) observe(ctx context.Context, backend model.Backend, op string, start time.Time, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = string(model.OutcomeOf(err))
	}
	s.metrics.ObserveOperation(ctx, backend, op, outcome, time.Since(start))
}

func opError(op, id string, outcome model.Outcome, err error) error {
	return &model.OperationError{Op: op, SandboxID: id, Outcome: outcome, Err: err}
}

// isUncertain returns true when a backend error doesn't tell what happened on the infrastructure.
func isUncertain(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, model.ErrTimeout) ||
		errors.Is(err, model.ErrTransientInfra) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// looksLikeULID checks if a string looks like a ULID (26 characters, alphanumeric uppercase).
func looksLikeULID(s string) bool {
	if len(s) != 26 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}

// defaultName returns the name used for sandboxes created without one.
func defaultName(id string) string {
	suffix := id
	if len(suffix) > 10 {
		suffix = suffix[len(suffix)-10:]
	}
	return "sbx-" + strings.ToLower(suffix)
}
