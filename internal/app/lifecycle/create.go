package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slok/sbxhub/internal/log"
	"github.com/slok/sbxhub/internal/model"
)

// Create creates a sandbox on the backend set on the spec.
//
// The sandbox is stored as pending before calling the backend, so a record exists
// for everything the backend may have created. When the backend rejects the sandbox
// the record is marked as failed, when the call doesn't end with a clear result it's
// marked as unknown so it can be reconciled later.
func (s *Service) Create(ctx context.Context, spec model.SandboxSpec) (*model.Sandbox, error) {
	start := time.Now()
	sandbox, err := s.create(ctx, spec)
	s.observe(ctx, spec.Backend, opCreate, start, err)
	return sandbox, err
}

func (s *Service) create(ctx context.Context, spec model.SandboxSpec) (*model.Sandbox, error) {
	if err := spec.Validate(); err != nil {
		return nil, opError(opCreate, "", model.OutcomeNothingHappened, fmt.Errorf("invalid spec: %w", err))
	}

	rt, err := s.runtimes.Resolve(spec.Backend)
	if err != nil {
		return nil, opError(opCreate, "", model.OutcomeNothingHappened, err)
	}

	spec.ID = s.newID()
	if spec.Name == "" {
		spec.Name = defaultName(spec.ID)
	}
	logger := s.logger.WithValues(log.Kv{"sandbox-id": spec.ID, "backend": spec.Backend})

	unlock, err := s.locks.Lock(ctx, spec.ID)
	if err != nil {
		return nil, opError(opCreate, spec.ID, model.OutcomeNothingHappened, fmt.Errorf("%w: %w", model.ErrTimeout, err))
	}
	defer unlock()

	now := s.now()
	sandbox := model.Sandbox{
		ID:        spec.ID,
		Name:      spec.Name,
		Backend:   spec.Backend,
		Status:    model.SandboxStatusPending,
		Spec:      spec,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateSandbox(ctx, sandbox); err != nil {
		return nil, opError(opCreate, spec.ID, model.OutcomeNothingHappened, fmt.Errorf("could not store sandbox: %w", err))
	}

	created, err := rt.Create(ctx, spec)
	if err != nil {
		outcome := model.OutcomeFailed
		status := model.SandboxStatusFailed
		if isUncertain(ctx, err) || !isRejection(err) {
			outcome = model.OutcomeStateUnknown
			status = model.SandboxStatusUnknown
		}

		s.setStatus(&sandbox, status, nil)
		sandbox.Error = err.Error()
		if perr := s.persist(ctx, sandbox); perr != nil {
			logger.Errorf("Could not mark sandbox as %s: %v", status, perr)
		}
		logger.Warningf("Sandbox creation ended as %s: %v", status, err)

		return nil, opError(opCreate, spec.ID, outcome, err)
	}

	status := created.Status
	if !model.SandboxStatusPending.CanTransitionTo(status) {
		logger.Warningf("Backend reported an invalid creation status %q", status)
		status = model.SandboxStatusUnknown
	}
	sandbox.Metadata = created.Metadata
	sandbox.StartedAt = created.StartedAt
	s.setStatus(&sandbox, status, created.ExposedURLs)

	if err := s.persist(ctx, sandbox); err != nil {
		return nil, opError(opCreate, spec.ID, model.OutcomeStateUnknown, fmt.Errorf("sandbox created but could not be stored: %w", err))
	}

	logger.Infof("Created sandbox %s (%s)", sandbox.Name, sandbox.Status)
	return &sandbox, nil
}

// isRejection returns true when the backend said the sandbox could not be created.
func isRejection(err error) bool {
	return errors.Is(err, model.ErrProvision) || errors.Is(err, model.ErrNotValid)
}
