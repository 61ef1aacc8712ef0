package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slok/sbxhub/internal/log"
	"github.com/slok/sbxhub/internal/model"
)

// Terminate tears down a sandbox. Unknown sandboxes and sandboxes that already
// reached a terminal status are left as they are without error.
func (s *Service) Terminate(ctx context.Context, nameOrID string) error {
	start := time.Now()
	sandbox, err := s.lookup(ctx, nameOrID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			s.logger.Debugf("Sandbox %s doesn't exist, nothing to terminate", nameOrID)
			return nil
		}
		return opError(opTerminate, "", model.OutcomeNothingHappened, err)
	}

	err = s.terminate(ctx, sandbox.ID)
	s.observe(ctx, sandbox.Backend, opTerminate, start, err)
	return err
}

func (s *Service) terminate(ctx context.Context, id string) error {
	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return opError(opTerminate, id, model.OutcomeNothingHappened, fmt.Errorf("%w: %w", model.ErrTimeout, err))
	}
	defer unlock()

	sandbox, err := s.repo.GetSandbox(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil
		}
		return opError(opTerminate, id, model.OutcomeNothingHappened, fmt.Errorf("could not get sandbox: %w", err))
	}
	if sandbox.Status.IsTerminal() {
		s.logger.Debugf("Sandbox %s is already %s", id, sandbox.Status)
		return nil
	}

	rt, err := s.runtimes.Resolve(sandbox.Backend)
	if err != nil {
		return opError(opTerminate, id, model.OutcomeNothingHappened, err)
	}

	logger := s.logger.WithValues(log.Kv{"sandbox-id": id, "backend": sandbox.Backend})

	s.setStatus(sandbox, model.SandboxStatusStopping, nil)
	if err := s.repo.UpdateSandbox(ctx, *sandbox); err != nil {
		return opError(opTerminate, id, model.OutcomeNothingHappened, fmt.Errorf("could not store sandbox: %w", err))
	}

	err = rt.Terminate(ctx, id)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		outcome := model.OutcomeFailed
		status := model.SandboxStatusFailed
		if isUncertain(ctx, err) {
			outcome = model.OutcomeStateUnknown
			status = model.SandboxStatusUnknown
		}

		s.setStatus(sandbox, status, nil)
		sandbox.Error = err.Error()
		if perr := s.persist(ctx, *sandbox); perr != nil {
			logger.Errorf("Could not mark sandbox as %s: %v", status, perr)
		}
		logger.Warningf("Sandbox termination ended as %s: %v", status, err)

		return opError(opTerminate, id, outcome, err)
	}

	s.setStatus(sandbox, model.SandboxStatusStopped, nil)
	if err := s.persist(ctx, *sandbox); err != nil {
		return opError(opTerminate, id, model.OutcomeStateUnknown, fmt.Errorf("sandbox terminated but could not be stored: %w", err))
	}

	logger.Infof("Terminated sandbox %s", sandbox.Name)
	return nil
}

// Purge deletes the record of a sandbox that reached a terminal status.
func (s *Service) Purge(ctx context.Context, nameOrID string) error {
	sandbox, err := s.lookup(ctx, nameOrID)
	if err != nil {
		return opError(opPurge, "", model.OutcomeNothingHappened, err)
	}

	unlock, err := s.locks.Lock(ctx, sandbox.ID)
	if err != nil {
		return opError(opPurge, sandbox.ID, model.OutcomeNothingHappened, fmt.Errorf("%w: %w", model.ErrTimeout, err))
	}
	defer unlock()

	sandbox, err = s.repo.GetSandbox(ctx, sandbox.ID)
	if err != nil {
		return opError(opPurge, "", model.OutcomeNothingHappened, fmt.Errorf("could not get sandbox: %w", err))
	}
	if !sandbox.Status.IsTerminal() {
		return opError(opPurge, sandbox.ID, model.OutcomeNothingHappened, fmt.Errorf("sandbox is %s, only stopped or failed sandboxes can be purged: %w", sandbox.Status, model.ErrNotValid))
	}

	if err := s.repo.DeleteSandbox(ctx, sandbox.ID); err != nil {
		return opError(opPurge, sandbox.ID, model.OutcomeNothingHappened, fmt.Errorf("could not delete sandbox: %w", err))
	}

	s.logger.Infof("Purged sandbox %s (%s)", sandbox.Name, sandbox.ID)
	return nil
}
