package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/slok/sbxhub/internal/log"
	"github.com/slok/sbxhub/internal/model"
)

// Get returns the stored sandbox without asking the backend.
func (s *Service) Get(ctx context.Context, nameOrID string) (*model.Sandbox, error) {
	sandbox, err := s.lookup(ctx, nameOrID)
	if err != nil {
		return nil, opError(opGet, "", model.OutcomeNothingHappened, err)
	}

	return sandbox, nil
}

// List returns a page of the stored sandboxes matching the filter, ordered by
// creation time.
func (s *Service) List(ctx context.Context, filter model.SandboxFilter, page model.PageRequest) (*model.Page, error) {
	result, err := s.repo.ListSandboxes(ctx, filter, page)
	if err != nil {
		return nil, opError(opList, "", model.OutcomeNothingHappened, fmt.Errorf("could not list sandboxes: %w", err))
	}

	return result, nil
}

// Status refreshes the sandbox status and exposed URLs from its backend and stores
// them when they are a legal transition. Reports that would move the sandbox backwards
// are ignored.
func (s *Service) Status(ctx context.Context, nameOrID string) (*model.Sandbox, error) {
	start := time.Now()
	sandbox, err := s.lookup(ctx, nameOrID)
	if err != nil {
		return nil, opError(opStatus, "", model.OutcomeNothingHappened, err)
	}

	refreshed, err := s.refresh(ctx, sandbox.ID)
	s.observe(ctx, sandbox.Backend, opStatus, start, err)
	if err != nil {
		return nil, err
	}

	return refreshed, nil
}

func (s *Service) refresh(ctx context.Context, id string) (*model.Sandbox, error) {
	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return nil, opError(opStatus, id, model.OutcomeNothingHappened, fmt.Errorf("%w: %w", model.ErrTimeout, err))
	}
	defer unlock()

	// Get it again, it may have changed while waiting for the lock.
	sandbox, err := s.repo.GetSandbox(ctx, id)
	if err != nil {
		return nil, opError(opStatus, id, model.OutcomeNothingHappened, fmt.Errorf("could not get sandbox: %w", err))
	}
	if sandbox.Status.IsTerminal() {
		return sandbox, nil
	}

	rt, err := s.runtimes.Resolve(sandbox.Backend)
	if err != nil {
		return sandbox, opError(opStatus, id, model.OutcomeNothingHappened, err)
	}

	logger := s.logger.WithValues(log.Kv{"sandbox-id": id, "backend": sandbox.Backend})

	var (
		next    model.SandboxStatus
		urls    []model.ExposedURL
		lastErr string
	)
	status, err := rt.Status(ctx, id)
	switch {
	case err == nil:
		next = status
	case errors.Is(err, model.ErrNotFound):
		// The backend doesn't know about it anymore.
		next = model.SandboxStatusFailed
		lastErr = "sandbox missing on backend"
		if sandbox.Status == model.SandboxStatusStopping {
			next = model.SandboxStatusStopped
			lastErr = ""
		}
	default:
		return sandbox, opError(opStatus, id, model.OutcomeNothingHappened, fmt.Errorf("could not get backend status: %w", err))
	}

	if next == model.SandboxStatusRunning {
		urls, err = rt.ExposedURLs(ctx, id)
		if err != nil {
			logger.Warningf("Could not get exposed URLs, keeping the stored ones: %v", err)
			urls = sandbox.ExposedURLs
		}
	}

	if !sandbox.Status.CanTransitionTo(next) {
		logger.Warningf("Ignoring backend status %q, sandbox can't go back from %q", next, sandbox.Status)
		return sandbox, nil
	}
	if next == sandbox.Status && slices.Equal(urls, sandbox.ExposedURLs) {
		return sandbox, nil
	}

	prev := sandbox.Status
	s.setStatus(sandbox, next, urls)
	if lastErr != "" {
		sandbox.Error = lastErr
	}
	if err := s.persist(ctx, *sandbox); err != nil {
		return nil, opError(opStatus, id, model.OutcomeNothingHappened, fmt.Errorf("could not store sandbox: %w", err))
	}

	if prev != next {
		logger.Infof("Sandbox status changed: %s -> %s", prev, next)
	}
	return sandbox, nil
}
