package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/slok/sbxhub/internal/model"
)

// reconcilable are the statuses that can change without a user action.
var reconcilable = map[model.SandboxStatus]bool{
	model.SandboxStatusUnknown:  true,
	model.SandboxStatusPending:  true,
	model.SandboxStatusStarting: true,
	model.SandboxStatusStopping: true,
}

// ReconcileResult is the summary of a reconciliation.
type ReconcileResult struct {
	// Checked is the number of sandboxes refreshed from their backends.
	Checked int
	// Changed are the sandboxes that changed their status.
	Changed []model.Sandbox
	// Errors are the refresh errors by sandbox ID.
	Errors map[string]error
}

// Reconcile refreshes every sandbox in a non settled status from its backend, and
// updates the sandbox count metrics.
func (s *Service) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	start := time.Now()

	var (
		pending []model.Sandbox
		counts  = map[model.Backend]map[model.SandboxStatus]int{}
		token   string
	)
	for {
		page, err := s.repo.ListSandboxes(ctx, model.SandboxFilter{}, model.PageRequest{Size: model.MaxPageSize, Token: token})
		if err != nil {
			err = opError(opReconcile, "", model.OutcomeNothingHappened, fmt.Errorf("could not list sandboxes: %w", err))
			s.observe(ctx, "", opReconcile, start, err)
			return nil, err
		}
		for _, sb := range page.Items {
			if reconcilable[sb.Status] {
				pending = append(pending, sb)
			}
			if counts[sb.Backend] == nil {
				counts[sb.Backend] = map[model.SandboxStatus]int{}
			}
			counts[sb.Backend][sb.Status]++
		}
		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}

	result := &ReconcileResult{Errors: map[string]error{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, sb := range pending {
		g.Go(func() error {
			refreshed, err := s.refresh(gctx, sb.ID)

			mu.Lock()
			defer mu.Unlock()
			result.Checked++
			if err != nil {
				result.Errors[sb.ID] = err
				return nil
			}
			if refreshed.Status != sb.Status {
				result.Changed = append(result.Changed, *refreshed)
				counts[sb.Backend][sb.Status]--
				if counts[refreshed.Backend] == nil {
					counts[refreshed.Backend] = map[model.SandboxStatus]int{}
				}
				counts[refreshed.Backend][refreshed.Status]++
			}
			return nil
		})
	}
	_ = g.Wait()

	for backend, byStatus := range counts {
		for _, status := range model.SandboxStatuses {
			s.metrics.SetSandboxCount(ctx, backend, status, byStatus[status])
		}
	}

	s.logger.Infof("Reconciled %d sandboxes: %d changed, %d errors", result.Checked, len(result.Changed), len(result.Errors))
	s.observe(ctx, "", opReconcile, start, nil)

	return result, nil
}
