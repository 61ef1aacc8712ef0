package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"

	"github.com/slok/sbxhub/internal/model"
)

// DefaultBackoff is the backoff used by runtimes to retry transient infrastructure errors.
var DefaultBackoff = wait.Backoff{
	Steps:    4,
	Duration: 200 * time.Millisecond,
	Factor:   2,
	Jitter:   0.1,
	Cap:      2 * time.Second,
}

// RetryTransient runs fn and retries it with backoff while it fails with
// model.ErrTransientInfra. It stops retrying as soon as ctx is done.
func RetryTransient(ctx context.Context, backoff wait.Backoff, fn func(ctx context.Context) error) error {
	err := retry.OnError(backoff, func(err error) bool {
		return errors.Is(err, model.ErrTransientInfra) && ctx.Err() == nil
	}, func() error {
		return fn(ctx)
	})

	return TimeoutErr(ctx, err)
}

// TimeoutErr translates context expiration into model.ErrTimeout, other errors
// are returned as they are.
func TimeoutErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, model.ErrTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return fmt.Errorf("%w: %w", model.ErrTimeout, err)
	}
	return err
}
