package services

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/logger"
)

// retrier runs a network call under a RetryPolicy.
// Only errors matching domain.IsTransient are retried.
type retrier struct {
	name    string
	policy  domain.RetryPolicy
	limiter *RateLimiter
}

// do calls op until it succeeds, fails permanently or the budget runs out.
// It returns the number of attempts made and the last error. A cancelled
// ctx is returned as ctx.Err().
func (r retrier) do(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	attempts := 0

	call := func() error {
		if err := r.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		attempts++
		actx, cancel := r.attemptContext(ctx)
		err := op(actx)
		cancel()

		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return backoff.Permanent(ctx.Err())
		case !domain.IsTransient(err):
			return backoff.Permanent(err)
		}

		var rl *domain.RateLimitError
		if errors.As(err, &rl) {
			r.limiter.Backoff(rl.RetryAfter)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn("%s attempt %d/%d failed, retrying in %s: %v",
			r.name, attempts, r.policy.MaxRetries+1, wait.Round(time.Millisecond), err)
	}

	err := backoff.RetryNotify(call, r.backOff(ctx), notify)
	if err != nil && ctx.Err() != nil {
		return attempts, ctx.Err()
	}
	return attempts, err
}

// backOff builds the exponential schedule for one call.
func (r retrier) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialBackoff
	b.MaxInterval = r.policy.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	retries := max(r.policy.MaxRetries, 0)
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// attemptContext bounds a single attempt by the policy timeout.
func (r retrier) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.policy.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.policy.Timeout)
}
