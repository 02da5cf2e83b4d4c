package util

import (
	"context"
	"time"
)

// RetryWithContext calls fn up to maxTries times until it returns nil error,
// or until ctx is done. If maxTries <= 0, it defaults to 1.
//
// Errors from fn are retried even when they are context errors of a
// per-attempt deadline derived inside fn; only cancellation of ctx itself
// stops the loop early. Returns ctx.Err() in that case, otherwise the last
// error of fn.
func RetryWithContext[T any](ctx context.Context, maxTries int, fn func(context.Context) (T, error)) (T, error) {
	if maxTries <= 0 {
		maxTries = 1
	}
	var lastErr error
	var zero T
	for i := 0; i < maxTries; i++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return zero, lastErr
}

// RetryErrWithBackoff calls fn up to maxTries times, sleeping base, 2*base,
// 4*base, ... between attempts (capped at maxDelay when it is positive).
func RetryErrWithBackoff(
	ctx context.Context,
	maxTries int,
	base time.Duration,
	maxDelay time.Duration,
	fn func(context.Context) error,
) error {
	if maxTries <= 0 {
		maxTries = 1
	}

	var lastErr error
	delay := base
	for i := 0; i < maxTries; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if i == maxTries-1 {
			break
		}
		if maxDelay > 0 && delay > maxDelay {
			delay = maxDelay
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay *= 2
	}
	return lastErr
}
