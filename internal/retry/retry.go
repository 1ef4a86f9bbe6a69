// Package retry runs an operation under a bounded attempt policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrAttemptsExhausted wraps the last error once every attempt has failed.
var ErrAttemptsExhausted = errors.New("retry: attempts exhausted")

// Backoff returns the wait before attempt n+1, given that attempt n (1-based)
// just failed.
type Backoff func(attempt int) time.Duration

// Fixed waits d between every attempt.
func Fixed(d time.Duration) Backoff {
	return func(int) time.Duration { return d }
}

// Exponential doubles the wait from base on each attempt, capped at maxDelay.
func Exponential(base, maxDelay time.Duration) Backoff {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
			if maxDelay > 0 && d >= maxDelay {
				return maxDelay
			}
		}
		if maxDelay > 0 && d > maxDelay {
			return maxDelay
		}
		return d
	}
}

// Policy describes how often and how patiently an operation is retried.
type Policy struct {
	// MaxAttempts counts the first call. Values below 1 mean a single attempt.
	MaxAttempts int
	Backoff     Backoff
	// Retryable filters errors worth another attempt. Nil retries everything.
	Retryable func(error) bool
	// OnRetry, when set, observes each failed attempt that will be retried.
	OnRetry func(attempt int, err error)

	sleep func(ctx context.Context, d time.Duration) error
}

// Once is the policy that never retries.
func Once() Policy { return Policy{MaxAttempts: 1} }

// WithSleep returns a copy of p that waits through sleep instead of a timer.
func (p Policy) WithSleep(sleep func(ctx context.Context, d time.Duration) error) Policy {
	p.sleep = sleep
	return p
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Run calls fn until it succeeds, returns a non-retryable error, the attempts
// run out or ctx is done.
func Run[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	sleep := p.sleep
	if sleep == nil {
		sleep = timerSleep
	}
	limit := p.attempts()

	var lastErr error
	for attempt := 1; attempt <= limit; attempt++ {
		v, err := fn(ctx, attempt)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}
		if attempt == limit {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if p.Backoff != nil {
			if d := p.Backoff(attempt); d > 0 {
				if err := sleep(ctx, d); err != nil {
					return zero, errors.Join(lastErr, err)
				}
			}
		}
	}
	if limit == 1 {
		return zero, lastErr
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, limit, lastErr)
}

// Do is Run for operations without a result.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) error {
	_, err := Run(ctx, p, func(ctx context.Context, attempt int) (struct{}, error) {
		return struct{}{}, fn(ctx, attempt)
	})
	return err
}

func timerSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
