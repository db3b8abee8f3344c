package internal

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ActionTimeoutTaskCallback represents a callback function that performs a task with a cancellation context
type ActionTimeoutTaskCallback[T any] func(ctx context.Context) (T, error)

// ActionOnTimeOutRetry represents a callback function invoked before each retry
type ActionOnTimeOutRetry func(retryAttemptCount, retryAttemptTotal int, wait time.Duration, err error)

// DefaultTimeout is the default per-attempt timeout
const DefaultTimeout = 5 * time.Minute

// DefaultRetryAttempt is the default number of attempts
const DefaultRetryAttempt = 5

// DefaultRetryBackoff is the wait before the first retry; it doubles after each failure
const DefaultRetryBackoff = time.Second

// MaxRetryBackoff caps the wait between two attempts
const MaxRetryBackoff = 30 * time.Second

// RetryPolicy bounds WaitForRetry. Zero fields take the defaults above.
type RetryPolicy struct {
	Attempts int
	Timeout  time.Duration
	Backoff  time.Duration
	OnRetry  ActionOnTimeOutRetry
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultRetryAttempt
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	if p.Backoff <= 0 {
		p.Backoff = DefaultRetryBackoff
	}
	return p
}

// WaitForRetry executes a task with retry logic and timeout handling. Only
// transport failures and per-attempt timeouts are retried; any other error,
// or cancellation of ctx, is returned at once.
func WaitForRetry[T any](ctx context.Context, policy RetryPolicy, callback ActionTimeoutTaskCallback[T]) (T, error) {
	var zero T
	policy = policy.withDefaults()

	wait := policy.Backoff
	var lastError error

	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		timeoutCtx, cancel := context.WithTimeout(ctx, policy.Timeout)
		result, err := callback(timeoutCtx)
		timedOut := timeoutCtx.Err() != nil
		cancel()

		if err == nil {
			return result, nil
		}

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		if timedOut {
			lastError = ErrTransport.WithMessage("operation timed out").WithCause(err)
			PushLogWarning(nil, fmt.Sprintf("The operation has timed out! Attempt %d/%d", attempt, policy.Attempts))
		} else if errors.Is(err, ErrTransport) {
			lastError = err
			PushLogWarning(nil, fmt.Sprintf("The operation has failed! Attempt %d/%d\n%v", attempt, policy.Attempts, err))
		} else {
			return zero, err
		}

		if attempt == policy.Attempts {
			break
		}

		if policy.OnRetry != nil {
			policy.OnRetry(attempt, policy.Attempts, wait, lastError)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}

		wait *= 2
		if wait > MaxRetryBackoff {
			wait = MaxRetryBackoff
		}
	}

	return zero, fmt.Errorf("giving up after %d attempts: %w", policy.Attempts, lastError)
}
