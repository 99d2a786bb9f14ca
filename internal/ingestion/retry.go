package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRetriesExhausted wraps the last error once every attempt failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryPolicy bounds retries of a throttled call. Only RetryableError
// failures are retried; anything else returns at once.
type RetryPolicy struct {
	MaxRetries int
	// Backoff is the wait when the error carries no RetryAfter hint. It
	// doubles per attempt up to MaxBackoff.
	Backoff    time.Duration
	MaxBackoff time.Duration
	// Sleep waits between attempts. Nil uses SleepContext.
	Sleep func(ctx context.Context, d time.Duration) error
}

// RetryableError marks a failure as transient. RetryAfter, when set, is the
// wait the remote side asked for.
type RetryableError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *RetryableError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%v (retry after %v)", e.Err, e.RetryAfter)
	}
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableErrorWithDelay marks err as transient with a wait hint.
func NewRetryableErrorWithDelay(err error, delay time.Duration) error {
	return &RetryableError{Err: err, RetryAfter: delay}
}

// retryDelay reports whether err is transient and how long to wait first.
func retryDelay(err error, policy RetryPolicy, attempt int) (time.Duration, bool) {
	var retryable *RetryableError
	if !errors.As(err, &retryable) {
		return 0, false
	}
	if retryable.RetryAfter > 0 {
		return retryable.RetryAfter, true
	}

	wait := policy.Backoff << attempt
	if policy.MaxBackoff > 0 && (wait > policy.MaxBackoff || wait < 0) {
		wait = policy.MaxBackoff
	}
	return wait, true
}

// Retry calls fn with the zero-based attempt number until it succeeds,
// fails permanently, or MaxRetries retries are used up.
func Retry(ctx context.Context, policy RetryPolicy, fn func(attempt int) error) error {
	sleep := policy.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	for attempt := 0; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}

		wait, ok := retryDelay(err, policy, attempt)
		if !ok {
			return err
		}
		if attempt >= policy.MaxRetries {
			return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt+1, err)
		}

		if err := sleep(ctx, wait); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
