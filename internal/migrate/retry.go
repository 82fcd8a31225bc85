package migrate

import (
	"context"
	"fmt"
	"time"
)

// Default retry policy values.
const (
	DefaultRetryAttempts  = 5
	DefaultRetryBaseDelay = 1 * time.Second
	DefaultRetryMaxDelay  = 30 * time.Second
)

// Retryer retries an operation with exponential backoff. Only errors
// classified as transient (see IsTransient) are retried; any other
// error is returned immediately. The zero value is usable and falls
// back to the package defaults.
//
// The retry loop is an explicit state machine over (attempt, last
// error, next delay) so the policy can be tested independently of the
// network code it wraps.
type Retryer struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the wait before the second attempt. Each subsequent
	// wait doubles, capped at MaxDelay.
	BaseDelay time.Duration

	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration
}

// Backoff returns the delay before the given retry. attempt is
// 1-based: Backoff(1) is the wait after the first failure.
func (r Retryer) Backoff(attempt int) time.Duration {
	base := r.BaseDelay
	if base <= 0 {
		base = DefaultRetryBaseDelay
	}
	maxDelay := r.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultRetryMaxDelay
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxDelay {
			return maxDelay
		}
	}
	if d > maxDelay {
		return maxDelay
	}
	return d
}

func (r Retryer) maxAttempts() int {
	if r.MaxAttempts <= 0 {
		return DefaultRetryAttempts
	}
	return r.MaxAttempts
}

// Do runs fn until it succeeds, returns a non-transient error, or the
// attempt budget is exhausted. Waits between attempts are cancellable:
// a cancelled context returns ctx.Err() immediately.
//
// When retries are exhausted, the last transient error is wrapped so
// callers can still classify it with errors.As.
func (r Retryer) Do(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts(); attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		lastErr = err

		if attempt == r.maxAttempts() {
			break
		}

		select {
		case <-time.After(r.Backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("retries exhausted after %d attempts: %w", r.maxAttempts(), lastErr)
}
