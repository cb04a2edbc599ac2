package utils

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// permanentError marks a failure that must not be retried.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps an error so Retry gives up immediately. The classification
// happens at the call site; the combinator only honors it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was classified as non-retryable.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Retry runs op with exponential backoff until it succeeds, returns a
// permanent error, the attempt cap is reached, or the wall-clock budget runs
// out. Context cancellation stops the loop between attempts.
func Retry(ctx context.Context, maxAttempts int, budget time.Duration, op func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 15 * time.Second
	bo.MaxElapsedTime = budget

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			var pe *permanentError
			errors.As(err, &pe)
			return backoff.Permanent(pe.err)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(maxAttempts-1)), ctx)
	return backoff.Retry(wrapped, policy)
}
