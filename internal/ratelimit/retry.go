package ratelimit

import (
	"context"
	"errors"
	"time"

	"gopkg.in/matryer/try.v1"
)

// ErrPermanent marks an error that must not be retried.
var ErrPermanent = errors.New("permanent failure")

// Retry calls fn up to attempts times. Between attempts it sleeps attempt*base
// (linear backoff). fn signals a non-retryable failure by wrapping ErrPermanent.
// The last error is returned when the budget is exhausted.
func Retry(ctx context.Context, attempts int, base time.Duration, fn func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}
	return try.Do(func(attempt int) (bool, error) {
		err := fn(attempt)
		if err == nil || errors.Is(err, ErrPermanent) {
			return false, err
		}
		if attempt >= attempts {
			return false, err
		}
		select {
		case <-ctx.Done():
			return false, errors.Join(err, ctx.Err())
		case <-time.After(time.Duration(attempt) * base):
		}
		return true, err
	})
}
