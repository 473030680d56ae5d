package util

import (
	"context"
	"errors"
	"time"
)

// Backoff controls Retry. Zero MaxDelay means no cap.
type Backoff struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry calls fn until it succeeds, returns a Permanent error, or the
// attempts run out. Delays double from BaseDelay up to MaxDelay and are
// interrupted by ctx. The last error is returned unwrapped.
func Retry(ctx context.Context, b Backoff, fn func(ctx context.Context) error) error {
	var err error
	delay := b.BaseDelay

	for attempt := 0; attempt < b.Attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		if attempt < b.Attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if b.MaxDelay > 0 && delay > b.MaxDelay {
				delay = b.MaxDelay
			}
		}
	}

	return err
}
