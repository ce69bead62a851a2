// Package timeout races an operation against a deadline without cancelling
// it. A timeout means the caller stopped waiting, not that the work stopped:
// the operation keeps running in the background and its eventual result is
// discarded, so callers must treat a timeout as "unknown outcome".
package timeout

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
)

// Error is the distinguished timeout outcome, separate from transport and
// application errors so callers can render it specifically.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// Timeout marks the error as a deadline failure (net.Error convention).
func (e *Error) Timeout() bool { return true }

// IsTimeout reports whether err is (or wraps) a timeout Error.
func IsTimeout(err error) bool {
	var t *Error
	return errors.As(err, &t)
}

// Do runs op and waits at most d for it to finish. If the deadline fires
// first, Do returns the zero value and an *Error carrying message; op is not
// cancelled and its result is dropped when it eventually completes. Context
// cancellation while waiting returns ctx.Err.
func Do[T any](ctx context.Context, clock clockwork.Clock, d time.Duration, message string, op func(context.Context) (T, error)) (T, error) {
	type outcome struct {
		val T
		err error
	}

	// Buffered so the abandoned operation can still deliver and exit.
	results := make(chan outcome, 1)
	go func() {
		val, err := op(ctx)
		results <- outcome{val: val, err: err}
	}()

	timer := clock.NewTimer(d)
	defer timer.Stop()

	var zero T
	select {
	case out := <-results:
		return out.val, out.err
	case <-timer.Chan():
		return zero, &Error{Message: message}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// DoVoid is Do for operations without a result value.
func DoVoid(ctx context.Context, clock clockwork.Clock, d time.Duration, message string, op func(context.Context) error) error {
	_, err := Do(ctx, clock, d, message, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
