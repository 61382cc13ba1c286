package ingestion

import (
	"context"
	"fmt"
	"time"
)

// callWithTimeout runs fn with a deadline and stops waiting when it passes, even
// if fn ignores its context. A late result is dropped, so fn must not write
// anything a rollback would have to undo.
func callWithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		if ctx.Err() == context.DeadlineExceeded {
			return zero, fmt.Errorf("timed out after %s: %w", d, ctx.Err())
		}
		return zero, ctx.Err()
	}
}
