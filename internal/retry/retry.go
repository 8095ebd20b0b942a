// Package retry holds the bounded-attempt policies shared by extraction and
// downloading. Policies are plain functions with no state of their own.
package retry

import (
	"context"
	"math"
	"time"
)

// Until runs op up to attempts times, stopping at the first attempt that
// reports done. It returns the value of the last attempt that ran. delay is
// waited between attempts; a cancelled ctx ends the loop early.
//
// attempts below 1 is treated as 1.
func Until[T any](ctx context.Context, attempts int, delay time.Duration, op func(ctx context.Context, attempt int) (T, bool)) T {
	if attempts < 1 {
		attempts = 1
	}

	var last T
	for attempt := 1; attempt <= attempts; attempt++ {
		v, done := op(ctx, attempt)
		last = v
		if done || attempt == attempts {
			break
		}
		if err := Sleep(ctx, delay); err != nil {
			break
		}
	}
	return last
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Exponential returns base * 2^(attempt-1), capped at max. attempt counts
// from 1. A max of zero means no cap.
func Exponential(base, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(base) * math.Pow(2, float64(attempt-1))
	if max > 0 && d >= float64(max) {
		return max
	}
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}
