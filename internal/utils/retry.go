package utils

import (
	"context"
	"time"
)

// Backoff describes an exponential retry schedule.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

// DefaultBackoff starts at 50ms and caps at 2s.
var DefaultBackoff = Backoff{Initial: 50 * time.Millisecond, Max: 2 * time.Second, Factor: 2}

func (b Backoff) next(d time.Duration) time.Duration {
	if d <= 0 {
		d = b.Initial
	} else {
		d = time.Duration(float64(d) * b.Factor)
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d
}

// RetryUntil calls fn until it returns nil, retryable reports false, or ctx is done.
// It returns the last error from fn (or ctx.Err() if fn was never tried).
func RetryUntil(ctx context.Context, b Backoff, retryable func(error) bool, fn func(context.Context) error) error {
	var (
		wait    time.Duration
		lastErr error
	)
	for {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
		wait = b.next(wait)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return lastErr
		case <-t.C:
		}
	}
}
