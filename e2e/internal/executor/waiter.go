package executor

import (
	"context"
	"time"
)

// WaitUntil blocks until offset after start has passed or ctx is done
func WaitUntil(ctx context.Context, start time.Time, offset time.Duration) error {
	d := time.Until(start.Add(offset))
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
