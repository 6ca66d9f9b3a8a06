// Package pace holds the small timing primitives shared by the pipeline stages:
// cancellable sleeps and wall-clock budgets.
package pace

import (
	"context"
	"time"
)

// Sleep blocks for d or until ctx is done, whichever comes first.
// A non-positive d returns immediately (after checking ctx).
func Sleep(ctx context.Context, d time.Duration) error {
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

// Budget tracks elapsed time against a limit. A zero or negative limit never
// runs out.
type Budget struct {
	start time.Time
	limit time.Duration
}

// NewBudget starts a budget of the given length now.
func NewBudget(limit time.Duration) Budget {
	return Budget{start: time.Now(), limit: limit}
}

// Elapsed returns the time since the budget started.
func (b Budget) Elapsed() time.Duration {
	return time.Since(b.start)
}

// Exceeded reports whether the limit has been used up.
func (b Budget) Exceeded() bool {
	return b.limit > 0 && b.Elapsed() > b.limit
}

// Remaining returns the time left, or 0 once exceeded. Unlimited budgets
// report -1.
func (b Budget) Remaining() time.Duration {
	if b.limit <= 0 {
		return -1
	}
	if left := b.limit - b.Elapsed(); left > 0 {
		return left
	}
	return 0
}

// Cap returns d clamped to the remaining budget.
func (b Budget) Cap(d time.Duration) time.Duration {
	left := b.Remaining()
	if left < 0 || d < left {
		return d
	}
	return left
}
