package redisc

import (
	"context"
	"strconv"
	"time"
)

// RetryBudget is the number of times a command may be retried after its
// first attempt. MOVED, ASK and TRYAGAIN replies all consume the same
// budget. The zero value is an unbounded budget.
type RetryBudget struct {
	n       int
	bounded bool
}

// UnboundedRetries is the budget that never stops retrying a command on
// redirections and TRYAGAIN replies.
var UnboundedRetries = RetryBudget{}

// MaxRetries returns a budget that allows at most n retries, so at most
// n+1 attempts. A negative n is treated as 0.
func MaxRetries(n int) RetryBudget {
	if n < 0 {
		n = 0
	}
	return RetryBudget{n: n, bounded: true}
}

// Max returns the maximum number of retries and true if the budget is
// bounded, or 0 and false otherwise.
func (b RetryBudget) Max() (int, bool) {
	return b.n, b.bounded
}

// allows returns true if a command that already made the specified number
// of attempts may be sent again.
func (b RetryBudget) allows(attempts int) bool {
	return !b.bounded || attempts <= b.n
}

func (b RetryBudget) String() string {
	if !b.bounded {
		return "unbounded"
	}
	return "max " + strconv.Itoa(b.n)
}

// BackoffFunc returns the delay to wait before sending a command again
// after it received a TRYAGAIN reply on its attempt number attempt
// (starting at 1).
type BackoffFunc func(attempt int) time.Duration

// ConstantBackoff returns a BackoffFunc that always waits d.
func ConstantBackoff(d time.Duration) BackoffFunc {
	return func(int) time.Duration { return d }
}

// ExponentialBackoff returns a BackoffFunc that waits base after the
// first attempt, and doubles the delay for each subsequent attempt, up to
// max.
func ExponentialBackoff(base, max time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		d := base
		for i := 1; i < attempt && d < max; i++ {
			d *= 2
		}
		if d > max {
			d = max
		}
		return d
	}
}

var defaultBackoff = ExponentialBackoff(10*time.Millisecond, time.Second)

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
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
