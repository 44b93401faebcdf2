package utils

import (
	"context"
	"errors"
	"time"
)

var sleep = time.Sleep

// ErrPollTimeout is returned by Poll when the condition never became true.
var ErrPollTimeout = errors.New("condition not met before timeout")

// WaitFor blocks for d or until the context is done.
func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sleep(d)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Backoff describes an exponential polling schedule.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Timeout time.Duration
}

// DefaultBackoff polls quickly at first and settles at two seconds, giving up after ten.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial: 250 * time.Millisecond,
		Max:     2 * time.Second,
		Timeout: 10 * time.Second,
	}
}

// Poll evaluates cond until it returns true, the budget in b is spent or ctx is done.
// The elapsed budget is accounted from the scheduled delays, so a swapped sleep keeps tests instant.
func Poll(ctx context.Context, b Backoff, cond func(context.Context) bool) error {
	if cond(ctx) {
		return nil
	}

	delay := b.Initial
	if delay <= 0 {
		delay = DefaultBackoff().Initial
	}

	var waited time.Duration
	for waited < b.Timeout {
		if b.Max > 0 && delay > b.Max {
			delay = b.Max
		}
		if remaining := b.Timeout - waited; delay > remaining {
			delay = remaining
		}

		if err := WaitFor(ctx, delay); err != nil {
			return err
		}
		waited += delay

		if cond(ctx) {
			return nil
		}
		delay *= 2
	}

	return ErrPollTimeout
}
