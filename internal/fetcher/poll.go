package fetcher

import (
	"context"
	"errors"
	"time"
)

// ErrPollExhausted is returned by Poller.Until when MaxAttempts checks all failed.
var ErrPollExhausted = errors.New("poll: attempts exhausted")

// Poller waits for a condition by re-checking it at a fixed interval
type Poller struct {
	Interval time.Duration
	// MaxAttempts bounds the number of checks. Zero means no bound.
	MaxAttempts int
}

// Until calls cond until it reports true, returns an error, the attempts are
// exhausted, or ctx is done. The first check happens immediately. It returns
// the number of checks performed.
func (p Poller) Until(ctx context.Context, cond func(context.Context) (bool, error)) (int, error) {
	attempts := 0
	for {
		attempts++
		done, err := cond(ctx)
		if err != nil {
			return attempts, err
		}
		if done {
			return attempts, nil
		}
		if p.MaxAttempts > 0 && attempts >= p.MaxAttempts {
			return attempts, ErrPollExhausted
		}
		if err := Sleep(ctx, p.Interval); err != nil {
			return attempts, err
		}
	}
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
