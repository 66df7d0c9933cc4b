// Package retry runs an action a bounded number of times with a fixed pause
// between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned when every attempt ran without the action reporting done
var ErrExhausted = errors.New("retry budget exhausted")

// Clock pauses between attempts. Tests swap in a fake to observe delays.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock sleeps on wall-clock time
type RealClock struct{}

// Sleep waits for d or until ctx is done
func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
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

// Policy bounds a retry loop
type Policy struct {
	MaxAttempts int           // total attempts including the first; values < 1 mean 1
	Delay       time.Duration // pause between attempts
}

// Action is one attempt. attempt starts at 1.
// Returning done=true stops the loop successfully; err is kept as the last failure.
type Action func(ctx context.Context, attempt int) (done bool, err error)

// OnRetry is called before each pause with the attempt that just failed
type OnRetry func(attempt int, err error)

// Do runs action until it reports done or the policy runs out.
// It returns the number of attempts made. When the budget is exhausted the error
// wraps ErrExhausted and, if present, the last action error.
func Do(ctx context.Context, clock Clock, p Policy, action Action, onRetry OnRetry) (int, error) {
	if clock == nil {
		clock = RealClock{}
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		done, err := action(ctx, attempt)
		if done {
			return attempt, nil
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		if err := clock.Sleep(ctx, p.Delay); err != nil {
			return attempt, err
		}
	}

	if lastErr != nil {
		return maxAttempts, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, maxAttempts, lastErr)
	}
	return maxAttempts, fmt.Errorf("%w after %d attempts", ErrExhausted, maxAttempts)
}
