package retry

import (
	"context"
	"sync"
	"time"
)

// FakeClock records requested pauses without waiting
type FakeClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

// Sleep records d and returns immediately unless ctx is already done
func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return nil
}

// Sleeps returns a copy of every recorded pause in order
func (c *FakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

// Total returns the sum of recorded pauses
func (c *FakeClock) Total() time.Duration {
	var total time.Duration
	for _, d := range c.Sleeps() {
		total += d
	}
	return total
}
