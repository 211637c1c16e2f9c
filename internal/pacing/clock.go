package pacing

import (
	"sync"
	"time"
)

// Clock abstracts time for the pacer.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// RealClock uses the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// ImmediateClock fires every timer at once and records the requested
// durations. It is intended for tests.
type ImmediateClock struct {
	mu    sync.Mutex
	start time.Time
	waits []time.Duration
}

// NewImmediateClock returns a clock frozen at start.
func NewImmediateClock(start time.Time) *ImmediateClock {
	return &ImmediateClock{start: start}
}

func (c *ImmediateClock) Now() time.Time {
	return c.start
}

func (c *ImmediateClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.waits = append(c.waits, d)
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- c.start.Add(d)
	return ch
}

// Waits returns a copy of the durations passed to After, in call order.
func (c *ImmediateClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.waits))
	copy(out, c.waits)
	return out
}
