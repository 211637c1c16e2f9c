package pacing

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer assigns start offsets at a fixed interval.
type Pacer struct {
	interval time.Duration
	clock    Clock
}

// New creates a pacer. A nil clock uses the wall clock. A non-positive
// interval disables pacing and every offset is zero.
func New(interval time.Duration, clock Clock) *Pacer {
	if clock == nil {
		clock = RealClock{}
	}
	return &Pacer{interval: interval, clock: clock}
}

// Interval returns the configured spacing.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Clock returns the clock the pacer waits on.
func (p *Pacer) Clock() Clock {
	return p.clock
}

// Offsets reserves n consecutive slots and returns their delays relative to
// now. Slot i (zero based) starts at interval × (i+1).
func (p *Pacer) Offsets(n int) []time.Duration {
	if n <= 0 {
		return nil
	}
	offsets := make([]time.Duration, n)
	if p.interval <= 0 {
		return offsets
	}

	now := p.clock.Now()
	limiter := rate.NewLimiter(rate.Every(p.interval), 1)
	// Spend the initial burst token so the first slot is one interval out.
	limiter.AllowN(now, 1)
	for i := range offsets {
		r := limiter.ReserveN(now, 1)
		// rate.Limiter converts through float seconds.
		offsets[i] = r.DelayFrom(now).Round(time.Microsecond)
	}
	return offsets
}

// Wait blocks until offset has elapsed on the pacer clock or ctx is done.
func (p *Pacer) Wait(ctx context.Context, offset time.Duration) error {
	if offset <= 0 {
		return ctx.Err()
	}
	select {
	case <-p.clock.After(offset):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
