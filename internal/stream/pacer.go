package stream

import (
	"context"
	"time"
)

// DefaultPaceInterval is the minimum gap between consecutive emissions.
const DefaultPaceInterval = time.Second

// Pacer spaces successive emissions so a reader perceives natural
// turn-taking. The gap is measured from when the previous emission
// completed; the first emission never waits. Cooperative timing only: the
// pipeline suspends itself between emissions.
type Pacer struct {
	Interval time.Duration

	started bool
	last    time.Time
}

// Wait blocks until the next emission is allowed, or the context ends.
func (p *Pacer) Wait(ctx context.Context) error {
	if !p.started || p.Interval <= 0 {
		return ctx.Err()
	}
	delay := time.Until(p.last.Add(p.Interval))
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Mark records that an emission just completed.
func (p *Pacer) Mark() {
	p.started = true
	p.last = time.Now()
}
