package workload

import (
	"context"
	"sync/atomic"
	"time"
)

// Micros is a 32-bit microsecond reading. It wraps; durations must be taken
// with Since, which is wraparound safe.
type Micros uint32

// Since returns the microseconds elapsed from start to m.
func (m Micros) Since(start Micros) Micros {
	return m - start
}

// Clock is the elapsed-time source used by the polling loops.
type Clock interface {
	NowMicros() Micros
}

// MonotonicClock reads the runtime monotonic clock.
type MonotonicClock struct {
	origin time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{origin: time.Now()}
}

func (c *MonotonicClock) NowMicros() Micros {
	return Micros(uint64(time.Since(c.origin) / time.Microsecond))
}

// TickClock is a microsecond counter advanced by a fixed-period ticker, the way a
// hardware timer interrupt bumps an uptime counter. Resolution equals the period.
type TickClock struct {
	period time.Duration
	ticks  atomic.Uint32
}

func NewTickClock(period time.Duration) *TickClock {
	if period < time.Microsecond {
		period = time.Microsecond
	}
	return &TickClock{period: period}
}

// Start advances the counter until ctx is done.
func (c *TickClock) Start(ctx context.Context) {
	step := uint32(c.period / time.Microsecond)
	go func() {
		t := time.NewTicker(c.period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				c.ticks.Add(step)
			}
		}
	}()
}

func (c *TickClock) NowMicros() Micros {
	return Micros(c.ticks.Load())
}

// Personal.AI order the ending
