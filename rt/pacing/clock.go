package pacing

import (
	"sync"
	"time"
)

// Clock supplies frame timestamps to a Pacer.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock. Readings carry the monotonic component,
// so frame deltas survive wall clock adjustments.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FakeClock only moves when Advance is called. Frame loops under test use it
// to produce exact frame deltas.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(at time.Time) *FakeClock {
	return &FakeClock{now: at}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d. Negative d moves it back, which a
// Pacer reads as a zero frame delta.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
