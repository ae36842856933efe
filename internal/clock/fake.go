package clock

import (
	"sync"
	"time"
)

// FakeClock is a manually advanced Clock. Every call to Now can optionally
// step the clock so consecutive phase timestamps differ.
type FakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t.UTC()}
}

// NewSteppingClock returns a FakeClock that advances by step after each Now.
func NewSteppingClock(t time.Time, step time.Duration) *FakeClock {
	return &FakeClock{now: t.UTC(), step: step}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
