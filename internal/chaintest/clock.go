package chaintest

import (
	"sync"
	"time"
)

// FakeClock is a simulated clock. After advances time by d and fires immediately, so loops
// that sleep through it run to completion without real waiting.
type FakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits int
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
	c.waits++

	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

// Advance moves time forward without firing anything.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Waits counts After calls.
func (c *FakeClock) Waits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waits
}
