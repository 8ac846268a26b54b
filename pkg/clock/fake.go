package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a deterministic clock for tests.
//
// In manual mode (NewFakeClock) time only moves when Advance is called, and
// pending After channels fire once their deadline is reached. In auto mode
// (NewFakeClockAuto) every After or Sleep advances the clock by its duration
// and returns immediately.
//
// Every requested wait is recorded and can be inspected with Waits.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	auto    bool
	waiters []waiter
	waits   []time.Duration
}

type waiter struct {
	deadline time.Time
	ch       chan time.Time
}

// NewFakeClock creates a FakeClock that advances only through Advance.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// NewFakeClockAuto creates a FakeClock whose waits complete immediately,
// moving the clock forward by the waited duration.
func NewFakeClockAuto(start time.Time) *FakeClock {
	return &FakeClock{now: start, auto: true}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Since returns the fake duration since t.
func (c *FakeClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Sleep blocks until the clock has advanced by d.
func (c *FakeClock) Sleep(d time.Duration) {
	<-c.After(d)
}

// After returns a channel that receives once d has elapsed on the fake clock.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.waits = append(c.waits, d)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.waiters = append(c.waiters, waiter{deadline: c.now.Add(d), ch: ch})
	if c.auto {
		c.advanceTo(c.now.Add(d))
	}
	return ch
}

// Advance moves the clock forward by d, firing any waits that expire.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advanceTo(c.now.Add(d))
}

// Waiters returns the number of pending waits.
func (c *FakeClock) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// BlockUntilWaiters blocks until at least n waits are pending.
func (c *FakeClock) BlockUntilWaiters(n int) {
	for c.Waiters() < n {
		time.Sleep(time.Millisecond)
	}
}

// Waits returns every duration passed to After or Sleep, in call order.
func (c *FakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.waits))
	copy(out, c.waits)
	return out
}

// advanceTo must be called with c.mu held.
func (c *FakeClock) advanceTo(t time.Time) {
	if t.After(c.now) {
		c.now = t
	}

	sort.SliceStable(c.waiters, func(i, j int) bool {
		return c.waiters[i].deadline.Before(c.waiters[j].deadline)
	})

	pending := c.waiters[:0]
	for _, w := range c.waiters {
		if w.deadline.After(c.now) {
			pending = append(pending, w)
			continue
		}
		w.ch <- c.now
	}
	c.waiters = pending
}
