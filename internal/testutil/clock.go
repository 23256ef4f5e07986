package testutil

import "sync"

// DeterministicClock provides a thread-safe fake wall clock for tests.
//
// Every call to NowMillis advances the clock by Step milliseconds, so two
// pagination entries recorded one after the other get distinct, predictable
// queriedAt values.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	start int64
	now   int64
	step  int64
}

// NewDeterministicClock creates a clock whose first reading is start.
// A zero step freezes the clock.
func NewDeterministicClock(start, step int64) *DeterministicClock {
	return &DeterministicClock{start: start, now: start, step: step}
}

// NowMillis returns the current reading and advances the clock.
func (c *DeterministicClock) NowMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now += c.step
	return now
}

// Peek returns the next reading without advancing.
func (c *DeterministicClock) Peek() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Reset rewinds the clock to its start value.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start
}
