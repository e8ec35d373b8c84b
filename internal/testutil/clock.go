package testutil

import (
	"sync"
	"time"
)

// Epoch is where every Clock starts: the first office day of 2025.
var Epoch = time.Date(2025, 1, 2, 8, 0, 0, 0, time.UTC)

// Clock is a manual time source. Pass Clock.Now wherever a component takes
// a now func.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock reading Epoch.
func NewClock() *Clock { return &Clock{now: Epoch} }

// Now returns the current reading.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new reading.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}
