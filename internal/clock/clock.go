package clock

import (
	"sync"
	"time"
)

// Clock provides current time abstraction for deterministic tests.
// Params: none.
// Returns: current wall-clock time.
type Clock interface {
	Now() time.Time
}

// RealClock reads current UTC time from system clock.
// Params: none.
// Returns: current UTC timestamp.
type RealClock struct{}

// Now returns current UTC time.
// Params: none.
// Returns: current UTC timestamp.
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// ManualClock is a settable clock used by tests and replay tooling.
// Params: initial instant passed to NewManual.
// Returns: clock that only moves when Set or Advance is called.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual creates manual clock pinned at start.
// Params: start instant.
// Returns: manual clock.
func NewManual(start time.Time) *ManualClock {
	return &ManualClock{now: start.UTC()}
}

// Now returns pinned instant.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves clock to an absolute instant.
func (c *ManualClock) Set(at time.Time) {
	c.mu.Lock()
	c.now = at.UTC()
	c.mu.Unlock()
}

// Advance moves clock forward by delta.
func (c *ManualClock) Advance(delta time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(delta)
	c.mu.Unlock()
}
