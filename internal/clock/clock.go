// Package clock holds the process-wide "now" used for highlighting. It is
// refreshed on a fixed interval; readers simply re-read it.
package clock

import (
	"sync"
	"time"
)

type Clock struct {
	mu     sync.RWMutex
	now    time.Time
	source func() time.Time
}

// New returns a Clock primed from source. A nil source means time.Now.
func New(source func() time.Time) *Clock {
	if source == nil {
		source = time.Now
	}
	return &Clock{now: source(), source: source}
}

// Now returns the value captured by the last Tick.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Tick samples the source and stores the result.
func (c *Clock) Tick() {
	t := c.source()
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
