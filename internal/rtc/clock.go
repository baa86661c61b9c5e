// Package rtc keeps wall-clock time honest on hosts without network time,
// using a battery-backed DS3231 as the reference.
package rtc

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Floor is the earliest system time considered plausible. A Raspberry Pi
// without network time boots with its clock at the last shutdown or earlier.
var Floor = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Clock is a clockwork.Clock whose Now falls back to the RTC while the system
// clock is implausible. Timers and tickers are unaffected since they only
// measure durations.
type Clock struct {
	clockwork.Clock
	floor time.Time

	mu        sync.RWMutex
	offset    time.Duration
	hasOffset bool
}

// NewClock wraps base. A zero floor selects Floor.
func NewClock(base clockwork.Clock, floor time.Time) *Clock {
	if floor.IsZero() {
		floor = Floor
	}
	return &Clock{Clock: base, floor: floor}
}

// Now returns the authoritative wall-clock time
func (c *Clock) Now() time.Time {
	now := c.Clock.Now()
	if !now.Before(c.floor) {
		return now
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.hasOffset {
		return now.Add(c.offset)
	}
	return now
}

// Since returns the time elapsed since t on the authoritative clock
func (c *Clock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// System returns the unadjusted system time
func (c *Clock) System() time.Time {
	return c.Clock.Now()
}

// Trusted reports whether the system clock is past the floor
func (c *Clock) Trusted() bool {
	return !c.Clock.Now().Before(c.floor)
}

// Observe records the RTC reading rtc taken at system time sys
func (c *Clock) Observe(rtc, sys time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = rtc.Sub(sys)
	c.hasOffset = true
}
