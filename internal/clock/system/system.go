// Package system provides real and fixed clock implementations.
package system

import "time"

// Clock implements crawler.Clock using time.Now. Readings are UTC and
// truncated to the configured precision.
type Clock struct {
	precision time.Duration
}

// New creates a Clock with second precision, the resolution persisted in the
// cache and snapshot files.
func New() *Clock {
	return &Clock{precision: time.Second}
}

// NewWithPrecision creates a Clock truncating to precision. Zero keeps full resolution.
func NewWithPrecision(precision time.Duration) *Clock {
	return &Clock{precision: precision}
}

// Now returns the current time.
func (c *Clock) Now() time.Time {
	now := time.Now().UTC()
	if c.precision > 0 {
		now = now.Truncate(c.precision)
	}
	return now
}

// Fixed always reports the same instant.
type Fixed time.Time

// Now returns the fixed instant.
func (f Fixed) Now() time.Time {
	return time.Time(f)
}
