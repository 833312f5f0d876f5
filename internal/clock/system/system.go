// Package system provides a wall clock pinned to a location.
package system

import "time"

// Clock returns the current time in a fixed location. Relative delivery
// dates ("today", "tomorrow") are resolved against it.
type Clock struct {
	loc *time.Location
}

// New creates a Clock for loc; a nil location means UTC.
func New(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc}
}

// Now returns the current time in the clock's location.
func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Location reports the clock's location.
func (c *Clock) Location() *time.Location {
	return c.loc
}
