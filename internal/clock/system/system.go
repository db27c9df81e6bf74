// Package system provides the wall clock used outside of tests.
package system

import "time"

// Clock satisfies state.Clock with the current UTC time.
type Clock struct{}

// New returns a wall clock.
func New() Clock {
	return Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
