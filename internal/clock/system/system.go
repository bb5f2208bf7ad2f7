// Package system provides a real clock implementation.
package system

import "time"

// Clock implements clock.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current local time. The freshness marker sent upstream
// mirrors what the portal's own script sends, which is local wall clock.
func (Clock) Now() time.Time {
	return time.Now()
}
