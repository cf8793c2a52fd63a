// Package system provides the wall clock used to stamp runs and uploads.
package system

import "time"

// Clock implements crawler.Clock using time.Now.
type Clock struct{}

// New creates a Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
