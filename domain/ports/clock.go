package ports

import (
	"time"
)

// Clock abstracts a monotonic time source. Cache entries are stamped with
// instants from a Clock so that wall-clock adjustments never expire or
// resurrect entries. Tests implement this with a manually advanced clock.
type Clock interface {
	// Now returns the current instant. Successive calls never go backwards.
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	return f()
}
