package netconn

import (
	"time"

	"github.com/credprobe-dev/credprobe/domain/ports"
)

// Compile-time interface compliance check
var _ ports.Clock = SystemClock{}

// SystemClock is the production ports.Clock. Instants from time.Now carry
// Go's monotonic reading, so comparisons are immune to wall-clock edits.
type SystemClock struct{}

// Now implements ports.Clock.
func (SystemClock) Now() time.Time {
	return time.Now()
}
