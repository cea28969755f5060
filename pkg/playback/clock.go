package playback

import "time"

// Clock is the shared read-only time reference scheduling decisions are made
// against. Implementations must be monotonic; both the [Player] and the
// [Queue] read it but never adjust it.
type Clock interface {
	// Now returns the elapsed time on the audio clock.
	Now() time.Duration
}

// Compile-time interface assertion.
var _ Clock = (*MonotonicClock)(nil)

// MonotonicClock is a Clock anchored at its creation time.
type MonotonicClock struct {
	start time.Time
}

// NewMonotonicClock creates a clock starting at zero.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

// Now implements Clock.
func (c *MonotonicClock) Now() time.Duration {
	return time.Since(c.start)
}
