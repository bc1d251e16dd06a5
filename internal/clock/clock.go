package clock

import "time"

// Clock provides current time abstraction for deterministic tests.
// Params: none.
// Returns: current wall-clock time.
type Clock interface {
	Now() time.Time
}

// RealClock reads current UTC time from system clock.
// Params: none.
// Returns: current UTC timestamp.
type RealClock struct{}

// Now returns current UTC time.
// Params: none.
// Returns: current UTC timestamp.
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// Manual is a test clock advanced explicitly.
// Params: starting instant.
// Returns: controllable clock; not safe for concurrent writers.
type Manual struct {
	now time.Time
}

// NewManual creates a manual clock at the given instant.
// Params: starting instant.
// Returns: manual clock.
func NewManual(now time.Time) *Manual {
	return &Manual{now: now.UTC()}
}

// Now returns the configured instant.
func (m *Manual) Now() time.Time {
	return m.now
}

// Advance moves the clock forward.
// Params: positive duration.
// Returns: new current instant.
func (m *Manual) Advance(d time.Duration) time.Time {
	m.now = m.now.Add(d)
	return m.now
}

// Set pins the clock to an instant.
func (m *Manual) Set(now time.Time) {
	m.now = now.UTC()
}
