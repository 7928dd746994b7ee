package engine

import "time"

// Clock supplies the time used for "_system.timestamp".
//
// Production code uses SystemClock; tests inject a fixed or stepping clock
// (see testutil.DeterministicClock) so outputs are reproducible.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock always returns the same instant.
type FixedClock time.Time

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time {
	return time.Time(c)
}
