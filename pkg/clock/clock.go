package clock

import (
	"math"
	"time"
)

// Clock abstracts wall-clock access so the timer pool's election protocol can
// be driven deterministically in tests.
type Clock interface {
	// Now returns the current time. Implementations must guarantee it never
	// regresses relative to a previous call on the same Clock.
	Now() time.Time

	// AfterFunc schedules fn to run once after d elapses and returns a Timer
	// that can cancel the pending call. AfterFunc never blocks.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a cancellable, scheduled callback.
type Timer interface {
	// Stop prevents the Timer from firing, if it hasn't already. It reports
	// whether the call stopped the timer before it fired.
	Stop() bool
}

// Deadline is an absolute point in time that is either finite or "never" --
// the latter standing in for the timer heap's +∞ sentinel so that callers
// never need to fabricate an implausibly distant time.Time.
type Deadline struct {
	at     time.Time
	finite bool
}

// At returns a finite Deadline for t.
func At(t time.Time) Deadline {
	return Deadline{at: t, finite: true}
}

// Never returns a Deadline that never elapses.
func Never() Deadline {
	return Deadline{}
}

// IsFinite reports whether the deadline is a concrete point in time.
func (d Deadline) IsFinite() bool {
	return d.finite
}

// Time returns the absolute time of a finite deadline. Callers must check
// IsFinite first; the zero time.Time is returned for Never().
func (d Deadline) Time() time.Time {
	return d.at
}

// Before reports whether d is a finite deadline that is strictly earlier
// than other. A Never() deadline is never Before anything; any finite
// deadline is Before Never().
func (d Deadline) Before(other Deadline) bool {
	if !d.finite {
		return false
	}
	if !other.finite {
		return true
	}
	return d.at.Before(other.at)
}

// Until returns the duration remaining until the deadline, measured from
// now. A Never() deadline returns the largest representable duration rather
// than panicking or overflowing, so callers may pass it directly to a timer
// without special-casing it.
func (d Deadline) Until(now time.Time) time.Duration {
	if !d.finite {
		return time.Duration(math.MaxInt64)
	}
	if d.at.Before(now) {
		return 0
	}
	return d.at.Sub(now)
}
