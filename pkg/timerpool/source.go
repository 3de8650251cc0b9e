package timerpool

import (
	"time"

	"github.com/c360/timermanager/pkg/clock"
)

// CheckResult is the outcome of a single TimerSource.Check call.
type CheckResult int

const (
	// CheckedAndEmpty means no timer was due; the returned deadline is the
	// soonest future one (or clock.Never() if none are scheduled).
	CheckedAndEmpty CheckResult = iota
	// Fired means at least one timer was due and its callback has been
	// arranged to run on the calling goroutine once Flush is called.
	Fired
	// NotChecked means another goroutine is concurrently inside Check; the
	// returned deadline must be ignored.
	NotChecked
)

func (r CheckResult) String() string {
	switch r {
	case Fired:
		return "fired"
	case CheckedAndEmpty:
		return "checked_and_empty"
	case NotChecked:
		return "not_checked"
	default:
		return "unknown"
	}
}

// TimerSource is the external timer heap this pool drives. The heap's own
// insertion, deletion, and firing order are out of scope for the pool;
// Manager only ever calls these three methods.
//
// Check and Flush are always called from the same goroutine in immediate
// succession when Check returns Fired, with no pool mutex held across either
// call. ConsumeKick is always called with the pool mutex held.
type TimerSource interface {
	// Check reports whether any timer is due at now. On CheckedAndEmpty, it
	// also reports the nearest future deadline.
	Check(now time.Time) (CheckResult, clock.Deadline)

	// Flush runs whatever callbacks Check last arranged to fire. Called
	// without the pool's mutex held so execution never blocks the election
	// protocol.
	Flush()

	// ConsumeKick acknowledges and clears any kick-related state the source
	// itself keeps (e.g. "an earlier timer was inserted since the last
	// check"). Called with the pool mutex held, so it must not block.
	ConsumeKick()
}
