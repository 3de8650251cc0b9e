// Package clock makes the monotonic clock that the timer pool waits against
// a first-class, swappable dependency instead of a bare assumption.
//
// Two implementations are provided: Real, which wraps the standard library's
// time package and guards against the clock ever appearing to move
// backwards, and Fake, a heap-scheduled simulated clock intended for
// deterministic tests of the timed-waiter election protocol.
package clock
