package timerpool

import "github.com/c360/timermanager/pkg/clock"

// mainLoop is the per-goroutine loop: check timers, either fire them or
// sleep until the next deadline, repeat until waitUntil reports the pool is
// no longer threaded.
func (m *Manager) mainLoop() {
	for {
		now := m.clock.Now()
		result, next := m.source.Check(now)

		switch result {
		case Fired:
			m.runSomeTimers()
			continue
		case NotChecked:
			// Another goroutine is concurrently checking: it will either
			// fire and wake someone, or check-and-become a timed waiter.
			// A redundant timed waiter here would only burn a wakeup, so
			// sleep forever instead.
			next = clock.Never()
		case CheckedAndEmpty:
			// next already holds the nearest future deadline.
		}

		if !m.waitUntil(next) {
			return
		}
	}
}

// runSomeTimers flushes fired callbacks. Callback execution must never
// block the pool's ability to react to new timers, so the pool grows
// load-adaptively here and the callbacks always run without the mutex held.
func (m *Manager) runSomeTimers() {
	m.mu.Lock()
	m.waiterCount--
	if m.waiterCount == 0 && m.threaded {
		// The pool grows monotonically during bursts: waiters are consumed
		// as executors, so if none are left, spawn one to keep watching the
		// timer source while this goroutine flushes callbacks.
		m.startTimerThreadAndUnlock() // unlocks m.mu itself
	} else {
		if !m.hasTimedWaiter {
			m.logger.Debug("kick untimed waiter")
			m.cvWait.Signal()
		}
		m.mu.Unlock()
	}

	m.setGaugesUnlocked()

	m.logger.Debug("flush pending timers")
	m.source.Flush()

	m.mu.Lock()
	m.reapCompletedLocked()
	m.waiterCount++
	m.mu.Unlock()

	m.setGaugesUnlocked()
}
