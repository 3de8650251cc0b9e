package timerpool

import "github.com/c360/timermanager/pkg/clock"

// waitUntil implements the timed-waiter election protocol.
// Invariant upheld throughout: at most one worker sleeps on a finite
// deadline; every other worker sleeps on clock.Never(). The worker sleeping
// on a finite deadline is "the" timed waiter, and its identity is encoded
// purely by matching timedWaiterGeneration at wake time -- a single integer
// bump under the mutex is enough for Kick to invalidate an election without
// knowing who holds it.
//
// Returns false if the pool is no longer threaded and the caller's main
// loop should exit.
func (m *Manager) waitUntil(next clock.Deadline) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.threaded {
		return false
	}

	// If kicked is already set here, a kick raced ahead of us and we must
	// not trust next -- there may be an earlier deadline we haven't seen.
	// Skip straight to kick consumption below.
	if !m.kicked {
		// Guaranteed not to equal the current generation.
		myGen := m.timedWaiterGeneration - 1

		if next.IsFinite() && (!m.hasTimedWaiter || next.Before(m.timedWaiterDeadline)) {
			m.timedWaiterGeneration++
			myGen = m.timedWaiterGeneration
			m.hasTimedWaiter = true
			m.timedWaiterDeadline = next
			m.logger.Debug("sleep until deadline", "deadline", next.Time())
			if m.metrics != nil {
				m.metrics.electionsTotal.Inc()
			}
		} else {
			// Either there's already a timed waiter with an earlier or
			// equal deadline, or next itself is Never() -- sleep forever.
			next = clock.Never()
			m.logger.Debug("sleep until kicked")
		}

		m.waitOnLocked(next)

		if myGen == m.timedWaiterGeneration {
			// We were the elected waiter and reached our deadline (or were
			// spuriously woken); release the election so the next check,
			// on any worker, can elect a fresh one.
			m.wakeups++
			m.hasTimedWaiter = false
			m.timedWaiterDeadline = clock.Never()
			if m.metrics != nil {
				m.metrics.wakeups.Inc()
			}
		}
	}

	if m.kicked {
		m.source.ConsumeKick()
		m.kicked = false
	}

	return true
}

// waitOnLocked blocks on cvWait until next elapses or some other goroutine
// signals/broadcasts it, and must be called with m.mu held (it releases and
// reacquires internally, same as sync.Cond.Wait). A finite deadline is
// implemented with a clock timer that re-acquires the mutex and broadcasts
// cvWait when it fires; Never() waits with no timer at all.
func (m *Manager) waitOnLocked(next clock.Deadline) {
	if !next.IsFinite() {
		m.cvWait.Wait()
		return
	}

	d := next.Until(m.clock.Now())
	timer := m.clock.AfterFunc(d, func() {
		m.mu.Lock()
		m.cvWait.Broadcast()
		m.mu.Unlock()
	})

	m.cvWait.Wait()
	timer.Stop()
}
