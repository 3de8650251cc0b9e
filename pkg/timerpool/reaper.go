package timerpool

// reapCompletedLocked splices out the completed worker list atomically,
// releases the mutex, joins each handle in order, then reacquires. Must be
// called with m.mu held; returns with m.mu held.
//
// Joining under the hot lock would serialize every caller on however long
// the slowest exited goroutine takes to actually unwind, so the list is
// always spliced out first and the mutex released before any join blocks.
func (m *Manager) reapCompletedLocked() {
	head := m.completedThreads
	if head == nil {
		return
	}
	m.completedThreads = nil
	m.mu.Unlock()

	for h := head; h != nil; h = h.next {
		h.join()
	}

	m.mu.Lock()
}
