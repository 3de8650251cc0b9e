package timerheap

import (
	"container/heap"
	"sync"
	"time"

	"github.com/c360/timermanager/pkg/clock"
	"github.com/c360/timermanager/pkg/timerpool"
)

// entry is one scheduled callback. Cancelled entries are not removed from
// the heap immediately -- Cancel only flips a flag -- and are instead
// skipped lazily the next time Check or Flush walks past them, the same
// trade-off the original gRPC timer list makes for cheap cancellation.
type entry struct {
	deadline time.Time
	fn       func()
	canceled bool
}

type entryHeap []*entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x interface{}) { *h = append(*h, x.(*entry)) }
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Handle cancels a scheduled callback.
type Handle struct {
	entry *entry
	owner *Heap
}

// Cancel prevents the callback from firing, if it has not fired already.
// Safe to call more than once, and safe to call after the callback has
// already run.
func (h *Handle) Cancel() {
	h.owner.mu.Lock()
	h.entry.canceled = true
	h.owner.mu.Unlock()
}

// Heap is a reference timerpool.TimerSource backed by a container/heap
// ordered by deadline. Construct with New; zero value is not usable.
type Heap struct {
	mu      sync.Mutex
	clock   clock.Clock
	entries entryHeap
	kick    func()
}

// Option configures a Heap at construction time.
type Option func(*Heap)

// WithClock overrides the heap's notion of "now" used by Flush to decide
// which callbacks are due. Defaults to clock.NewReal().
func WithClock(c clock.Clock) Option {
	return func(h *Heap) { h.clock = c }
}

// WithKicker registers a callback invoked whenever Add schedules a deadline
// earlier than every currently pending entry. Wire this to a
// *timerpool.Manager's Kick method so a new, earlier timer preempts whatever
// election the pool already made.
func WithKicker(kick func()) Option {
	return func(h *Heap) { h.kick = kick }
}

// New creates an empty Heap.
func New(opts ...Option) *Heap {
	h := &Heap{clock: clock.NewReal()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Add schedules fn to run at deadline and returns a Handle that can cancel
// it before it fires.
func (h *Heap) Add(deadline time.Time, fn func()) *Handle {
	h.mu.Lock()
	e := &entry{deadline: deadline, fn: fn}
	preempts := h.entries.Len() == 0 || deadline.Before(h.entries[0].deadline)
	heap.Push(&h.entries, e)
	h.mu.Unlock()

	if preempts && h.kick != nil {
		h.kick()
	}

	return &Handle{entry: e, owner: h}
}

// removeCanceledLocked discards canceled entries sitting at the top of the
// heap. Must be called with h.mu held.
func (h *Heap) removeCanceledLocked() {
	for h.entries.Len() > 0 && h.entries[0].canceled {
		heap.Pop(&h.entries)
	}
}

// Check implements timerpool.TimerSource. It reports Fired if the nearest
// deadline has passed, CheckedAndEmpty with the nearest future deadline
// otherwise, or NotChecked if another goroutine is concurrently mutating
// the heap.
func (h *Heap) Check(now time.Time) (timerpool.CheckResult, clock.Deadline) {
	if !h.mu.TryLock() {
		return timerpool.NotChecked, clock.Never()
	}
	defer h.mu.Unlock()

	h.removeCanceledLocked()

	if h.entries.Len() == 0 {
		return timerpool.CheckedAndEmpty, clock.Never()
	}

	next := h.entries[0].deadline
	if !next.After(now) {
		return timerpool.Fired, clock.Never()
	}
	return timerpool.CheckedAndEmpty, clock.At(next)
}

// Flush runs every callback whose deadline has passed as of the heap's
// clock, in deadline order. Callbacks run with no lock held so a callback
// that calls back into Add or Cancel cannot deadlock against itself.
func (h *Heap) Flush() {
	h.mu.Lock()
	now := h.clock.Now()

	var due []*entry
	for h.entries.Len() > 0 && !h.entries[0].deadline.After(now) {
		e := heap.Pop(&h.entries).(*entry)
		if e.canceled {
			continue
		}
		due = append(due, e)
	}
	h.mu.Unlock()

	for _, e := range due {
		e.fn()
	}
}

// ConsumeKick implements timerpool.TimerSource. Heap has no staged state to
// reconcile on kick -- Add already pushed the new entry before calling the
// kicker -- so this is a no-op.
func (h *Heap) ConsumeKick() {}

// Len reports the number of live, uncancelled entries. Exposed for tests
// and diagnostics.
func (h *Heap) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, e := range h.entries {
		if !e.canceled {
			n++
		}
	}
	return n
}
