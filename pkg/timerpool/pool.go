// Package timerpool implements the timer manager: a thread pool that drives
// an external TimerSource by waking exactly one goroutine at the nearest
// deadline, running fired callbacks, and growing the pool to absorb
// callback-induced load.
//
// The hard part is the wakeup coordination protocol in wait.go: at most one
// worker ever sleeps on a finite deadline, handovers are race-free under
// spurious wakeups, late-arriving timers, and external kicks. The protocol is
// described in the comment on waitUntil in wait.go.
package timerpool

import (
	"log/slog"
	"sync"

	"github.com/c360/timermanager/errors"
	"github.com/c360/timermanager/health"
	"github.com/c360/timermanager/metric"
	"github.com/c360/timermanager/pkg/clock"
)

// Manager is the timer pool: one mutex, two condition variables, and a
// handful of counters shared by every worker goroutine. Construct with New;
// the zero value is not usable.
type Manager struct {
	mu         sync.Mutex
	cvWait     *sync.Cond
	cvShutdown *sync.Cond

	source TimerSource
	clock  clock.Clock
	logger *slog.Logger

	// configuration
	startThreaded bool

	// pool state
	initialized           bool
	threaded              bool
	threadCount           int
	waiterCount           int
	hasTimedWaiter        bool
	timedWaiterDeadline   clock.Deadline
	timedWaiterGeneration uint64
	kicked                bool
	completedThreads      *workerHandle
	wakeups               uint64

	metrics *poolMetrics
	health  *healthSink
}

// workerHandle is the conceptual "thread handle": a goroutine's main loop
// closes done as its very last act, so Join() truly blocks until that
// goroutine has exited rather than merely until its accounting ran.
type workerHandle struct {
	done chan struct{}
	next *workerHandle
}

func (h *workerHandle) join() {
	<-h.done
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// New creates a Manager bound to the given TimerSource. With no options the
// pool uses a real monotonic clock, slog.Default(), and start_threaded=true
// as its documented default -- matching Init() with the default
// configuration, but callers almost always want WithStartThreaded explicit
// and a call to Init() to actually spin up the first worker.
func New(source TimerSource, opts ...Option) *Manager {
	if source == nil {
		panic(errors.WrapFatal(ErrNoTimerSource, "timerpool", "New", "construct manager").Error())
	}

	m := &Manager{
		source:              source,
		clock:               clock.NewReal(),
		logger:              slog.Default(),
		startThreaded:       true,
		timedWaiterDeadline: clock.Never(),
	}
	m.cvWait = sync.NewCond(&m.mu)
	m.cvShutdown = sync.NewCond(&m.mu)

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// WithClock overrides the pool's time source -- use a *clock.Fake in tests
// to drive the election protocol deterministically.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger overrides the pool's logger. The pool logs at debug level the
// same transitions the original's GRPC_TRACE_LOG(timer_check, ...) calls
// mark: election, wakeup, kick, thread spawn, thread exit.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithStartThreaded sets the start_threaded configuration flag. It only
// takes effect on the next call to Init.
func WithStartThreaded(enabled bool) Option {
	return func(m *Manager) { m.startThreaded = enabled }
}

// WithMetrics makes the pool update registry's core gauges and counters
// (thread_count, waiter_count, wakeups, kicks_total,
// timed_waiter_elections_total), which NewMetricsRegistry has already
// registered.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(m *Manager) { m.metrics = newPoolMetrics(registry) }
}

// WithHealth reports the pool's threaded flag and thread_count/waiter_count
// into monitor under the given component name on Init, on each start or stop
// of threading, and whenever a worker exits. Growth spawns inside
// runSomeTimers and timed-waiter elections are not reported.
func WithHealth(monitor *health.Monitor, name string) Option {
	return func(m *Manager) { m.health = &healthSink{monitor: monitor, name: name} }
}

// Snapshot is a point-in-time, lock-protected read of the pool's counters,
// exposed for health reporting and tests.
type Snapshot struct {
	Threaded       bool
	ThreadCount    int
	WaiterCount    int
	HasTimedWaiter bool
	Wakeups        uint64
}

// Snapshot returns the current PoolState counters.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		Threaded:       m.threaded,
		ThreadCount:    m.threadCount,
		WaiterCount:    m.waiterCount,
		HasTimedWaiter: m.hasTimedWaiter,
		Wakeups:        m.wakeups,
	}
}

// Init resets the pool to its zero-value state and, if configured with
// start_threaded (the default), spawns the first worker. Calling Init twice
// without an intervening Shutdown is not a scenario this pool defends
// against; it simply resets state and re-seeds, which is safe as long as no
// worker from a prior session is still running.
func (m *Manager) Init() {
	m.mu.Lock()
	m.initialized = true
	m.threaded = false
	m.threadCount = 0
	m.waiterCount = 0
	m.hasTimedWaiter = false
	m.timedWaiterDeadline = clock.Never()
	m.timedWaiterGeneration = 0
	m.kicked = false
	m.completedThreads = nil
	m.wakeups = 0
	start := m.startThreaded
	m.mu.Unlock()

	m.reportHealth()

	if start {
		m.startThreads()
	}
}

// Shutdown stops all worker goroutines and blocks until thread_count==0.
// Equivalent to SetThreading(false).
func (m *Manager) Shutdown() {
	m.SetThreading(false)
}

// SetThreading transitions the pool between threaded and dormant. Enabling
// an already-threaded pool, or disabling an already-dormant one, is a no-op.
func (m *Manager) SetThreading(enabled bool) {
	if enabled {
		m.startThreads()
	} else {
		m.stopThreads()
	}
}

// SetStartThreaded is pure configuration: it only affects a subsequent
// call to Init.
func (m *Manager) SetStartThreaded(enabled bool) {
	m.mu.Lock()
	m.startThreaded = enabled
	m.mu.Unlock()
}

// Kick is called by the TimerSource (or its caller) when a timer is added
// whose deadline might be earlier than the current timed waiter's. It
// invalidates whatever election is in progress so the next wakeup re-checks
// the source instead of trusting a stale cached deadline. Calling Kick
// before Init is a programming error: there is no election to invalidate
// yet, so it panics with ErrNotThreaded rather than silently no-opping.
func (m *Manager) Kick() {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		panic(errors.WrapFatal(ErrNotThreaded, "Manager", "Kick", "called before Init").Error())
	}
	m.kicked = true
	m.hasTimedWaiter = false
	m.timedWaiterDeadline = clock.Never()
	m.timedWaiterGeneration++
	m.logger.Debug("timer pool kicked")
	m.cvWait.Signal()
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.kicksTotal.Inc()
	}
}

// Tick performs a single, synchronous TimerSource check and flush -- used by
// tests that want to drive the pool without a background worker running.
// Like Kick, calling Tick before Init panics with ErrNotThreaded.
func (m *Manager) Tick() {
	m.mu.Lock()
	initialized := m.initialized
	m.mu.Unlock()
	if !initialized {
		panic(errors.WrapFatal(ErrNotThreaded, "Manager", "Tick", "called before Init").Error())
	}

	now := m.clock.Now()
	result, _ := m.source.Check(now)
	if result == Fired {
		m.source.Flush()
	}
}

// WakeupsForTest reports the number of times a timed waiter has reached its
// deadline. Monotonically non-decreasing within a session; reset to 0 by
// stopThreads.
func (m *Manager) WakeupsForTest() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wakeups
}

func (m *Manager) startThreads() {
	m.mu.Lock()
	if !m.threaded {
		m.threaded = true
		m.startTimerThreadAndUnlock() // unlocks m.mu itself
	} else {
		m.mu.Unlock()
	}
	m.reportHealth()
}

func (m *Manager) stopThreads() {
	m.mu.Lock()
	m.logger.Debug("stop timer threads", "threaded", m.threaded)
	if m.threaded {
		m.threaded = false
		m.cvWait.Broadcast()
		for m.threadCount > 0 {
			m.cvShutdown.Wait()
			m.reapCompletedLocked()
		}
	}
	m.wakeups = 0
	m.mu.Unlock()

	m.reportHealth()
}

// startTimerThreadAndUnlock must be called with m.mu held; it registers a
// new worker's counters, unlocks, and spawns it -- the mutex is never held
// across the spawn so a burst of spawns never serializes on it.
func (m *Manager) startTimerThreadAndUnlock() {
	m.threadCount++
	m.waiterCount++
	m.mu.Unlock()

	m.setGaugesUnlocked()
	m.logger.Debug("spawn timer thread")
	m.spawnWorker()
}

// spawnWorker launches a new worker goroutine and returns immediately,
// matching start_timer_thread_and_unlock in the original C implementation:
// a goroutine cannot fail to start the way grpc_core::Thread::Start() can
// fail to spin up an OS thread, so there is nothing here to retry against
// and no readiness handshake to wait on.
func (m *Manager) spawnWorker() {
	handle := &workerHandle{done: make(chan struct{})}
	go m.runWorker(handle)
}

func (m *Manager) runWorker(handle *workerHandle) {
	defer close(handle.done)
	m.mainLoop()
	m.cleanupWorker(handle)
}

func (m *Manager) cleanupWorker(handle *workerHandle) {
	m.mu.Lock()
	m.waiterCount--
	m.threadCount--
	if m.threadCount == 0 {
		m.cvShutdown.Signal()
	}
	handle.next = m.completedThreads
	m.completedThreads = handle
	m.mu.Unlock()

	m.setGaugesUnlocked()
	m.logger.Debug("end timer thread")
	m.reportHealth()
}

func (m *Manager) reportHealth() {
	if m.health == nil {
		return
	}
	snap := m.Snapshot()
	status := health.FromPoolSnapshot(m.health.name, health.PoolSnapshot{
		Threaded:       snap.Threaded,
		ThreadCount:    snap.ThreadCount,
		WaiterCount:    snap.WaiterCount,
		HasTimedWaiter: snap.HasTimedWaiter,
		Wakeups:        snap.Wakeups,
	})
	m.health.monitor.Update(m.health.name, status)
}

type healthSink struct {
	monitor *health.Monitor
	name    string
}
