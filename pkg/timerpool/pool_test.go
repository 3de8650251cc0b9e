package timerpool_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/c360/timermanager/health"
	"github.com/c360/timermanager/metric"
	"github.com/c360/timermanager/pkg/clock"
	"github.com/c360/timermanager/pkg/timerheap"
	"github.com/c360/timermanager/pkg/timerpool"
)

// waitFor polls cond until it reports true or timeout elapses, failing the
// test otherwise. The election protocol under test is driven by goroutines
// the test does not otherwise synchronize with, so assertions about pool
// state must poll rather than assume a fixed number of scheduler turns.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not satisfied within %v", timeout)
}

// newWiredPool builds a Manager backed by a real Heap whose kicker calls
// back into the Manager, matching how cmd/timermanager wires the two -- a
// Heap can't be constructed with a kicker that references a Manager that
// doesn't exist yet, so the kicker closes over a pointer assigned after.
func newWiredPool(fc *clock.Fake, registry *metric.MetricsRegistry, opts ...timerpool.Option) (*timerpool.Manager, *timerheap.Heap) {
	var pool *timerpool.Manager
	source := timerheap.New(
		timerheap.WithClock(fc),
		timerheap.WithKicker(func() { pool.Kick() }),
	)

	allOpts := append([]timerpool.Option{timerpool.WithClock(fc)}, opts...)
	if registry != nil {
		allOpts = append(allOpts, timerpool.WithMetrics(registry))
	}
	pool = timerpool.New(source, allOpts...)
	return pool, source
}

func TestSingleFire(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	pool, source := newWiredPool(fc, nil)
	pool.Init()
	defer pool.Shutdown()

	fired := make(chan struct{})
	source.Add(fc.Now().Add(50*time.Millisecond), func() { close(fired) })

	waitFor(t, 2*time.Second, func() bool { return pool.Snapshot().HasTimedWaiter })
	fc.Advance(50 * time.Millisecond)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}

	if got := pool.WakeupsForTest(); got != 1 {
		t.Errorf("expected exactly 1 wakeup, got %d", got)
	}
}

func TestEarlierDeadlinePreemption(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	registry := metric.NewMetricsRegistry()
	pool, source := newWiredPool(fc, registry)
	pool.Init()
	defer pool.Shutdown()

	var mu sync.Mutex
	var order []string
	record := func(name string) func() {
		return func() {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	source.Add(fc.Now().Add(1000*time.Millisecond), record("slow"))
	waitFor(t, 2*time.Second, func() bool {
		return testutil.ToFloat64(registry.CoreMetrics().TimedWaiterElectionsTotal) >= 1
	})

	source.Add(fc.Now().Add(20*time.Millisecond), record("fast"))
	waitFor(t, 2*time.Second, func() bool {
		return testutil.ToFloat64(registry.CoreMetrics().TimedWaiterElectionsTotal) >= 2
	})

	fc.Advance(20 * time.Millisecond)
	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 1
	})

	waitFor(t, 2*time.Second, func() bool {
		return testutil.ToFloat64(registry.CoreMetrics().TimedWaiterElectionsTotal) >= 3
	})
	fc.Advance(980 * time.Millisecond)
	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	if order[0] != "fast" || order[1] != "slow" {
		t.Errorf("expected [fast slow], got %v", order)
	}
}

func TestBurstGrowthSpawnsWorkerUnderBlockedCallback(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	pool, source := newWiredPool(fc, nil)
	pool.Init()
	defer pool.Shutdown()

	started := make(chan struct{})
	release := make(chan struct{})
	source.Add(fc.Now(), func() {
		close(started)
		<-release
	})

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("blocking callback never started")
	}

	waitFor(t, 2*time.Second, func() bool { return pool.Snapshot().ThreadCount >= 2 })

	fast := make(chan struct{})
	source.Add(fc.Now().Add(10*time.Millisecond), func() { close(fast) })

	waitFor(t, 2*time.Second, func() bool { return pool.Snapshot().HasTimedWaiter })
	fc.Advance(10 * time.Millisecond)

	select {
	case <-fast:
	case <-time.After(2 * time.Second):
		t.Fatal("new timer never fired while the first worker was blocked in its callback")
	}

	close(release)

	waitFor(t, 2*time.Second, func() bool {
		snap := pool.Snapshot()
		return snap.WaiterCount <= snap.ThreadCount
	})
}

func TestShutdownUnderPendingTimerDoesNotFire(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	pool, source := newWiredPool(fc, nil)
	pool.Init()

	var fired atomic.Bool
	source.Add(fc.Now().Add(10*time.Second), func() { fired.Store(true) })

	waitFor(t, 2*time.Second, func() bool { return pool.Snapshot().HasTimedWaiter })

	done := make(chan struct{})
	go func() {
		pool.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not return promptly")
	}

	if got := pool.Snapshot().ThreadCount; got != 0 {
		t.Errorf("expected thread_count == 0 after shutdown, got %d", got)
	}
	if fired.Load() {
		t.Error("timer fired despite never reaching its deadline")
	}
}

func TestRapidKickAbsorptionDoesNotGrowPool(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	pool, _ := newWiredPool(fc, nil)
	pool.Init()
	defer pool.Shutdown()

	for i := 0; i < 1000; i++ {
		pool.Kick()
	}

	if got := pool.Snapshot().ThreadCount; got != 1 {
		t.Errorf("expected the seed worker to be the only one, got thread_count=%d", got)
	}
}

func TestDisableThenEnable(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	pool, source := newWiredPool(fc, nil)
	pool.Init()

	pool.SetThreading(false)
	if got := pool.Snapshot().ThreadCount; got != 0 {
		t.Fatalf("expected thread_count == 0 after disabling, got %d", got)
	}

	pool.SetThreading(true)
	defer pool.Shutdown()
	waitFor(t, 2*time.Second, func() bool { return pool.Snapshot().ThreadCount >= 1 })

	fired := make(chan struct{})
	source.Add(fc.Now().Add(5*time.Millisecond), func() { close(fired) })
	waitFor(t, 2*time.Second, func() bool { return pool.Snapshot().HasTimedWaiter })
	fc.Advance(5 * time.Millisecond)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire after re-enabling threading")
	}
}

// TestShutdownReportsHealthyNotDegraded wires WithHealth together with
// SetThreading(false)/Shutdown -- a deliberately dormant pool must report
// healthy, not degraded, since thread_count==0 here means "behaving exactly
// as asked" rather than "supposed to be running and isn't."
func TestShutdownReportsHealthyNotDegraded(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	monitor := health.NewMonitor()
	pool, _ := newWiredPool(fc, nil, timerpool.WithHealth(monitor, "timermanager"))
	pool.Init()

	waitFor(t, 2*time.Second, func() bool { return pool.Snapshot().ThreadCount >= 1 })
	waitFor(t, 2*time.Second, func() bool { return monitor.AggregateHealth("system").IsHealthy() })

	pool.Shutdown()
	waitFor(t, 2*time.Second, func() bool { return pool.Snapshot().ThreadCount == 0 })

	aggregate := monitor.AggregateHealth("system")
	if !aggregate.IsHealthy() {
		t.Errorf("expected a deliberately shut-down pool to report healthy, got %s", aggregate.Status)
	}
	if aggregate.IsDegraded() {
		t.Error("Shutdown must not read the same as a threaded pool that lost all its workers")
	}
}

// TestStartThreadedFalseReportsHealthy wires WithHealth with a pool whose
// Init never spawns a worker (start_threaded=false) -- the never-started
// case must also read healthy, not degraded.
func TestStartThreadedFalseReportsHealthy(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	monitor := health.NewMonitor()
	pool, _ := newWiredPool(fc, nil,
		timerpool.WithHealth(monitor, "timermanager"),
		timerpool.WithStartThreaded(false),
	)
	pool.Init()

	if got := pool.Snapshot().ThreadCount; got != 0 {
		t.Fatalf("expected thread_count == 0 with start_threaded=false, got %d", got)
	}

	aggregate := monitor.AggregateHealth("system")
	if !aggregate.IsHealthy() {
		t.Errorf("expected a never-started pool to report healthy, got %s", aggregate.Status)
	}
}

func TestWakeupsResetAfterStop(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	pool, source := newWiredPool(fc, nil)
	pool.Init()

	fired := make(chan struct{})
	source.Add(fc.Now().Add(5*time.Millisecond), func() { close(fired) })
	waitFor(t, 2*time.Second, func() bool { return pool.Snapshot().HasTimedWaiter })
	fc.Advance(5 * time.Millisecond)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}

	waitFor(t, 2*time.Second, func() bool { return pool.WakeupsForTest() == 1 })

	pool.Shutdown()
	if got := pool.WakeupsForTest(); got != 0 {
		t.Errorf("expected wakeups reset to 0 after stop, got %d", got)
	}
}

func TestTickSynchronousCheckAndFlush(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	source := timerheap.New(timerheap.WithClock(fc))
	pool := timerpool.New(source, timerpool.WithClock(fc), timerpool.WithStartThreaded(false))
	pool.Init() // not threaded -- no background worker will ever flush this

	fired := false
	source.Add(fc.Now(), func() { fired = true })

	pool.Tick()

	if !fired {
		t.Error("Tick should have synchronously flushed a due timer")
	}
}

func TestSnapshotInvariantWaiterCountNeverExceedsThreadCount(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	pool, source := newWiredPool(fc, nil)
	pool.Init()
	defer pool.Shutdown()

	for i := 0; i < 20; i++ {
		source.Add(fc.Now(), func() {})
	}

	waitFor(t, 2*time.Second, func() bool {
		snap := pool.Snapshot()
		if snap.WaiterCount > snap.ThreadCount {
			t.Fatalf("invariant violated: waiter_count %d > thread_count %d", snap.WaiterCount, snap.ThreadCount)
		}
		return snap.ThreadCount >= 1
	})
}
