// Package timermanager drives pluggable timer sources with an elastic pool
// of goroutines, electing exactly one goroutine at a time to sleep until the
// nearest deadline and growing the pool only when callback execution would
// otherwise starve that election.
//
// # Philosophy: One Election, Many Workers
//
// The manager never assumes how timers are stored. A TimerSource only needs
// to answer three questions -- is anything due, what is the nearest future
// deadline, and has an external kick invalidated the last answer -- and the
// pool in pkg/timerpool handles the rest: electing a timed waiter, waking it
// precisely once, running fired callbacks off the hot path, and reaping
// finished goroutines without blocking new elections.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│           Manager                    │  Election protocol,
//	│   (pkg/timerpool)                    │  pool growth, shutdown
//	└─────────────────────────────────────┘
//	           ↓ drives
//	┌─────────────────────────────────────┐
//	│         TimerSource                  │  Check / Flush / ConsumeKick
//	│   (pkg/timerheap or caller-supplied)  │
//	└─────────────────────────────────────┘
//	           ↓ reads time from
//	┌─────────────────────────────────────┐
//	│            Clock                     │  Real or Fake
//	│   (pkg/clock)                        │
//	└─────────────────────────────────────┘
//
// Supporting packages provide the ambient stack used throughout: errors
// (classified, wrapped errors with retry hints), health (component status
// rollup), metric (Prometheus registry and HTTP exposition, including the
// bind-retry logic below), config (start_threaded configuration), and
// pkg/retry (bounded exponential backoff, used by metric.Server.Start to
// retry binding its listener past a port still in TIME_WAIT).
//
// # Basic Usage
//
//	var pool *timerpool.Manager
//	source := timerheap.New(timerheap.WithKicker(func() { pool.Kick() }))
//	pool = timerpool.New(source,
//	    timerpool.WithClock(clock.NewReal()),
//	    timerpool.WithMetrics(registry),
//	)
//	pool.Init()
//	defer pool.Shutdown()
//
//	source.Add(time.Now().Add(5*time.Second), func() {
//	    fmt.Println("fired")
//	})
package timermanager
