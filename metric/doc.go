// Package metric provides Prometheus-based metrics collection and an HTTP
// server for exposing timer pool health to monitoring systems.
//
// The package offers a centralized metrics registry managing both core pool
// metrics (thread_count, waiter_count, wakeups_total, kicks_total,
// timed_waiter_elections_total) and any additional service-specific metrics a
// caller wants to register alongside them. It includes an HTTP server
// exposing metrics in Prometheus format.
//
// # Architecture
//
// The package follows a two-layer design:
//
//  1. Core Metrics: pool-level metrics automatically registered (Metrics type)
//  2. Service Registry: extensible registration for additional metrics (MetricsRegistrar interface)
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
//	        log.Printf("Metrics server error: %v", err)
//	    }
//	}()
//
//	pool := timerpool.New(source, timerpool.WithMetrics(registry))
//
// The metrics server exposes Prometheus-formatted metrics at
// http://localhost:9090/metrics and a health check at
// http://localhost:9090/health.
//
// # Core Metrics
//
//   - thread_count: live worker goroutines, running or in cleanup
//   - waiter_count: workers currently blocked in wait_until
//   - wakeups_total: times a timed waiter reached its deadline
//   - kicks_total: times an external kick invalidated an election
//   - timed_waiter_elections_total: times a worker elected itself the timed waiter
//
// All core metrics use the namespace "timermanager" and subsystem "pool",
// e.g. timermanager_pool_thread_count.
//
// # Service-Specific Metrics
//
// Callers can register custom metrics through the same registry:
//
//	requestCounter := prometheus.NewCounter(prometheus.CounterOpts{
//	    Name: "requests_total",
//	    Help: "Total number of requests",
//	})
//	err := registry.RegisterCounter("api", "requests_total", requestCounter)
//
// # Thread Safety
//
// All registry operations are thread-safe: registration methods use mutex
// protection, and metric recording is lock-free (a Prometheus guarantee).
package metric
