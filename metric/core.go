package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the core timer-pool metrics every Manager exposes
// regardless of which TimerSource it drives.
type Metrics struct {
	ThreadCount               prometheus.Gauge
	WaiterCount               prometheus.Gauge
	WakeupsTotal              prometheus.Counter
	KicksTotal                prometheus.Counter
	TimedWaiterElectionsTotal prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all core timer-pool
// metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		ThreadCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "timermanager",
				Subsystem: "pool",
				Name:      "thread_count",
				Help:      "Live worker goroutines, running or in cleanup",
			},
		),

		WaiterCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "timermanager",
				Subsystem: "pool",
				Name:      "waiter_count",
				Help:      "Workers currently blocked in wait_until or about to block",
			},
		),

		WakeupsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "timermanager",
				Subsystem: "pool",
				Name:      "wakeups_total",
				Help:      "Times a timed waiter has reached its deadline",
			},
		),

		KicksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "timermanager",
				Subsystem: "pool",
				Name:      "kicks_total",
				Help:      "Times an external kick invalidated the current election",
			},
		),

		TimedWaiterElectionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "timermanager",
				Subsystem: "pool",
				Name:      "timed_waiter_elections_total",
				Help:      "Times a worker elected itself the timed waiter",
			},
		),
	}
}

// RecordThreadCount updates the live-thread gauge.
func (m *Metrics) RecordThreadCount(n int) {
	m.ThreadCount.Set(float64(n))
}

// RecordWaiterCount updates the idle-waiter gauge.
func (m *Metrics) RecordWaiterCount(n int) {
	m.WaiterCount.Set(float64(n))
}
