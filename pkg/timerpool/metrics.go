package timerpool

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/timermanager/metric"
)

// poolMetrics binds one Manager to a MetricsRegistry's core metrics. There is
// no per-Manager namespacing: Managers that share a registry update the same
// gauges and counters.
type poolMetrics struct {
	core           *metric.Metrics
	wakeups        prometheus.Counter
	kicksTotal     prometheus.Counter
	electionsTotal prometheus.Counter
}

func newPoolMetrics(registry *metric.MetricsRegistry) *poolMetrics {
	core := registry.CoreMetrics()
	return &poolMetrics{
		core:           core,
		wakeups:        core.WakeupsTotal,
		kicksTotal:     core.KicksTotal,
		electionsTotal: core.TimedWaiterElectionsTotal,
	}
}

// setGaugesUnlocked snapshots the pool's counters and publishes them through
// Metrics.RecordThreadCount/RecordWaiterCount rather than setting the raw
// prometheus.Gauge fields directly, so those two methods stay the one path
// production code uses to update the gauges. Must be called without m.mu
// held, since Snapshot takes the lock itself.
func (m *Manager) setGaugesUnlocked() {
	if m.metrics == nil {
		return
	}
	snap := m.Snapshot()
	m.metrics.core.RecordThreadCount(snap.ThreadCount)
	m.metrics.core.RecordWaiterCount(snap.WaiterCount)
}
