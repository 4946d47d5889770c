// Package metrics exposes Prometheus instrumentation for the emulation
// runtime.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the runtime's Prometheus collectors. All methods are safe
// for concurrent use.
type Metrics struct {
	stepsTotal       prometheus.Counter
	stepFaultsTotal  prometheus.Counter
	stepDuration     prometheus.Histogram
	snapshotsCreated prometheus.Counter
	snapshotsRestore prometheus.Counter
}

// New creates metrics registered against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "emurun",
			Name:      "steps_total",
			Help:      "Completed simulation steps.",
		}),
		stepFaultsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "emurun",
			Name:      "step_faults_total",
			Help:      "Steps that faulted the runtime.",
		}),
		stepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "emurun",
			Name:      "step_duration_seconds",
			Help:      "Wall-clock duration of simulation steps.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		snapshotsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "emurun",
			Name:      "snapshots_created_total",
			Help:      "Snapshots persisted.",
		}),
		snapshotsRestore: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "emurun",
			Name:      "snapshots_restored_total",
			Help:      "Snapshots restored.",
		}),
	}
	reg.MustRegister(m.stepsTotal, m.stepFaultsTotal, m.stepDuration,
		m.snapshotsCreated, m.snapshotsRestore)
	return m
}

// NewNop creates metrics backed by a private registry, for callers that do
// not export metrics.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// StepCompleted records a successful step and its duration.
func (m *Metrics) StepCompleted(d time.Duration) {
	m.stepsTotal.Inc()
	m.stepDuration.Observe(d.Seconds())
}

// StepFaulted records a step that faulted the runtime.
func (m *Metrics) StepFaulted() {
	m.stepFaultsTotal.Inc()
}

// SnapshotCreated records a persisted snapshot.
func (m *Metrics) SnapshotCreated() {
	m.snapshotsCreated.Inc()
}

// SnapshotRestored records a restored snapshot.
func (m *Metrics) SnapshotRestored() {
	m.snapshotsRestore.Inc()
}
