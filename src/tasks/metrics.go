package tasks

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for task lifecycle activity.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	submitted  prometheus.Counter
	finished   *prometheus.CounterVec
	trajectory prometheus.Histogram
	running    prometheus.Gauge
	dropped    prometheus.Counter
}

// MustNewMetrics registers the task collectors with reg and panics on conflicts.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taskagent",
			Subsystem: "tasks",
			Name:      "submitted_total",
			Help:      "Number of tasks accepted for execution.",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskagent",
			Subsystem: "tasks",
			Name:      "finished_total",
			Help:      "Number of tasks that reached a terminal state.",
		}, []string{"state"}),
		trajectory: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "taskagent",
			Subsystem: "tasks",
			Name:      "trajectory_steps",
			Help:      "Number of steps recorded per completed task.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskagent",
			Subsystem: "tasks",
			Name:      "running",
			Help:      "Number of tasks currently executing.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taskagent",
			Subsystem: "tasks",
			Name:      "dropped_total",
			Help:      "Number of started tasks whose outcome could not be recorded.",
		}),
	}
	reg.MustRegister(m.submitted, m.finished, m.trajectory, m.running, m.dropped)
	return m
}

func (m *Metrics) observeSubmitted() {
	if m == nil {
		return
	}
	m.submitted.Inc()
}

func (m *Metrics) observeStarted() {
	if m == nil {
		return
	}
	m.running.Inc()
}

func (m *Metrics) observeFinished(state State, steps int) {
	if m == nil {
		return
	}
	m.running.Dec()
	m.finished.WithLabelValues(string(state)).Inc()
	if state == StateCompleted {
		m.trajectory.Observe(float64(steps))
	}
}

// observeDropped ends a started task whose terminal state was not written.
func (m *Metrics) observeDropped() {
	if m == nil {
		return
	}
	m.running.Dec()
	m.dropped.Inc()
}
