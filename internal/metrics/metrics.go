// Package metrics exposes Prometheus instrumentation for the alarm
// scheduler and the readiness gate.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the daemon. A nil *Metrics is
// valid and turns every record call into a no-op, which keeps tests free of
// registry bookkeeping.
type Metrics struct {
	registry         prometheus.Registerer
	outcomes         *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	readinessProbes  *prometheus.CounterVec
	readinessSeconds prometheus.Histogram
	nextDeadline     prometheus.Gauge
}

// Init creates and registers the collectors. A nil registerer falls back to
// the default Prometheus registry.
func Init(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		registry: reg,
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alarm_outcomes_total",
				Help:      "Alarm execution outcomes by result",
			},
			[]string{"outcome"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduler_transitions_total",
				Help:      "Scheduler state machine transitions",
			},
			[]string{"state"},
		),
		readinessProbes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "readiness_probes_total",
				Help:      "Readiness probe results by dimension",
			},
			[]string{"probe", "result"},
		),
		readinessSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "readiness_check_duration_seconds",
				Help:      "Duration of a full readiness check",
				Buckets:   []float64{.1, .5, 1, 2, 5, 10, 30},
			},
		),
		nextDeadline: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "next_deadline_timestamp_seconds",
				Help:      "Unix timestamp of the next scheduled alarm fire, 0 when idle",
			},
		),
	}

	reg.MustRegister(
		m.outcomes,
		m.transitions,
		m.readinessProbes,
		m.readinessSeconds,
		m.nextDeadline,
	)

	return m
}

// RecordOutcome counts a completed execution attempt.
func (m *Metrics) RecordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(outcome).Inc()
}

// RecordTransition counts a state machine transition into the given state.
func (m *Metrics) RecordTransition(state string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(state).Inc()
}

// RecordProbe counts a single readiness probe result.
func (m *Metrics) RecordProbe(probe string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "fail"
	}
	m.readinessProbes.WithLabelValues(probe, result).Inc()
}

// RecordReadinessDuration observes the duration of a full readiness check.
func (m *Metrics) RecordReadinessDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.readinessSeconds.Observe(d.Seconds())
}

// SetNextDeadline publishes the next scheduled fire instant, or clears it.
func (m *Metrics) SetNextDeadline(t time.Time) {
	if m == nil {
		return
	}
	if t.IsZero() {
		m.nextDeadline.Set(0)
		return
	}
	m.nextDeadline.Set(float64(t.Unix()))
}
