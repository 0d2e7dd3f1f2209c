// Package observability provides Prometheus metrics and structured logging.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Recompute metrics
	RecomputeTotal    *prometheus.CounterVec
	RowsUpserted      *prometheus.CounterVec
	RecomputeDuration *prometheus.HistogramVec

	// Recipe metrics
	ValidationFailures *prometheus.CounterVec
	CyclesDetected     prometheus.Counter

	// Orchestrator metrics
	FanOutTargets prometheus.Histogram

	// Health metrics
	LastSuccessfulRecompute prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered on reg.
// A nil reg registers on prometheus.DefaultRegisterer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "commodity_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RecomputeTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "derived",
			Name:      "recompute_total",
			Help:      "Total number of recomputes by kind and status",
		}, []string{"kind", "status"}),
		RowsUpserted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "derived",
			Name:      "rows_upserted_total",
			Help:      "Total number of derived rows written by kind",
		}, []string{"kind"}),
		RecomputeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "derived",
			Name:      "recompute_duration_seconds",
			Help:      "Recompute duration in seconds by kind",
			Buckets:   []float64{.005, .01, .05, .1, .5, 1, 5, 30},
		}, []string{"kind"}),

		ValidationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recipe",
			Name:      "validation_failures_total",
			Help:      "Total number of rejected expressions by reason",
		}, []string{"reason"}),
		CyclesDetected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recipe",
			Name:      "cycles_detected_total",
			Help:      "Total number of dependency cycles detected",
		}),

		FanOutTargets: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "fanout_targets",
			Help:      "Number of derived targets triggered per update",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),

		LastSuccessfulRecompute: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_recompute_timestamp",
			Help:      "Unix timestamp of last successful recompute",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint of g.
// A nil g serves the default gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordRecompute records one recompute outcome.
func (m *Metrics) RecordRecompute(kind, status string, rows int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RecomputeTotal.WithLabelValues(kind, status).Inc()
	m.RecomputeDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	if rows > 0 {
		m.RowsUpserted.WithLabelValues(kind).Add(float64(rows))
	}
	if status == "success" {
		m.LastSuccessfulRecompute.SetToCurrentTime()
	}
}

// RecordValidationFailure records a rejected expression.
func (m *Metrics) RecordValidationFailure(reason string) {
	if m == nil {
		return
	}
	m.ValidationFailures.WithLabelValues(reason).Inc()
}

// RecordCycle records a detected dependency cycle.
func (m *Metrics) RecordCycle() {
	if m == nil {
		return
	}
	m.CyclesDetected.Inc()
}

// RecordFanOut records how many targets an update triggered.
func (m *Metrics) RecordFanOut(targets int) {
	if m == nil {
		return
	}
	m.FanOutTargets.Observe(float64(targets))
}
