// Package metrics exposes Prometheus instrumentation for forecast runs and the
// HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder receives pipeline instrumentation.
type Recorder interface {
	ObserveStage(stage string, d time.Duration)
	RecordRun(outcome string, rows, clamped, missingJoins int)
}

// Noop discards everything.
type Noop struct{}

func (Noop) ObserveStage(string, time.Duration) {}
func (Noop) RecordRun(string, int, int, int) {}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	RunsTotal     *prometheus.CounterVec
	RowsTotal     prometheus.Counter
	ClampedTotal  prometheus.Counter
	MissingJoins  prometheus.Counter
	StageDuration *prometheus.HistogramVec

	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec

	StoreUp prometheus.Gauge
}

// NewCollector registers the collectors with reg.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of forecast runs by outcome",
			},
			[]string{"outcome"},
		),

		RowsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_processed_total",
				Help:      "Total number of forecast hours processed",
			},
		),

		ClampedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_clamped_total",
				Help:      "Total number of hours whose output was forced to zero",
			},
		),

		MissingJoins: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "missing_reference_rows_total",
				Help:      "Total number of hours with no matching reference data",
			},
		),

		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Pipeline stage duration in seconds",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"stage"},
		),

		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by endpoint, method, and status",
			},
			[]string{"endpoint", "method", "status"},
		),

		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"endpoint"},
		),

		StoreUp: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "store_up",
				Help:      "Whether the last result store health check succeeded (1) or not (0)",
			},
		),
	}
}

// ObserveStage implements Recorder.
func (c *Collector) ObserveStage(stage string, d time.Duration) {
	c.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordRun implements Recorder.
func (c *Collector) RecordRun(outcome string, rows, clamped, missingJoins int) {
	c.RunsTotal.WithLabelValues(outcome).Inc()
	c.RowsTotal.Add(float64(rows))
	c.ClampedTotal.Add(float64(clamped))
	c.MissingJoins.Add(float64(missingJoins))
}

// RecordRequest records one API request.
func (c *Collector) RecordRequest(endpoint, method, status string, d time.Duration) {
	c.APIRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
	c.APIRequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// SetStoreUp records the outcome of a result store health check.
func (c *Collector) SetStoreUp(healthy bool) {
	if healthy {
		c.StoreUp.Set(1)
		return
	}
	c.StoreUp.Set(0)
}
