// Package metrics exports batching telemetry to Prometheus.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"batchd/internal/batcher"
)

var (
	batchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "batchd",
			Subsystem: "batcher",
			Name:      "batch_size",
			Help:      "Number of requests per closed batch",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128},
		},
		[]string{"model"},
	)

	batchFill = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "batchd",
			Subsystem: "batcher",
			Name:      "batch_fill_seconds",
			Help:      "Time from first arrival to batch close",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"model"},
	)

	batchesClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "batchd",
			Subsystem: "batcher",
			Name:      "batches_closed_total",
			Help:      "Closed batches by trigger",
		},
		[]string{"model", "reason"},
	)

	dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "batchd",
			Subsystem: "batcher",
			Name:      "dispatch_total",
			Help:      "Backend calls by outcome",
		},
		[]string{"model", "outcome"},
	)

	backendLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "batchd",
			Subsystem: "backend",
			Name:      "latency_seconds",
			Help:      "Latency of batched backend calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"model", "outcome"},
	)

	rejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "batchd",
			Subsystem: "batcher",
			Name:      "rejections_total",
			Help:      "Admissions refused before entering a batch",
		},
		[]string{"model", "reason"},
	)

	cancellations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "batchd",
			Subsystem: "batcher",
			Name:      "cancellations_total",
			Help:      "Requests withdrawn by their caller before resolution",
		},
		[]string{"model"},
	)
)

func init() {
	prometheus.MustRegister(batchSize, batchFill, batchesClosed, dispatchTotal, backendLatency, rejections, cancellations)
}

// Observer implements batcher.Observer on the package collectors.
type Observer struct{}

var _ batcher.Observer = Observer{}

func (Observer) BatchClosed(e batcher.BatchClosedEvent) {
	batchSize.WithLabelValues(e.Model).Observe(float64(e.Size))
	batchFill.WithLabelValues(e.Model).Observe(e.FillTime.Seconds())
	batchesClosed.WithLabelValues(e.Model, string(e.Reason)).Inc()
}

func (Observer) BatchDispatched(e batcher.BatchDispatchedEvent) {
	outcome := Outcome(e.Err)
	dispatchTotal.WithLabelValues(e.Model, outcome).Inc()
	backendLatency.WithLabelValues(e.Model, outcome).Observe(e.Latency.Seconds())
}

func (Observer) Rejected(model, reason string) {
	if reason == "" {
		reason = "unspecified"
	}
	rejections.WithLabelValues(model, reason).Inc()
}

func (Observer) Cancelled(model string) {
	cancellations.WithLabelValues(model).Inc()
}

// Outcome classifies a dispatch error into a low-cardinality label.
func Outcome(err error) string {
	var be *batcher.BackendError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &be) && be.Err != nil && isTimeout(be.Err):
		return "timeout"
	default:
		return "failure"
	}
}
