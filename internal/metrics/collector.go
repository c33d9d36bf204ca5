package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"batchd/internal/batcher"
)

// StatsCollector exposes live batcher gauges, read at scrape time.
type StatsCollector struct {
	source func() []batcher.Stats

	inFlight     *prometheus.Desc
	maxInFlight  *prometheus.Desc
	currentBatch *prometheus.Desc
}

// NewStatsCollector reads gauges from source on every scrape.
func NewStatsCollector(source func() []batcher.Stats) *StatsCollector {
	return &StatsCollector{
		source: source,
		inFlight: prometheus.NewDesc("batchd_batcher_inflight_requests",
			"Admitted requests not yet finished by the dispatcher", []string{"model"}, nil),
		maxInFlight: prometheus.NewDesc("batchd_batcher_max_inflight_requests",
			"Backpressure ceiling", []string{"model"}, nil),
		currentBatch: prometheus.NewDesc("batchd_batcher_current_batch_size",
			"Members of the batch currently open for appends", []string{"model"}, nil),
	}
}

func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.inFlight
	ch <- c.maxInFlight
	ch <- c.currentBatch
}

func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.source() {
		ch <- prometheus.MustNewConstMetric(c.inFlight, prometheus.GaugeValue, float64(s.InFlight), s.Model)
		ch <- prometheus.MustNewConstMetric(c.maxInFlight, prometheus.GaugeValue, float64(s.MaxInFlight), s.Model)
		ch <- prometheus.MustNewConstMetric(c.currentBatch, prometheus.GaugeValue, float64(s.CurrentBatchSize), s.Model)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
