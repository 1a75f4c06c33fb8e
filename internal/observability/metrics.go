package observability

import (
	"github.com/couchcryptid/risk-map-service/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "riskmap"

// Metrics holds the Prometheus counters, histograms, and gauges for the overlay pipeline.
type Metrics struct {
	CoordinatorRunning prometheus.Gauge
	FilterChanges      prometheus.Counter

	// Pass metrics.
	Passes       *prometheus.CounterVec // labels: trigger={initial,filter,refresh,tick}, outcome={published,superseded,error}
	PassDuration prometheus.Histogram
	RenderItems  prometheus.Gauge

	// Normalization and binning.
	CellsDropped  *prometheus.CounterVec // labels: reason
	BinsTruncated prometheus.Counter

	// Source selection.
	Selections *prometheus.CounterVec // labels: source={live_tiles,historical_heat,none}

	// Upstream risk service.
	UpstreamRequests *prometheus.CounterVec   // labels: endpoint, outcome={success,error}
	UpstreamDuration *prometheus.HistogramVec // labels: endpoint

	// Surfaces.
	SignalsPublished *prometheus.CounterVec // labels: surface, signal={invalidate,render}
}

func newMetrics() *Metrics {
	return &Metrics{
		CoordinatorRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coordinator_running",
			Help:      "1 when the refresh coordinator is active, 0 when shut down.",
		}),
		FilterChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_changes_total",
			Help:      "Filter updates that produced a new filter key.",
		}),
		Passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_total",
			Help:      "Fetch-and-normalize passes by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Duration of a complete fetch-normalize-render pass.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		RenderItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "render_items",
			Help:      "Render items in the most recently published snapshot.",
		}),
		CellsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cells_dropped_total",
			Help:      "Historical records dropped during normalization, by reason.",
		}, []string{"reason"}),
		BinsTruncated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bins_truncated_total",
			Help:      "Bins discarded by the render cap.",
		}),
		Selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selections_total",
			Help:      "Risk query results by backing source.",
		}, []string{"source"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Upstream risk service requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream risk service request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"endpoint"}),
		SignalsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "surface_signals_total",
			Help:      "Invalidate and render signals delivered to rendering surfaces.",
		}, []string{"surface", "signal"}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CoordinatorRunning,
		m.FilterChanges,
		m.Passes,
		m.PassDuration,
		m.RenderItems,
		m.CellsDropped,
		m.BinsTruncated,
		m.Selections,
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.SignalsPublished,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// NewUnregisteredMetrics creates Metrics that are never exported, for
// one-shot commands without a /metrics endpoint.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics()
}

// ObserveLayer records normalization drops and bins lost to the render cap.
func (m *Metrics) ObserveLayer(dropped map[domain.DropReason]int, truncated int) {
	for reason, n := range dropped {
		m.CellsDropped.WithLabelValues(string(reason)).Add(float64(n))
	}
	if truncated > 0 {
		m.BinsTruncated.Add(float64(truncated))
	}
}
