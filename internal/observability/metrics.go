package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for overlay rendering.
type Metrics struct {
	Renders         *prometheus.CounterVec // labels: outcome={success,error}
	RenderDuration  prometheus.Histogram
	CellsClassified *prometheus.CounterVec // labels: class={<label>,nodata,unclassified}
}

func newMetrics() *Metrics {
	return &Metrics{
		Renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riskmap",
			Name:      "renders_total",
			Help:      "Overlay render calls by outcome.",
		}, []string{"outcome"}),
		RenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "riskmap",
			Name:      "render_duration_seconds",
			Help:      "Duration of a complete read-classify-compose render.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		CellsClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riskmap",
			Name:      "cells_classified_total",
			Help:      "Raster cells classified, by class.",
		}, []string{"class"}),
	}
}

// NewMetrics creates and registers the render metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.Renders, m.RenderDuration, m.CellsClassified)
	return m
}

// NewUnregisteredMetrics creates Metrics that are never exported, for
// processes without a /metrics endpoint.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics()
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as
// many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
