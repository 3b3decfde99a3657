package batch

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "stegolab"

// File outcomes recorded by the analyzed counter
const (
	StatusOK      = "ok"      // every detector produced a score
	StatusPartial = "partial" // the image loaded but some detectors failed
	StatusError   = "error"   // the image could not be fetched or decoded
)

// Metrics holds the batch counters on a private registry, so several runners can
// coexist in one process and in parallel tests.
type Metrics struct {
	registry         *prometheus.Registry
	ImagesAnalyzed   *prometheus.CounterVec
	DetectorDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the batch metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ImagesAnalyzed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "images_analyzed_total",
				Help:      "Images processed by the batch runner, by outcome",
			},
			[]string{"status"},
		),
		DetectorDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "detector_duration_seconds",
				Help:      "Time spent in each detector per image",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method"},
		),
	}
	m.registry.MustRegister(m.ImagesAnalyzed, m.DetectorDuration)
	return m
}

// Registry exposes the private registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteMetrics dumps the metrics to path in the text exposition format
func (m *Metrics) WriteMetrics(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
