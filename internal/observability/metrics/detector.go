package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DetectorMetrics tracks frames arriving from detector sources.
type DetectorMetrics struct {
	Frames       *prometheus.CounterVec
	DecodeErrors *prometheus.CounterVec
	Connected    *prometheus.GaugeVec
	FrameSize    prometheus.Histogram
}

// NewDetectorMetrics creates and registers detector metrics.
func NewDetectorMetrics(registry prometheus.Registerer) (*DetectorMetrics, error) {
	m := &DetectorMetrics{
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "detector",
			Name:      "frames_total",
			Help:      "Detector frames received by source",
		}, []string{"source"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "detector",
			Name:      "decode_errors_total",
			Help:      "Detector frames that failed to decode or validate",
		}, []string{"source"}),
		Connected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "detector",
			Name:      "connected_clients",
			Help:      "Currently connected detector clients by source",
		}, []string{"source"}),
		FrameSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "detector",
			Name:      "frame_size_bytes",
			Help:      "Size of detector frames in bytes",
			Buckets:   prometheus.ExponentialBuckets(32, 2, 8),
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register detector metrics: %w", err)
	}
	return m, nil
}

// RecordFrame counts a received frame of size bytes.
func (m *DetectorMetrics) RecordFrame(source string, size int) {
	m.Frames.WithLabelValues(source).Inc()
	m.FrameSize.Observe(float64(size))
}

// RecordDecodeError counts a rejected frame.
func (m *DetectorMetrics) RecordDecodeError(source string) {
	m.DecodeErrors.WithLabelValues(source).Inc()
}

// ClientConnected adjusts the connected client gauge.
func (m *DetectorMetrics) ClientConnected(source string, delta int) {
	m.Connected.WithLabelValues(source).Add(float64(delta))
}

// Collect implements the prometheus.Collector interface.
func (m *DetectorMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Frames.Collect(ch)
	m.DecodeErrors.Collect(ch)
	m.Connected.Collect(ch)
	ch <- m.FrameSize
}

// Describe implements the prometheus.Collector interface.
func (m *DetectorMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Frames.Describe(ch)
	m.DecodeErrors.Describe(ch)
	m.Connected.Describe(ch)
	ch <- m.FrameSize.Desc()
}
