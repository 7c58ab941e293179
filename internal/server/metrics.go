package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the prometheus instruments for the transcription service. A
// private registry keeps tests from tripping over duplicate registration.
type Metrics struct {
	registry   *prometheus.Registry
	requests   prometheus.Counter
	failures   *prometheus.CounterVec
	segments   prometheus.Counter
	runSeconds prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.requests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tingxie_requests_total",
		Help: "Transcription requests accepted.",
	})
	m.failures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tingxie_failures_total",
		Help: "Failed transcription runs by stage.",
	}, []string{"stage"})
	m.segments = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tingxie_segments_total",
		Help: "Audio segments transcribed.",
	})
	m.runSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tingxie_run_seconds",
		Help:    "Wall-clock duration of successful pipeline runs.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	})
	m.registry.MustRegister(m.requests, m.failures, m.segments, m.runSeconds)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
