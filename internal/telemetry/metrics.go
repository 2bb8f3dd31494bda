package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeUnavailable = "unavailable"
	OutcomeEmpty       = "empty"
)

type Metrics struct {
	generations       *prometheus.CounterVec
	generationLatency *prometheus.HistogramVec
	audioSyntheses    *prometheus.CounterVec
	gatherer          prometheus.Gatherer
}

// NewMetrics registers the AI metrics on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		generations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "noteswise_ai_generations_total",
				Help: "Total number of text generation calls by provider, operation and outcome",
			},
			[]string{"provider", "operation", "outcome"},
		),
		generationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "noteswise_ai_generation_duration_seconds",
				Help:    "Text generation latency in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provider", "operation"},
		),
		audioSyntheses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "noteswise_audio_syntheses_total",
				Help: "Total number of text-to-speech calls by outcome",
			},
			[]string{"outcome"},
		),
		gatherer: reg,
	}
}

func (m *Metrics) RecordGeneration(provider, operation, outcome string, elapsed time.Duration) {
	m.generations.WithLabelValues(provider, operation, outcome).Inc()
	if outcome != OutcomeUnavailable {
		m.generationLatency.WithLabelValues(provider, operation).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) RecordAudio(outcome string) {
	m.audioSyntheses.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
