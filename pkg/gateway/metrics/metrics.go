// Package metrics exposes Prometheus metrics for the gateway.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	registry *prometheus.Registry

	// Turn metrics
	TurnsTotal   *prometheus.CounterVec
	TurnDuration *prometheus.HistogramVec

	// Run driver metrics
	PollsTotal     prometheus.Counter
	SalvagesTotal  *prometheus.CounterVec
	ToolCallsTotal *prometheus.CounterVec

	// Deduplication metrics
	DedupJoinsTotal prometheus.Counter

	// Session metrics
	SessionsActive prometheus.Gauge

	// Voice metrics
	VoiceRequestsTotal *prometheus.CounterVec

	// Error metrics
	ErrorsTotal *prometheus.CounterVec
}

// New creates a Metrics instance with all metrics registered on a private
// registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "stampchat"
	}

	registry := prometheus.NewRegistry()

	turnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total conversation turns",
		},
		[]string{"mode", "outcome"},
	)

	turnDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Turn duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		},
		[]string{"mode"},
	)

	pollsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_polls_total",
			Help:      "Total run status polls",
		},
	)

	salvagesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "salvages_total",
			Help:      "Turns that degraded to a partial answer",
		},
		[]string{"reason"},
	)

	toolCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool calls resolved by outcome",
		},
		[]string{"function", "outcome"},
	)

	dedupJoinsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dedup_joins_total",
			Help:      "Requests that joined an in-flight duplicate",
		},
	)

	sessionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions with a live conversation ref",
		},
	)

	voiceRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_requests_total",
			Help:      "Voice pipeline requests",
		},
		[]string{"stage", "status"},
	)

	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors by taxonomy type",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(
		turnsTotal,
		turnDuration,
		pollsTotal,
		salvagesTotal,
		toolCallsTotal,
		dedupJoinsTotal,
		sessionsActive,
		voiceRequestsTotal,
		errorsTotal,
	)

	return &Metrics{
		registry:           registry,
		TurnsTotal:         turnsTotal,
		TurnDuration:       turnDuration,
		PollsTotal:         pollsTotal,
		SalvagesTotal:      salvagesTotal,
		ToolCallsTotal:     toolCallsTotal,
		DedupJoinsTotal:    dedupJoinsTotal,
		SessionsActive:     sessionsActive,
		VoiceRequestsTotal: voiceRequestsTotal,
		ErrorsTotal:        errorsTotal,
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordTurn records a completed conversation turn.
func (m *Metrics) RecordTurn(mode, outcome string, duration time.Duration) {
	m.TurnsTotal.WithLabelValues(mode, outcome).Inc()
	m.TurnDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordSalvage records a turn degraded to partial output.
func (m *Metrics) RecordSalvage(reason string) {
	m.SalvagesTotal.WithLabelValues(reason).Inc()
}

// RecordToolCall records one resolved tool call.
func (m *Metrics) RecordToolCall(function, outcome string) {
	m.ToolCallsTotal.WithLabelValues(function, outcome).Inc()
}

// RecordError records an error by taxonomy type.
func (m *Metrics) RecordError(errorType string) {
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// RecordVoiceRequest records a voice pipeline stage result.
func (m *Metrics) RecordVoiceRequest(stage, status string) {
	m.VoiceRequestsTotal.WithLabelValues(stage, status).Inc()
}
