package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Generation metrics
	GenerationsTotal         *prometheus.CounterVec
	ProviderRequestDuration  *prometheus.HistogramVec
	ProviderRequestsTotal    *prometheus.CounterVec
	ExtractionRepairsTotal   *prometheus.CounterVec
	QuotaDecisionsTotal      *prometheus.CounterVec
	QuotaStoreFallbacksTotal *prometheus.CounterVec

	// Billing metrics
	WebhookEventsTotal *prometheus.CounterVec
}

// New creates a new Metrics instance registered on reg.
// A nil reg registers on the default prometheus registry.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "jobhunter"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		GenerationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "requests_total",
				Help:      "Generation requests by capability and outcome",
			},
			[]string{"capability", "outcome"},
		),
		ProviderRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "request_duration_seconds",
				Help:      "LLM provider call duration in seconds",
				Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 20, 30, 60, 120},
			},
			[]string{"provider", "model"},
		),
		ProviderRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "requests_total",
				Help:      "LLM provider calls by status and finish reason",
			},
			[]string{"provider", "model", "status", "finish_reason"},
		),
		ExtractionRepairsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "repairs_total",
				Help:      "Truncated responses sent through the repair path, by result",
			},
			[]string{"result"}, // repaired, failed
		),
		QuotaDecisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "quota",
				Name:      "decisions_total",
				Help:      "Quota checks by tier class and decision",
			},
			[]string{"tier", "decision"}, // tier: free, premium; decision: admitted, rejected
		),
		QuotaStoreFallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "quota",
				Name:      "store_fallbacks_total",
				Help:      "Quota store operations served by the fallback backend",
			},
			[]string{"operation"},
		),

		WebhookEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "billing",
				Name:      "webhook_events_total",
				Help:      "Payment webhook events by provider, type and outcome",
			},
			[]string{"provider", "event", "outcome"},
		),
	}
}

// --- Convenience methods ---

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusCodeToString(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordGeneration records the outcome of one orchestrated generation.
func (m *Metrics) RecordGeneration(capability, outcome string) {
	m.GenerationsTotal.WithLabelValues(capability, outcome).Inc()
}

// RecordProviderRequest records an LLM provider call.
func (m *Metrics) RecordProviderRequest(provider, model, status, finishReason string, duration time.Duration) {
	m.ProviderRequestsTotal.WithLabelValues(provider, model, status, finishReason).Inc()
	m.ProviderRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordRepair records one pass through the JSON repair path.
func (m *Metrics) RecordRepair(repaired bool) {
	result := "failed"
	if repaired {
		result = "repaired"
	}
	m.ExtractionRepairsTotal.WithLabelValues(result).Inc()
}

// RecordQuotaDecision records a quota check.
func (m *Metrics) RecordQuotaDecision(tierClass string, admitted bool) {
	decision := "rejected"
	if admitted {
		decision = "admitted"
	}
	m.QuotaDecisionsTotal.WithLabelValues(tierClass, decision).Inc()
}

// RecordQuotaFallback records a quota store call answered by the fallback backend.
func (m *Metrics) RecordQuotaFallback(operation string) {
	m.QuotaStoreFallbacksTotal.WithLabelValues(operation).Inc()
}

// RecordWebhookEvent records a processed payment webhook.
func (m *Metrics) RecordWebhookEvent(provider, event, outcome string) {
	m.WebhookEventsTotal.WithLabelValues(provider, event, outcome).Inc()
}

// statusCodeToString converts an HTTP status code to a string category.
func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
