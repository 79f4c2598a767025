package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentserve_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentserve_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Invocation metrics
	invocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentserve_invocations_total",
			Help: "Total number of agent invocations",
		},
		[]string{"agent", "mode", "status"},
	)

	invocationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentserve_invocation_duration_seconds",
			Help:    "Agent invocation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"agent", "mode"},
	)

	// Stream metrics
	streamEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentserve_stream_events_total",
			Help: "Total number of stream events delivered",
		},
		[]string{"agent", "kind"},
	)

	activeStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentserve_active_streams",
			Help: "Number of streams currently open",
		},
	)

	// Moderation metrics
	moderationFlagsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentserve_moderation_flags_total",
			Help: "Total number of replies withheld by the moderation gate",
		},
		[]string{"agent", "category"},
	)

	initOnce sync.Once
)

// InitMetrics initializes Prometheus metrics
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			invocationsTotal,
			invocationDuration,
			streamEventsTotal,
			activeStreams,
			moderationFlagsTotal,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordInvocation records one completed or failed invocation
func RecordInvocation(agent, mode, status string, duration time.Duration) {
	invocationsTotal.WithLabelValues(agent, mode, status).Inc()
	invocationDuration.WithLabelValues(agent, mode).Observe(duration.Seconds())
}

// RecordStreamEvent records one delivered stream event
func RecordStreamEvent(agent, kind string) {
	streamEventsTotal.WithLabelValues(agent, kind).Inc()
}

// StreamOpened increments the active stream gauge
func StreamOpened() {
	activeStreams.Inc()
}

// StreamClosed decrements the active stream gauge
func StreamClosed() {
	activeStreams.Dec()
}

// RecordModerationFlag records a reply withheld by the moderation gate
func RecordModerationFlag(agent, category string) {
	moderationFlagsTotal.WithLabelValues(agent, category).Inc()
}
