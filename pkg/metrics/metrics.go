// Package metrics exposes Prometheus instrumentation for the analysis
// server. Init must be called once at startup before any metric is touched.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	registry       *prometheus.Registry
	registryOnce   sync.Once
	metricsEnabled = true

	// Analysis metrics
	AnalysisRequestsTotal *prometheus.CounterVec
	AnalysisErrors        *prometheus.CounterVec
	AnalysisDuration      *prometheus.HistogramVec
	TurnsAnalyzed         prometheus.Counter
	ConversationSize      prometheus.Histogram

	// Import metrics
	ImportsTotal *prometheus.CounterVec
	ImportErrors *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec

	// WebSocket metrics
	WSClientsConnected prometheus.Gauge
	WSMessagesSent     prometheus.Counter

	// AMQP metrics
	AMQPPublishedMessages *prometheus.CounterVec
	AMQPConnectionErrors  *prometheus.CounterVec
	AMQPReconnectAttempts *prometheus.CounterVec
	AMQPConnectionStatus  prometheus.Gauge
)

// Init initializes all metrics and registers them with Prometheus.
func Init(logger *logrus.Logger) {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()

		AnalysisRequestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lingopulse_analysis_requests_total",
				Help: "Total number of analysis requests per view",
			},
			[]string{"view"},
		)

		AnalysisErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lingopulse_analysis_errors_total",
				Help: "Total number of failed analysis requests",
			},
			[]string{"reason"},
		)

		AnalysisDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lingopulse_analysis_duration_seconds",
				Help:    "Time spent computing one analytical view",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
			},
			[]string{"view"},
		)

		TurnsAnalyzed = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lingopulse_turns_analyzed_total",
				Help: "Total number of conversation turns run through the engine",
			},
		)

		ConversationSize = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lingopulse_conversation_turns",
				Help:    "Distribution of conversation sizes in turns",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		)

		ImportsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lingopulse_imports_total",
				Help: "Total number of chat record imports per format",
			},
			[]string{"format"},
		)

		ImportErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lingopulse_import_errors_total",
				Help: "Total number of failed chat record imports",
			},
			[]string{"format", "reason"},
		)

		HTTPRequestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lingopulse_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"endpoint", "method", "status"},
		)

		HTTPDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lingopulse_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			},
			[]string{"endpoint"},
		)

		WSClientsConnected = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lingopulse_ws_clients_connected",
				Help: "Number of connected WebSocket clients",
			},
		)

		WSMessagesSent = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lingopulse_ws_messages_sent_total",
				Help: "Total number of WebSocket messages broadcast",
			},
		)

		AMQPPublishedMessages = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lingopulse_amqp_published_messages_total",
				Help: "Total number of messages published to AMQP",
			},
			[]string{"queue", "status"},
		)

		AMQPConnectionErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lingopulse_amqp_connection_errors_total",
				Help: "Total number of AMQP connection errors",
			},
			[]string{"type"},
		)

		AMQPReconnectAttempts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lingopulse_amqp_reconnect_attempts_total",
				Help: "Total number of AMQP reconnection attempts",
			},
			[]string{"status"},
		)

		AMQPConnectionStatus = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lingopulse_amqp_connection_status",
				Help: "AMQP connection status (1 = connected, 0 = disconnected)",
			},
		)

		registry.MustRegister(
			AnalysisRequestsTotal,
			AnalysisErrors,
			AnalysisDuration,
			TurnsAnalyzed,
			ConversationSize,
			ImportsTotal,
			ImportErrors,
			HTTPRequestsTotal,
			HTTPDuration,
			WSClientsConnected,
			WSMessagesSent,
			AMQPPublishedMessages,
			AMQPConnectionErrors,
			AMQPReconnectAttempts,
			AMQPConnectionStatus,
		)

		logger.Info("Prometheus metrics initialized")
	})
}

// GetRegistry returns the Prometheus registry, nil before Init.
func GetRegistry() *prometheus.Registry {
	return registry
}

// SetEnabled toggles metric collection.
func SetEnabled(enabled bool) {
	metricsEnabled = enabled
}

// Enabled reports whether metric collection is on.
func Enabled() bool {
	return metricsEnabled
}

// RegisterHandler mounts the metrics endpoint on the given mux.
func RegisterHandler(mux *http.ServeMux) {
	if registry == nil {
		return
	}
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          registry,
	}))
}

// ObserveAnalysis records one computed view and its duration.
func ObserveAnalysis(view string, start time.Time) {
	if !metricsEnabled || AnalysisRequestsTotal == nil {
		return
	}
	AnalysisRequestsTotal.WithLabelValues(view).Inc()
	AnalysisDuration.WithLabelValues(view).Observe(time.Since(start).Seconds())
}

// ObserveConversation records the size of an analyzed conversation.
func ObserveConversation(turns int) {
	if !metricsEnabled || TurnsAnalyzed == nil {
		return
	}
	TurnsAnalyzed.Add(float64(turns))
	ConversationSize.Observe(float64(turns))
}
