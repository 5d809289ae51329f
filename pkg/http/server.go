// Package http exposes the analysis engine over HTTP: the analysis and
// import endpoints, health and status probes, the Prometheus metrics
// endpoint and the report WebSocket stream.
package http

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"lingopulse-server/pkg/errors"
	"lingopulse-server/pkg/metrics"
	"lingopulse-server/pkg/version"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server represents the HTTP server for the analysis API, health checks and
// metrics.
type Server struct {
	config             *Config
	logger             *logrus.Logger
	httpServer         *http.Server
	mux                *http.ServeMux
	startTime          time.Time
	additionalHandlers map[string]http.HandlerFunc
	reportWSHandler    *ReportWebSocketHandler
	amqpClient         ConnectionReporter
}

// ConnectionReporter is implemented by the AMQP client so the status
// endpoint can report broker connectivity without importing the messaging
// package.
type ConnectionReporter interface {
	IsConnected() bool
}

// NewServer creates a new HTTP server instance
func NewServer(logger *logrus.Logger, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	server := &Server{
		config:             config,
		logger:             logger,
		startTime:          time.Now(),
		additionalHandlers: make(map[string]http.HandlerFunc),
	}

	mux := http.NewServeMux()
	server.mux = mux

	// Register standard endpoints
	mux.HandleFunc("/health", server.healthHandler)
	mux.HandleFunc("/health/live", server.livenessHandler)
	mux.HandleFunc("/health/ready", server.readinessHandler)
	mux.HandleFunc("/status", server.statusHandler)

	if config.EnableMetrics {
		if registry := metrics.GetRegistry(); registry != nil {
			promHandler := promhttp.HandlerFor(
				registry,
				promhttp.HandlerOpts{
					EnableOpenMetrics: true,
					Registry:          registry,
				},
			)
			mux.Handle("/metrics", promHandler)
			logger.Info("Prometheus metrics endpoint enabled at /metrics")
		} else {
			logger.Warn("Metrics registry not initialized, /metrics disabled")
		}
	} else {
		logger.Info("Metrics endpoint disabled")
	}

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      withRequestMetrics(mux),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return server
}

// withRequestMetrics stamps the Server header and counts and times every
// request by endpoint.
func withRequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		w.Header().Set("Server", version.ServerHeader())
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		if metrics.HTTPRequestsTotal != nil {
			metrics.HTTPRequestsTotal.WithLabelValues(r.URL.Path, r.Method, fmt.Sprintf("%d", recorder.status)).Inc()
		}
		if metrics.HTTPDuration != nil {
			metrics.HTTPDuration.WithLabelValues(r.URL.Path).Observe(time.Since(start).Seconds())
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack passes control of the connection through to the wrapped writer so
// WebSocket upgrades keep working behind the metrics middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("underlying ResponseWriter does not support hijacking")
	}
	return hj.Hijack()
}

// RegisterHandler adds a custom handler to the server
func (s *Server) RegisterHandler(path string, handler http.HandlerFunc) {
	s.additionalHandlers[path] = handler

	if s.mux != nil {
		s.mux.HandleFunc(path, handler)
	}

	s.logger.WithField("path", path).Info("Registered custom HTTP handler")
}

// SetReportWebSocketHandler registers the report streaming WebSocket
// endpoint.
func (s *Server) SetReportWebSocketHandler(handler *ReportWebSocketHandler) {
	s.reportWSHandler = handler

	if s.mux != nil {
		s.mux.HandleFunc("/ws/analytics", handler.ServeHTTP)
		s.logger.Info("Report WebSocket endpoint registered at /ws/analytics")
	}
}

// GetReportWebSocketHandler returns the report WebSocket handler
func (s *Server) GetReportWebSocketHandler() *ReportWebSocketHandler {
	return s.reportWSHandler
}

// SetAMQPClient sets the AMQP client reference for status reporting
func (s *Server) SetAMQPClient(client ConnectionReporter) {
	s.amqpClient = client
}

// Start starts the HTTP server in a goroutine
func (s *Server) Start() {
	s.logger.WithField("port", s.config.Port).Info("Starting HTTP server")

	go func() {
		s.logger.Infof("HTTP server listening on port %d", s.config.Port)
		if s.config.TLSEnabled {
			if s.config.TLSCertFile == "" || s.config.TLSKeyFile == "" {
				s.logger.Error("TLS is enabled but certificate or key path is missing; refusing to start HTTP server")
				return
			}

			// Enforce modern TLS settings
			s.httpServer.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}

			if err := s.httpServer.ListenAndServeTLS(s.config.TLSCertFile, s.config.TLSKeyFile); err != nil && err != http.ErrServerClosed {
				s.logger.WithError(err).Error("HTTP TLS server failed")
			}
			return
		}

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("HTTP server failed")
		}
	}()

	// Verify that we can actually bind to the port
	go func() {
		time.Sleep(500 * time.Millisecond)
		conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", s.config.Port), 2*time.Second)
		if err != nil {
			s.logger.WithError(err).Error("Could not connect to HTTP server")
		} else {
			s.logger.Info("HTTP server is running correctly")
			conn.Close()
		}
	}()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}

// healthHandler reports overall health with per-component detail.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{
		"http": "healthy",
	}
	if s.amqpClient != nil {
		if s.amqpClient.IsConnected() {
			components["amqp"] = "healthy"
		} else {
			components["amqp"] = "disconnected"
		}
	}
	if s.reportWSHandler != nil {
		components["websocket"] = "healthy"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "healthy",
		"uptime":     time.Since(s.startTime).String(),
		"components": components,
	})
}

// livenessHandler reports that the process is alive.
func (s *Server) livenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "alive"})
}

// readinessHandler reports that the server can accept analysis requests.
// AMQP is optional, so a disconnected broker does not mark the server
// unready.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ready"})
}

// statusHandler handles the /status endpoint
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	s.logger.WithField("endpoint", "/status").Debug("Status endpoint accessed")

	status := map[string]interface{}{
		"status":     "ok",
		"version":    version.Version,
		"uptime":     time.Since(s.startTime).String(),
		"started_at": s.startTime.Format(time.RFC3339),
	}
	if s.amqpClient != nil {
		status["amqp_connected"] = s.amqpClient.IsConnected()
	}
	if s.reportWSHandler != nil {
		status["ws_clients"] = s.reportWSHandler.GetConnectedClients()
	}

	writeJSON(w, http.StatusOK, status)
}

// ErrorResponse sends a standardized error response
func (s *Server) ErrorResponse(w http.ResponseWriter, err error) {
	errors.WriteError(w, err)
	s.logger.WithError(err).Warn("HTTP error response sent")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
