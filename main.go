package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lingopulse-server/pkg/analysis"
	"lingopulse-server/pkg/config"
	lphttp "lingopulse-server/pkg/http"
	"lingopulse-server/pkg/importer"
	"lingopulse-server/pkg/messaging"
	"lingopulse-server/pkg/metrics"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

var (
	logger = logrus.New() // Using logrus for structured logging
)

func init() {
	// Set up logger
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logrus.InfoLevel)
}

func main() {
	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)
	logStartupConfig(cfg)

	metrics.Init(logger)
	metrics.SetEnabled(cfg.HTTPEnableMetrics)

	analyzer := analysis.New(nil, analysis.Options{
		MaxKeyPoints:     cfg.MaxKeyPoints,
		MaxTurningPoints: cfg.MaxTurningPoints,
	})
	im := importer.NewImporter(logger)

	// Connect to AMQP if configured; the server runs without it
	var amqpClient *messaging.AMQPClient
	if cfg.AMQPEnabled {
		amqpClient = connectAMQP(cfg)
	}

	if !cfg.HTTPEnabled {
		logger.Warn("HTTP server disabled, nothing to serve")
		return
	}

	server := lphttp.NewServer(logger, &lphttp.Config{
		Port:            cfg.HTTPPort,
		Enabled:         cfg.HTTPEnabled,
		EnableMetrics:   cfg.HTTPEnableMetrics,
		ReadTimeout:     cfg.HTTPReadTimeout,
		WriteTimeout:    cfg.HTTPWriteTimeout,
		ShutdownTimeout: 5 * time.Second,
		TLSEnabled:      cfg.EnableTLS,
		TLSCertFile:     cfg.TLSCertFile,
		TLSKeyFile:      cfg.TLSKeyFile,
	})

	wsHandler := lphttp.NewReportWebSocketHandler(logger)
	wsHandler.Start()
	server.SetReportWebSocketHandler(wsHandler)

	apiHandler := lphttp.NewAnalysisHandler(logger, analyzer, im)
	if len(cfg.DefaultViews) > 0 {
		apiHandler.SetDefaultViews(cfg.DefaultViews)
	}
	apiHandler.SetWebSocketHandler(wsHandler)
	if amqpClient != nil {
		apiHandler.SetPublisher(amqpClient)
		server.SetAMQPClient(amqpClient)
	}
	apiHandler.Register(server)

	server.Start()

	// Graceful shutdown handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Received shutdown signal, cleaning up...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown failed")
	}
	if amqpClient != nil {
		amqpClient.Disconnect()
	}
	logger.Info("Cleanup complete. Shutting down.")
}

func connectAMQP(cfg *config.Configuration) *messaging.AMQPClient {
	client := messaging.NewAMQPClientSimple(logger, cfg.AMQPUrl, cfg.AMQPQueueName)
	if err := client.Connect(); err != nil {
		color.Red("Failed to connect to AMQP server at %s: %v", cfg.AMQPUrl, err)
		logger.WithError(err).Warn("AMQP connection failed, result publishing degraded")
		return client
	}
	color.Green("Successfully connected to AMQP server at %s", cfg.AMQPUrl)
	color.Green("Successfully declared AMQP queue: %s", cfg.AMQPQueueName)
	return client
}

func logStartupConfig(cfg *config.Configuration) {
	logger.Infof("LingoPulse server is starting with the following configuration:")
	logger.Infof("HTTP Port: %d", cfg.HTTPPort)
	logger.Infof("HTTP Enabled: %v", cfg.HTTPEnabled)
	logger.Infof("Metrics Enabled: %v", cfg.HTTPEnableMetrics)
	logger.Infof("TLS Enabled: %v", cfg.EnableTLS)
	if cfg.EnableTLS {
		logger.Infof("TLS Cert File: %s", cfg.TLSCertFile)
		logger.Infof("TLS Key File: %s", cfg.TLSKeyFile)
	}
	logger.Infof("Max Key Points: %d", cfg.MaxKeyPoints)
	logger.Infof("Max Turning Points: %d", cfg.MaxTurningPoints)
	logger.Infof("AMQP Enabled: %v", cfg.AMQPEnabled)
	if cfg.AMQPEnabled {
		logger.Infof("AMQP Queue: %s", cfg.AMQPQueueName)
	}
	logger.Infof("Log Level: %s", cfg.LogLevel.String())
}
