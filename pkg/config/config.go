// Package config loads application configuration from environment
// variables, with an optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Configuration holds everything the server needs to run.
type Configuration struct {
	// HTTP server configuration
	HTTPPort          int
	HTTPEnabled       bool
	HTTPEnableMetrics bool
	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	TLSCertFile       string
	TLSKeyFile        string
	EnableTLS         bool

	// Analysis configuration
	MaxKeyPoints     int
	MaxTurningPoints int
	DefaultViews     []string

	// AMQP configuration
	AMQPUrl       string
	AMQPQueueName string
	AMQPEnabled   bool

	// Logging
	LogLevel logrus.Level
}

// Load builds the configuration from environment variables. A missing .env
// file is not an error; explicit environment always wins.
func Load(logger *logrus.Logger) (*Configuration, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables only")
	}

	config := &Configuration{}

	config.HTTPPort = intEnv("HTTP_PORT", 8080)
	config.HTTPEnabled = os.Getenv("HTTP_ENABLED") != "false"
	config.HTTPEnableMetrics = os.Getenv("HTTP_ENABLE_METRICS") != "false"
	config.HTTPReadTimeout = durationEnv("HTTP_READ_TIMEOUT_SECONDS", 10*time.Second)
	config.HTTPWriteTimeout = durationEnv("HTTP_WRITE_TIMEOUT_SECONDS", 30*time.Second)

	config.TLSCertFile = os.Getenv("TLS_CERT_FILE")
	config.TLSKeyFile = os.Getenv("TLS_KEY_FILE")
	config.EnableTLS = os.Getenv("ENABLE_TLS") == "true"
	if config.EnableTLS && (config.TLSCertFile == "" || config.TLSKeyFile == "") {
		logger.Warn("ENABLE_TLS set without TLS_CERT_FILE and TLS_KEY_FILE, disabling TLS")
		config.EnableTLS = false
	}

	config.MaxKeyPoints = intEnv("MAX_KEY_POINTS", 15)
	config.MaxTurningPoints = intEnv("MAX_TURNING_POINTS", 8)

	viewsEnv := os.Getenv("DEFAULT_VIEWS")
	if viewsEnv != "" {
		config.DefaultViews = strings.Split(viewsEnv, ",")
	}

	config.AMQPUrl = os.Getenv("AMQP_URL")
	config.AMQPQueueName = os.Getenv("AMQP_QUEUE_NAME")
	config.AMQPEnabled = config.AMQPUrl != "" && config.AMQPQueueName != ""
	if !config.AMQPEnabled {
		logger.Info("AMQP_URL or AMQP_QUEUE_NAME not set, result publishing disabled")
	}

	levelEnv := os.Getenv("LOG_LEVEL")
	if levelEnv == "" {
		config.LogLevel = logrus.InfoLevel
	} else {
		level, err := logrus.ParseLevel(levelEnv)
		if err != nil {
			logger.WithField("log_level", levelEnv).Warn("Invalid LOG_LEVEL, defaulting to info")
			level = logrus.InfoLevel
		}
		config.LogLevel = level
	}

	return config, nil
}

func intEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
