// Package messaging publishes finished analysis reports to an AMQP broker
// so downstream consumers (report exporters, dashboards) can pick them up.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"lingopulse-server/pkg/metrics"
)

// AnalysisMessage is the wire format for a published analysis result.
type AnalysisMessage struct {
	ConversationID string                 `json:"conversation_id"`
	Title          string                 `json:"title,omitempty"`
	Report         json.RawMessage        `json:"report"`
	Timestamp      time.Time              `json:"timestamp"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	DeadLetter     bool                   `json:"dead_letter,omitempty"`
}

// AMQPConfig holds AMQP client configuration.
type AMQPConfig struct {
	URL          string
	QueueName    string
	ExchangeName string
	RoutingKey   string
	Durable      bool
	AutoDelete   bool
}

// AMQPClient handles the AMQP connection and message publishing.
type AMQPClient struct {
	logger    *logrus.Logger
	config    AMQPConfig
	conn      *amqp.Connection
	channel   *amqp.Channel
	connected bool
	connMutex sync.RWMutex
	stopChan  chan struct{}
}

// NewAMQPClient creates a new AMQP client.
func NewAMQPClient(logger *logrus.Logger, config AMQPConfig) *AMQPClient {
	if config.RoutingKey == "" {
		config.RoutingKey = config.QueueName
	}
	config.Durable = true
	config.AutoDelete = false

	return &AMQPClient{
		logger:   logger,
		config:   config,
		stopChan: make(chan struct{}),
	}
}

// NewAMQPClientSimple creates a client from just a URL and queue name.
func NewAMQPClientSimple(logger *logrus.Logger, url, queueName string) *AMQPClient {
	return NewAMQPClient(logger, AMQPConfig{
		URL:        url,
		QueueName:  queueName,
		RoutingKey: queueName,
	})
}

// Connect establishes a connection to the AMQP server.
func (c *AMQPClient) Connect() error {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if c.connected {
		return nil
	}

	if c.config.URL == "" || c.config.QueueName == "" {
		c.logger.Warn("AMQP_URL or AMQP_QUEUE_NAME not set, AMQP functionality will be disabled")
		return fmt.Errorf("AMQP URL or queue name not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connChan := make(chan struct {
		conn *amqp.Connection
		err  error
	}, 1)

	go func() {
		conn, err := amqp.Dial(c.config.URL)
		select {
		case <-ctx.Done():
			if conn != nil {
				conn.Close()
			}
		case connChan <- struct {
			conn *amqp.Connection
			err  error
		}{conn, err}:
		}
	}()

	var conn *amqp.Connection
	var err error
	select {
	case result := <-connChan:
		conn = result.conn
		err = result.err
	case <-ctx.Done():
		c.recordConnectionError("timeout")
		return fmt.Errorf("connection to AMQP server timed out after 5 seconds")
	}
	if err != nil {
		c.recordConnectionError("dial")
		return fmt.Errorf("failed to connect to AMQP server: %w", err)
	}
	c.conn = conn

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		c.recordConnectionError("channel")
		return fmt.Errorf("failed to open AMQP channel: %w", err)
	}
	c.channel = channel

	_, err = channel.QueueDeclare(
		c.config.QueueName,
		c.config.Durable,
		c.config.AutoDelete,
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		c.recordConnectionError("queue_declare")
		return fmt.Errorf("failed to declare AMQP queue: %w", err)
	}

	if err := channel.Qos(10, 0, false); err != nil {
		c.logger.WithError(err).Warn("Failed to set QoS on AMQP channel, continuing anyway")
	}

	c.connected = true
	if metrics.AMQPConnectionStatus != nil {
		metrics.AMQPConnectionStatus.Set(1)
	}
	c.logger.WithFields(logrus.Fields{
		"url":   c.config.URL,
		"queue": c.config.QueueName,
	}).Info("Connected to AMQP server")

	c.stopChan = make(chan struct{})
	go c.monitorConnection()

	return nil
}

// Disconnect closes the AMQP connection.
func (c *AMQPClient) Disconnect() {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if !c.connected {
		return
	}

	close(c.stopChan)

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}

	c.connected = false
	if metrics.AMQPConnectionStatus != nil {
		metrics.AMQPConnectionStatus.Set(0)
	}
	c.logger.Info("Disconnected from AMQP server")
}

// IsConnected returns the connection status.
func (c *AMQPClient) IsConnected() bool {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()
	return c.connected
}

// PublishAnalysis publishes a finished analysis report to the queue. The
// report is any JSON-marshalable result object.
func (c *AMQPClient) PublishAnalysis(conversationID, title string, report interface{}, metadata map[string]interface{}) error {
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithFields(logrus.Fields{
				"conversation_id": conversationID,
				"recover":         r,
			}).Error("Recovered from panic in AMQP PublishAnalysis")
		}
	}()

	if !c.IsConnected() {
		return fmt.Errorf("not connected to AMQP server")
	}

	reportBytes, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis report: %w", err)
	}

	message := AnalysisMessage{
		ConversationID: conversationID,
		Title:          title,
		Report:         reportBytes,
		Timestamp:      time.Now(),
		Metadata:       metadata,
	}
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	publishChan := make(chan error, 1)
	go func() {
		c.connMutex.RLock()
		defer c.connMutex.RUnlock()

		if !c.connected || c.channel == nil {
			select {
			case <-ctx.Done():
			case publishChan <- fmt.Errorf("lost AMQP connection before publishing"):
			}
			return
		}

		err := c.channel.Publish(
			c.config.ExchangeName,
			c.config.RoutingKey,
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				Body:         body,
				DeliveryMode: amqp.Persistent,
				Timestamp:    time.Now(),
				Expiration:   "43200000", // 12 hours
			},
		)

		select {
		case <-ctx.Done():
		case publishChan <- err:
		}
	}()

	select {
	case err := <-publishChan:
		if err != nil {
			c.recordPublish("error")
			return fmt.Errorf("failed to publish analysis to AMQP: %w", err)
		}
	case <-ctx.Done():
		c.recordPublish("timeout")
		return fmt.Errorf("publishing to AMQP timed out after 200ms")
	}

	c.recordPublish("success")
	c.logger.WithField("conversation_id", conversationID).Debug("Successfully published analysis to AMQP")
	return nil
}

// PublishToDeadLetterQueue publishes a failed message to the dead letter
// queue for later inspection.
func (c *AMQPClient) PublishToDeadLetterQueue(conversationID string, report json.RawMessage, metadata map[string]interface{}) error {
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithFields(logrus.Fields{
				"conversation_id": conversationID,
				"recover":         r,
			}).Error("Recovered from panic in AMQP PublishToDeadLetterQueue")
		}
	}()

	if !c.IsConnected() {
		return fmt.Errorf("AMQP client is not connected")
	}

	c.connMutex.RLock()
	channel := c.channel
	c.connMutex.RUnlock()

	if channel == nil {
		return fmt.Errorf("AMQP channel is not available")
	}

	message := AnalysisMessage{
		ConversationID: conversationID,
		Report:         report,
		Timestamp:      time.Now(),
		Metadata:       metadata,
		DeadLetter:     true,
	}
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter message: %w", err)
	}

	deadLetterQueueName := c.config.QueueName + ".dead_letter"

	_, err = channel.QueueDeclare(
		deadLetterQueueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare dead letter queue: %w", err)
	}

	err = channel.Publish(
		c.config.ExchangeName,
		deadLetterQueueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Headers: amqp.Table{
				"x-dead-letter-reason": "publish-failed",
				"x-conversation-id":    conversationID,
			},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to dead letter queue: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"conversation_id":   conversationID,
		"dead_letter_queue": deadLetterQueueName,
	}).Info("Message published to dead letter queue")

	return nil
}

func (c *AMQPClient) recordPublish(status string) {
	if metrics.AMQPPublishedMessages != nil {
		metrics.AMQPPublishedMessages.WithLabelValues(c.config.QueueName, status).Inc()
	}
}

func (c *AMQPClient) recordConnectionError(kind string) {
	if metrics.AMQPConnectionErrors != nil {
		metrics.AMQPConnectionErrors.WithLabelValues(kind).Inc()
	}
}

// monitorConnection watches for the connection closing and reconnects with
// exponential backoff.
func (c *AMQPClient) monitorConnection() {
	closeChan := make(chan *amqp.Error)

	c.connMutex.RLock()
	if c.conn != nil {
		c.conn.NotifyClose(closeChan)
	}
	c.connMutex.RUnlock()

	for {
		select {
		case <-c.stopChan:
			return
		case closeErr := <-closeChan:
			c.connMutex.Lock()
			c.connected = false
			c.connMutex.Unlock()
			if metrics.AMQPConnectionStatus != nil {
				metrics.AMQPConnectionStatus.Set(0)
			}

			c.logger.WithError(closeErr).Warn("AMQP connection closed, attempting to reconnect")

			// A successful Connect starts a fresh monitor watching the new
			// connection, so this goroutine exits either way.
			for attempt := 1; attempt <= 10; attempt++ {
				c.logger.WithField("attempt", attempt).Info("Reconnecting to AMQP server")

				err := c.Connect()
				if err == nil {
					if metrics.AMQPReconnectAttempts != nil {
						metrics.AMQPReconnectAttempts.WithLabelValues("success").Inc()
					}
					c.logger.Info("Successfully reconnected to AMQP server")
					return
				}

				if metrics.AMQPReconnectAttempts != nil {
					metrics.AMQPReconnectAttempts.WithLabelValues("failure").Inc()
				}
				c.logger.WithError(err).WithField("attempt", attempt).Error("Failed to reconnect to AMQP server")

				backoff := time.Duration(1<<uint(attempt-1)) * time.Second
				if backoff > 30*time.Second {
					backoff = 30 * time.Second
				}
				time.Sleep(backoff)
			}
			return
		}
	}
}
