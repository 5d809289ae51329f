package http

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"lingopulse-server/pkg/analysis"
	"lingopulse-server/pkg/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// ReportWebSocketHandler handles WebSocket connections for real-time
// analysis report streaming
type ReportWebSocketHandler struct {
	logger       *logrus.Logger
	upgrader     websocket.Upgrader
	clients      map[*ReportClient]bool
	clientsMu    sync.RWMutex
	register     chan *ReportClient
	unregister   chan *ReportClient
	broadcast    chan *ReportMessage
	pingInterval time.Duration // Configurable ping interval for testing
}

// ReportClient represents a connected WebSocket client
type ReportClient struct {
	conn           *websocket.Conn
	send           chan []byte
	handler        *ReportWebSocketHandler
	conversationID string // Optional: filter by specific conversation
	sessionID      string
	mu             sync.RWMutex
}

// ReportMessage represents a message to broadcast
type ReportMessage struct {
	Type           string           `json:"type"`
	ConversationID string           `json:"conversation_id,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
	Report         *analysis.Report `json:"report,omitempty"`
	Event          interface{}      `json:"event,omitempty"`
}

// NewReportWebSocketHandler creates a new report WebSocket handler
func NewReportWebSocketHandler(logger *logrus.Logger) *ReportWebSocketHandler {
	return &ReportWebSocketHandler{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return isSameOrigin(r)
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients:      make(map[*ReportClient]bool),
		register:     make(chan *ReportClient),
		unregister:   make(chan *ReportClient),
		broadcast:    make(chan *ReportMessage, 256),
		pingInterval: 54 * time.Second,
	}
}

// isSameOrigin accepts requests with no Origin header (non-browser clients)
// or an Origin whose host matches the request host.
func isSameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// Start begins the WebSocket handler's event loop
func (h *ReportWebSocketHandler) Start() {
	go h.run()
}

// run manages client connections and message broadcasting
func (h *ReportWebSocketHandler) run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			h.clientsMu.Unlock()
			if metrics.WSClientsConnected != nil {
				metrics.WSClientsConnected.Inc()
			}
			client.mu.RLock()
			conversationID := client.conversationID
			client.mu.RUnlock()
			h.logger.WithFields(logrus.Fields{
				"session_id":      client.sessionID,
				"conversation_id": conversationID,
			}).Debug("Report WebSocket client registered")

		case client := <-h.unregister:
			h.cleanupClients([]*ReportClient{client})

		case message := <-h.broadcast:
			stale := h.broadcastMessage(message)
			if len(stale) > 0 {
				h.cleanupClients(stale)
			}

		case <-ticker.C:
			stale := h.sendPingToAll()
			if len(stale) > 0 {
				h.cleanupClients(stale)
			}
		}
	}
}

// broadcastMessage sends a message to all appropriate clients
func (h *ReportWebSocketHandler) broadcastMessage(message *ReportMessage) []*ReportClient {
	if message == nil {
		return nil
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal report message")
		return nil
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	var stale []*ReportClient
	for client := range h.clients {
		client.mu.RLock()
		conversationID := client.conversationID
		client.mu.RUnlock()

		// Filter by conversation ID if client has specified one
		if conversationID != "" && conversationID != message.ConversationID {
			continue
		}

		select {
		case client.send <- data:
			if metrics.WSMessagesSent != nil {
				metrics.WSMessagesSent.Inc()
			}
		default:
			stale = append(stale, client)
		}
	}

	return stale
}

// sendPingToAll sends a ping message to all connected clients
func (h *ReportWebSocketHandler) sendPingToAll() []*ReportClient {
	ping := &ReportMessage{
		Type:      "ping",
		Timestamp: time.Now(),
	}

	data, _ := json.Marshal(ping)

	h.clientsMu.RLock()
	clients := make([]*ReportClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clientsMu.RUnlock()

	var stale []*ReportClient
	for _, client := range clients {
		select {
		case client.send <- data:
		default:
			stale = append(stale, client)
		}
	}

	return stale
}

// cleanupClients removes clients and closes their channels
func (h *ReportWebSocketHandler) cleanupClients(clients []*ReportClient) {
	if len(clients) == 0 {
		return
	}

	h.clientsMu.Lock()
	for _, client := range clients {
		if _, ok := h.clients[client]; ok {
			delete(h.clients, client)
			close(client.send)
			if metrics.WSClientsConnected != nil {
				metrics.WSClientsConnected.Dec()
			}
			h.logger.WithField("session_id", client.sessionID).Debug("Report WebSocket client unregistered")
		}
	}
	h.clientsMu.Unlock()
}

// ServeHTTP handles WebSocket upgrade requests
func (h *ReportWebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade to WebSocket")
		return
	}

	// Extract conversation ID filter from query params
	conversationID := r.URL.Query().Get("conversation_id")
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	client := &ReportClient{
		conn:           conn,
		send:           make(chan []byte, 256),
		handler:        h,
		conversationID: conversationID,
		sessionID:      sessionID,
	}

	h.register <- client

	// Send welcome message
	welcome := &ReportMessage{
		Type:      "connected",
		Timestamp: time.Now(),
		Event: map[string]interface{}{
			"session_id": sessionID,
			"version":    "1.0",
			"views":      []string{"topics", "sentiment", "keypoints", "intents", "structure", "pulse"},
		},
	}
	if data, err := json.Marshal(welcome); err == nil {
		client.send <- data
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}

// BroadcastReport sends a completed analysis report to all connected clients
func (h *ReportWebSocketHandler) BroadcastReport(conversationID string, report *analysis.Report) {
	if report == nil {
		return
	}

	message := &ReportMessage{
		Type:           "report",
		ConversationID: conversationID,
		Timestamp:      time.Now(),
		Report:         report,
	}

	select {
	case h.broadcast <- message:
	default:
		// Broadcast channel full, log and drop
		h.logger.Warn("Report broadcast channel full, dropping message")
	}
}

// BroadcastEvent sends a custom event to all connected clients
func (h *ReportWebSocketHandler) BroadcastEvent(conversationID string, eventType string, event interface{}) {
	message := &ReportMessage{
		Type:           eventType,
		ConversationID: conversationID,
		Timestamp:      time.Now(),
		Event:          event,
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("Report broadcast channel full, dropping event")
	}
}

// GetConnectedClients returns the number of connected clients
func (h *ReportWebSocketHandler) GetConnectedClients() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Client methods

// readPump handles incoming messages from the client
func (c *ReportClient) readPump() {
	defer func() {
		c.handler.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.handler.logger.WithError(err).Debug("WebSocket read error")
			}
			break
		}

		// Handle client messages (subscriptions, filters, etc.)
		c.handleMessage(message)
	}
}

// writePump handles sending messages to the client
func (c *ReportClient) writePump() {
	ticker := time.NewTicker(c.handler.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Channel closed
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes incoming client messages
func (c *ReportClient) handleMessage(message []byte) {
	var msg map[string]interface{}
	if err := json.Unmarshal(message, &msg); err != nil {
		c.handler.logger.WithError(err).Debug("Failed to parse client message")
		return
	}

	msgType, _ := msg["type"].(string)

	switch msgType {
	case "subscribe":
		// Handle subscription to a specific conversation
		if conversationID, ok := msg["conversation_id"].(string); ok {
			c.mu.Lock()
			c.conversationID = conversationID
			c.mu.Unlock()
			c.handler.logger.WithFields(logrus.Fields{
				"session_id":      c.sessionID,
				"conversation_id": conversationID,
			}).Debug("Client subscribed to conversation")
		}

	case "unsubscribe":
		// Clear conversation filter
		c.mu.Lock()
		c.conversationID = ""
		c.mu.Unlock()
		c.handler.logger.WithField("session_id", c.sessionID).Debug("Client unsubscribed from conversation")

	case "ping":
		// Respond with pong
		pong := map[string]interface{}{
			"type":      "pong",
			"timestamp": time.Now(),
		}
		if data, err := json.Marshal(pong); err == nil {
			select {
			case c.send <- data:
			default:
			}
		}

	default:
		c.handler.logger.WithField("type", msgType).Debug("Unknown message type from client")
	}
}
