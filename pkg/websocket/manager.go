package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/anatoly-dev/go-chatpay/pkg/metrics"
	"github.com/anatoly-dev/go-chatpay/pkg/models"
)

// Session is the server-side view of one connected client: an outbound
// sink plus the logical identity bound to the connection.
type Session interface {
	SessionID() string
	Send(event *models.Event) error
	SetIdentity(id string)
	Identity() string
}

// EventHandler receives decoded inbound events and disconnects for the
// sessions of one endpoint (chat or wallet).
type EventHandler interface {
	HandleEvent(session Session, event *models.InboundEvent)
	HandleDisconnect(session Session)
}

type Manager struct {
	clients        map[string]*Client
	mutex          sync.RWMutex
	logger         *zap.Logger
	upgrader       websocket.Upgrader
	pingInterval   time.Duration
	sendBufferSize int
	metrics        *metrics.WebSocketMetrics

	sweepStop chan struct{}
	sweepOnce sync.Once
}

type Client struct {
	ID         string
	Connection *websocket.Conn
	Manager    *Manager
	handler    EventHandler

	send   chan []byte
	closed bool

	LastPongAt time.Time
	Connected  time.Time

	identity string
	mu       sync.Mutex
}

func NewManager(logger *zap.Logger, pingInterval time.Duration, sendBufferSize int) *Manager {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if sendBufferSize <= 0 {
		sendBufferSize = 256
	}

	manager := &Manager{
		clients:        make(map[string]*Client),
		logger:         logger,
		pingInterval:   pingInterval,
		sendBufferSize: sendBufferSize,
		sweepStop:      make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	go manager.livenessSweep()

	return manager
}

func (m *Manager) SetMetrics(metrics *metrics.WebSocketMetrics) {
	m.metrics = metrics
}

func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request, handler EventHandler) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Error("Failed to upgrade to WebSocket", zap.Error(err))
		return
	}

	now := time.Now()
	client := &Client{
		ID:         uuid.New().String(),
		Connection: conn,
		Manager:    m,
		handler:    handler,
		send:       make(chan []byte, m.sendBufferSize),
		LastPongAt: now,
		Connected:  now,
	}

	m.mutex.Lock()
	m.clients[client.ID] = client

	if m.metrics != nil {
		m.metrics.ActiveConnections.Set(float64(len(m.clients)))
		m.metrics.ConnectionsTotal.Inc()
	}

	m.mutex.Unlock()

	go client.writePump()
	go client.readPump()
}

// livenessSweep retires clients whose last pong predates two ping
// intervals. Closing the connection makes readPump exit, which runs
// the normal disconnect path.
func (m *Manager) livenessSweep() {
	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.sweepStop:
			return
		case <-ticker.C:
			deadline := time.Now().Add(-2 * m.pingInterval)

			m.mutex.RLock()
			var stale []*Client
			for _, client := range m.clients {
				client.mu.Lock()
				unresponsive := client.LastPongAt.Before(deadline)
				client.mu.Unlock()
				if unresponsive {
					stale = append(stale, client)
				}
			}
			m.mutex.RUnlock()

			for _, client := range stale {
				m.logger.Info("Closing unresponsive connection",
					zap.String("clientID", client.ID),
					zap.String("identity", client.Identity()))
				client.Connection.Close()
			}
		}
	}
}

func (m *Manager) removeClient(client *Client) {
	m.mutex.Lock()
	_, known := m.clients[client.ID]
	delete(m.clients, client.ID)

	if m.metrics != nil && known {
		m.metrics.ActiveConnections.Set(float64(len(m.clients)))
		m.metrics.ConnectionDuration.Observe(time.Since(client.Connected).Seconds())
	}
	m.mutex.Unlock()

	if !known {
		return
	}

	client.mu.Lock()
	client.closed = true
	close(client.send)
	client.mu.Unlock()

	client.handler.HandleDisconnect(client)
}

func (m *Manager) ClientCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients)
}

func (m *Manager) Close(ctx context.Context) error {
	m.logger.Info("Closing WebSocket manager")

	m.sweepOnce.Do(func() { close(m.sweepStop) })

	m.mutex.Lock()
	clients := make([]*Client, 0, len(m.clients))
	for _, client := range m.clients {
		clients = append(clients, client)
	}
	m.mutex.Unlock()

	for _, client := range clients {
		client.Connection.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "Server shutting down"))
		client.Connection.Close()
	}

	m.logger.Info("WebSocket manager closed")
	return nil
}

// SessionID implements Session.
func (c *Client) SessionID() string {
	return c.ID
}

// SetIdentity records which logical identity authenticated on this
// connection, for disconnect handling.
func (c *Client) SetIdentity(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = id
}

func (c *Client) Identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Send implements registry.Sink. It never blocks: a saturated buffer
// or a closed connection drops the event with an error.
func (c *Client) Send(event *models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("connection closed")
	}

	select {
	case c.send <- data:
		if c.Manager.metrics != nil {
			c.Manager.metrics.MessagesSent.WithLabelValues(string(event.Type)).Inc()
		}
		return nil
	default:
		if c.Manager.metrics != nil {
			c.Manager.metrics.SendBufferOverflow.Inc()
		}
		return errors.New("send buffer full")
	}
}

func (c *Client) readPump() {
	defer func() {
		c.Manager.removeClient(c)
		c.Connection.Close()
	}()

	readDeadline := 2 * c.Manager.pingInterval
	c.Connection.SetReadLimit(4096)
	c.Connection.SetReadDeadline(time.Now().Add(readDeadline))
	c.Connection.SetPongHandler(func(string) error {
		c.mu.Lock()
		c.LastPongAt = time.Now()
		c.mu.Unlock()
		c.Connection.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, data, err := c.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.Manager.logger.Info("WebSocket closed unexpectedly",
					zap.Error(err),
					zap.String("clientID", c.ID))

				if c.Manager.metrics != nil {
					c.Manager.metrics.UnexpectedCloseCount.Inc()
				}
			}
			break
		}

		if c.Manager.metrics != nil {
			c.Manager.metrics.BytesReceived.Add(float64(len(data)))
		}

		var event models.InboundEvent
		if err := json.Unmarshal(data, &event); err != nil || event.Type == "" {
			// Malformed payloads are dropped; the connection stays open.
			c.Manager.logger.Warn("Dropping malformed inbound event",
				zap.Error(err),
				zap.String("clientID", c.ID),
				zap.ByteString("payload", data))

			if c.Manager.metrics != nil {
				c.Manager.metrics.MalformedEventCount.Inc()
			}
			continue
		}

		if c.Manager.metrics != nil {
			c.Manager.metrics.MessagesReceived.WithLabelValues(string(event.Type)).Inc()
		}

		c.handler.HandleEvent(c, &event)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.Manager.pingInterval)
	defer func() {
		ticker.Stop()
		c.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.Connection.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Connection.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}

			w.Write(message)

			if c.Manager.metrics != nil {
				c.Manager.metrics.BytesSent.Add(float64(len(message)))
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Connection.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
