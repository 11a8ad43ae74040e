package handlers

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/anatoly-dev/go-chatpay/pkg/websocket"
)

// WebSocketHandler upgrades HTTP requests for one endpoint (chat or
// wallet) and hands the connection to the endpoint's event handler.
type WebSocketHandler struct {
	manager *websocket.Manager
	events  websocket.EventHandler
	logger  *zap.Logger
}

func NewWebSocketHandler(manager *websocket.Manager, events websocket.EventHandler, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		manager: manager,
		events:  events,
		logger:  logger,
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("WebSocket connection request", zap.String("remote", r.RemoteAddr))
	h.manager.HandleConnection(w, r, h.events)
}

func (h *WebSocketHandler) CloseConnections(ctx context.Context) error {
	h.logger.Info("Closing all WebSocket connections")
	return h.manager.Close(ctx)
}

type HealthCheckHandler struct {
	manager *websocket.Manager
	logger  *zap.Logger
}

func NewHealthCheckHandler(manager *websocket.Manager, logger *zap.Logger) *HealthCheckHandler {
	return &HealthCheckHandler{
		manager: manager,
		logger:  logger,
	}
}

func (h *HealthCheckHandler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	clientCount := h.manager.ClientCount()
	h.logger.Debug("Health check", zap.Int("clientCount", clientCount))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(fmt.Sprintf(`{"status":"ok","client_count":%d}`, clientCount)))
}
