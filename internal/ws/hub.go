package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

const wsKind = "notifications"

// Fanout delivers a payload for a user to every service instance.
type Fanout interface {
	Publish(ctx context.Context, userID int, payload []byte) error
}

// Hub tracks live notification sockets per user.
type Hub struct {
	clients map[int]map[*websocket.Conn]ConnInfo
	mu      sync.RWMutex
	writeMu sync.Mutex
	fanout  Fanout
	logger  *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[int]map[*websocket.Conn]ConnInfo),
		logger:  logger.Named("ws"),
	}
}

// SetFanout routes notifications through other instances as well. Without a
// fanout the hub only delivers to its own connections.
func (h *Hub) SetFanout(f Fanout) {
	h.fanout = f
}

// AddClient registers a websocket connection for a user.
func (h *Hub) AddClient(userID int, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[userID]; !ok {
		h.clients[userID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.clients[userID][conn] = info
}

// RemoveClient removes a websocket connection.
func (h *Hub) RemoveClient(userID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.clients[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.clients, userID)
		}
	}
}

// Connections reports how many sockets a user has open on this instance.
func (h *Hub) Connections(userID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Notify pushes a stored notification to its recipient.
func (h *Hub) Notify(ctx context.Context, n models.Notification) {
	payload, err := json.Marshal(models.NotificationEvent{Type: "notification", Notification: &n})
	if err != nil {
		h.logger.Error("failed to encode notification", zap.Error(err))
		return
	}

	if h.fanout != nil {
		err := h.fanout.Publish(ctx, n.RecipientID, payload)
		if err == nil {
			return
		}
		h.logger.Warn("notification fanout failed, delivering locally", zap.Error(err))
	}
	h.SendToUser(n.RecipientID, payload)
}

// SendToUser writes payload to every local connection of the user.
func (h *Hub) SendToUser(userID int, payload []byte) {
	h.mu.RLock()
	targets := make(map[*websocket.Conn]ConnInfo, len(h.clients[userID]))
	for conn, info := range h.clients[userID] {
		targets[conn] = info
	}
	h.mu.RUnlock()

	for conn, info := range targets {
		if conn == nil {
			continue
		}
		h.writeMu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, payload)
		h.writeMu.Unlock()
		if err != nil {
			h.logger.Warn("websocket write error", zap.Int("user_id", userID), zap.Error(err))
			conn.Close()
			h.RemoveClient(userID, conn)
			publishWSEvent(context.Background(), "ws_error", info, err.Error())
		}
	}
}

func publishWSEvent(ctx context.Context, event string, info ConnInfo, reason string) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        wsKind,
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
			"trace_id":    info.TraceID,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	_ = observability.PublishEvent(ctx, "ws_events.notifications", observability.NewEnvelope("ws_events", event, info.RequestID, payload))
	observability.IncWSEvent(wsKind, event)
}
