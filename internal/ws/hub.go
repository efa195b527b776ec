package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

const pushWriteTimeout = 5 * time.Second

// Hub tracks which users currently have a live websocket connection. It is a
// cache of reachability, never a source of truth: it starts empty on every
// process restart and a push that finds no handle is simply dropped.
type Hub struct {
	mu    sync.RWMutex
	conns map[int]*client
}

type client struct {
	conn    *websocket.Conn
	info    ConnInfo
	writeMu sync.Mutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[int]*client)}
}

// Register binds the user to a connection. At most one connection per user is
// tracked; a new registration supersedes the old one, whose handle is closed.
func (h *Hub) Register(userID int, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	prev := h.conns[userID]
	h.conns[userID] = &client{conn: conn, info: info}
	h.mu.Unlock()

	if prev != nil && prev.conn != nil && prev.conn != conn {
		prev.conn.Close()
	}
}

// Unregister removes the user's mapping, but only if conn is still the
// registered handle; a superseded connection's cleanup must not evict its
// successor.
func (h *Hub) Unregister(userID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cl, ok := h.conns[userID]; ok && cl.conn == conn {
		delete(h.conns, userID)
	}
}

// IsReachable reports whether the user has a registered connection.
func (h *Hub) IsReachable(userID int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[userID]
	return ok
}

// Push writes an event to the user's connection if one is registered. The
// return value reports whether a handle existed, not whether the remote peer
// received anything: delivery beyond the local write is best-effort. Failed
// writes close and evict the handle.
func (h *Hub) Push(userID int, event string, payload any) bool {
	h.mu.RLock()
	cl, ok := h.conns[userID]
	h.mu.RUnlock()
	if !ok {
		observability.IncPush(event, "dropped")
		return false
	}

	body, err := json.Marshal(models.PushEvent{Type: event, Payload: payload})
	if err != nil {
		log.Printf("push marshal error: %v", err)
		return false
	}

	cl.writeMu.Lock()
	cl.conn.SetWriteDeadline(time.Now().Add(pushWriteTimeout))
	err = cl.conn.WriteMessage(websocket.TextMessage, body)
	cl.writeMu.Unlock()
	if err != nil {
		log.Printf("websocket write error: %v", err)
		cl.conn.Close()
		h.Unregister(userID, cl.conn)
		h.publishWSError(userID, cl.info, err)
		observability.IncPush(event, "failed")
		return true
	}

	observability.IncPush(event, "sent")
	return true
}

func (h *Hub) publishWSError(userID int, info ConnInfo, err error) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id":   userID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.messaging", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent("ws_error")
}
