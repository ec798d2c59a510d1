package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Flow event types broadcast to connected editors.
const (
	FlowCreated = "flow.created"
	FlowUpdated = "flow.updated"
	FlowDeleted = "flow.deleted"
)

// FlowEvent notifies connected editors that the stored flow list changed.
type FlowEvent struct {
	Type      string    `json:"type"`
	FlowID    string    `json:"flow_id"`
	Name      string    `json:"name,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// FlowEventHub manages WebSocket connections for real-time flow change
// notifications. Slow or broken connections are dropped rather than blocking
// the publisher.
type FlowEventHub struct {
	upgrader websocket.Upgrader

	mu          sync.RWMutex
	connections map[*websocket.Conn]bool
	closed      bool

	logger *zap.Logger
}

// NewFlowEventHub creates a new hub.
func NewFlowEventHub(logger *zap.Logger) *FlowEventHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FlowEventHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// CORS policy is enforced by the middleware; the websocket
			// handshake accepts the same origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		connections: make(map[*websocket.Conn]bool),
		logger:      logger,
	}
}

// HandleConnection upgrades the request and keeps the connection registered
// until the peer goes away.
func (h *FlowEventHub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.connections[conn] = true
	h.mu.Unlock()

	// Drain the connection; clients only listen, but control frames and
	// eventual closes arrive through reads.
	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Publish sends an event to every connected editor.
func (h *FlowEventHub) Publish(event FlowEvent) {
	event.Timestamp = time.Now().UTC()

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.connections))
	for conn := range h.connections {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(event); err != nil {
			h.logger.Debug("dropping websocket connection", zap.Error(err))
			h.remove(conn)
		}
	}
}

// Close disconnects every client and rejects new ones.
func (h *FlowEventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for conn := range h.connections {
		conn.Close()
	}
	h.connections = make(map[*websocket.Conn]bool)
}

func (h *FlowEventHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.connections[conn] {
		delete(h.connections, conn)
		conn.Close()
	}
}
