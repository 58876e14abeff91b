package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/drawmap/backend/internal/queue"
)

// Server -> client event types
const (
	EventQueueSize     = "queue:size"
	EventQueueDrop     = "queue:drop"
	EventEditorRepaint = "editor:repaint"
)

// WSEvent is the envelope for every pushed event
type WSEvent struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

type repaintPayload struct {
	SessionID string `json:"sessionId"`
}

// EventHub fans server-side events out to connected WebSocket clients.
// Slow clients are dropped rather than allowed to stall the hub.
type EventHub struct {
	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*websocket.Conn]chan []byte

	lastDropped int
}

// NewEventHub creates an event hub
func NewEventHub() *EventHub {
	return &EventHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
		},
		clients: make(map[*websocket.Conn]chan []byte),
	}
}

// HandleEvents upgrades the connection and streams events until the client
// disconnects
func (h *EventHub) HandleEvents(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return NewBadRequestError("websocket upgrade failed", err)
	}

	send := make(chan []byte, 32)
	h.mu.Lock()
	h.clients[ws] = send
	h.mu.Unlock()

	go h.writeLoop(ws, send)

	// Reads are only used to detect disconnect.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(ws)
	return nil
}

func (h *EventHub) writeLoop(ws *websocket.Conn, send chan []byte) {
	for msg := range send {
		ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.remove(ws)
			return
		}
	}
}

func (h *EventHub) remove(ws *websocket.Conn) {
	h.mu.Lock()
	if send, ok := h.clients[ws]; ok {
		delete(h.clients, ws)
		close(send)
	}
	h.mu.Unlock()
	ws.Close()
}

// Broadcast pushes one event to every connected client
func (h *EventHub) Broadcast(eventType string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		fmt.Printf("[WS] marshal %s: %v\n", eventType, err)
		return
	}
	msg, err := json.Marshal(WSEvent{
		Type:      eventType,
		Payload:   raw,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return
	}

	h.mu.Lock()
	for ws, send := range h.clients {
		select {
		case send <- msg:
		default:
			// Buffer full: drop the client instead of blocking.
			delete(h.clients, ws)
			close(send)
			ws.Close()
		}
	}
	h.mu.Unlock()
}

// QueueListener adapts the hub to the persistence queue's listener
// callback. Size changes always broadcast; a drop additionally emits its
// own event so a UI can warn about lost writes.
func (h *EventHub) QueueListener() queue.Listener {
	return func(stats queue.Stats) {
		h.Broadcast(EventQueueSize, stats)

		h.mu.Lock()
		dropped := stats.Dropped > h.lastDropped
		h.lastDropped = stats.Dropped
		h.mu.Unlock()

		if dropped {
			h.Broadcast(EventQueueDrop, stats)
		}
	}
}

// NotifyRepaint broadcasts a coalesced editor repaint for one session
func (h *EventHub) NotifyRepaint(sessionID string) {
	h.Broadcast(EventEditorRepaint, repaintPayload{SessionID: sessionID})
}

// ClientCount returns the number of connected clients
func (h *EventHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
