// Package push fans coordinator and monitor events out to connected UI
// WebSocket clients.
package push

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chun1617/kirman/internal/metrics"
)

const (
	sendBuffer   = 16
	writeTimeout = 5 * time.Second
)

// clientWriter serializes writes to one connection. A slow client drops
// messages instead of blocking the hub.
type clientWriter struct {
	conn   *websocket.Conn
	sendCh chan []byte
	done   chan struct{}
	once   sync.Once
}

func newClientWriter(conn *websocket.Conn) *clientWriter {
	cw := &clientWriter{
		conn:   conn,
		sendCh: make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	for {
		select {
		case msg := <-cw.sendCh:
			_ = cw.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cw.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-cw.done:
			return
		}
	}
}

func (cw *clientWriter) send(msg []byte) {
	select {
	case cw.sendCh <- msg:
	default:
		// Queue full: the client is too slow, drop the event.
	}
}

func (cw *clientWriter) stop() {
	cw.once.Do(func() {
		close(cw.done)
		_ = cw.conn.Close()
	})
}

// Hub tracks connected UI sockets and broadcasts JSON-encoded events to all
// of them.
type Hub struct {
	mu         sync.Mutex
	clients    map[*websocket.Conn]*clientWriter
	maxClients int
	closed     bool
}

func NewHub(maxClients int) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]*clientWriter),
		maxClients: maxClients,
	}
}

// Register adds a connection. Returns false when the hub is full or closed;
// the caller should close the connection in that case.
func (h *Hub) Register(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || len(h.clients) >= h.maxClients {
		return false
	}
	h.clients[conn] = newClientWriter(conn)
	metrics.PushClients.Set(float64(len(h.clients)))
	return true
}

// Unregister removes a connection and stops its writer.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	cw, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
	}
	metrics.PushClients.Set(float64(len(h.clients)))
	h.mu.Unlock()

	if ok {
		cw.stop()
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast JSON-encodes the event and queues it to every connected client.
func (h *Hub) Broadcast(event any) {
	msg, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to encode push event", "error", err)
		return
	}

	h.mu.Lock()
	writers := make([]*clientWriter, 0, len(h.clients))
	for _, cw := range h.clients {
		writers = append(writers, cw)
	}
	h.mu.Unlock()

	for _, cw := range writers {
		cw.send(msg)
	}
}

// Close disconnects every client. Further registrations are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	writers := make([]*clientWriter, 0, len(h.clients))
	for _, cw := range h.clients {
		writers = append(writers, cw)
	}
	h.clients = make(map[*websocket.Conn]*clientWriter)
	metrics.PushClients.Set(0)
	h.mu.Unlock()

	for _, cw := range writers {
		cw.stop()
	}
}
