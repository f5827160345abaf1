package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"nse-metrics/internal/markethours"
	"nse-metrics/internal/metrics"
	"nse-metrics/internal/model"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Envelope is the frame pushed to run-event subscribers.
type Envelope struct {
	Type         string           `json:"type"` // hello | run
	Run          *model.RunResult `json:"run,omitempty"`
	MarketStatus string           `json:"marketStatus,omitempty"`
	TS           time.Time        `json:"ts"`
}

// Hub fans finished runs out to websocket clients. It implements
// model.RunSink; a new client first receives a hello frame carrying the
// most recent run.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool
	lastRun *model.RunResult

	metrics *metrics.Metrics
	now     func() time.Time
}

// NewHub creates an empty Hub. m may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[*client]bool),
		metrics: m,
		now:     time.Now,
	}
}

// PublishRun broadcasts res to every connected client. Slow clients whose
// buffer is full miss the frame. A client sees either the run in its hello
// frame or as a run frame after hello, never both and never before hello.
func (h *Hub) PublishRun(_ context.Context, res *model.RunResult) error {
	frame, err := json.Marshal(Envelope{Type: "run", Run: res, TS: h.now()})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastRun = res
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			slog.Warn("[ws] client buffer full, dropping run frame")
		}
	}
	return nil
}

// ServeHTTP upgrades the connection and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("[ws] upgrade failed", "error", err)
		return
	}
	conn.EnableWriteCompression(true)

	c := &client{conn: conn, send: make(chan []byte, sendBuffer), hub: h}

	// hello goes into the empty buffer before the client is visible to
	// PublishRun.
	h.mu.Lock()
	now := h.now()
	hello, _ := json.Marshal(Envelope{
		Type:         "hello",
		Run:          h.lastRun,
		MarketStatus: markethours.StatusString(now),
		TS:           now,
	})
	c.send <- hello
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.observeClients(count)
	slog.Info("[ws] client connected", "clients", count)

	go c.writePump()
	go c.readPump()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	close(c.send)
	h.mu.Unlock()
	h.observeClients(count)
	slog.Info("[ws] client disconnected", "clients", count)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c.conn)
	}
	h.mu.RUnlock()
	for _, conn := range conns {
		conn.Close()
	}
}

func (h *Hub) observeClients(n int) {
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(n))
	}
}

// client is a single websocket peer.
type client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only services control frames; subscribers never send data.
func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
