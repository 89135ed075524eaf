package feedback

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jitesh-kr/KineticCode/internal/types"
)

const (
	clientSendQueue = 64
	writeWait       = 2 * time.Second
)

// Message is the JSON envelope pushed to UI clients
type Message struct {
	Type      string     `json:"type"`
	Indicator *Indicator `json:"indicator,omitempty"`
	Report    *Report    `json:"report,omitempty"`
}

// Client is one connected UI
type Client struct {
	ID   uint64
	Send chan []byte
}

// Hub fans presentation updates out to websocket clients. Each client has a
// bounded send queue; a client that cannot keep up misses messages.
type Hub struct {
	indicator IndicatorConfig
	upgrader  websocket.Upgrader

	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool

	nextID  atomic.Uint64
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// HubStats counts hub traffic
type HubStats struct {
	Clients int    `json:"clients"`
	Sent    uint64 `json:"sent"`
	Dropped uint64 `json:"dropped"`
}

func NewHub(indicator IndicatorConfig) *Hub {
	return &Hub{
		indicator: indicator.withDefaults(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The UI is served from the device itself or a LAN kiosk
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: map[*Client]struct{}{},
	}
}

// Register adds a client. Returns nil after Close.
func (h *Hub) Register() *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	client := &Client{
		ID:   h.nextID.Add(1),
		Send: make(chan []byte, clientSendQueue),
	}
	h.clients[client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
}

// Broadcast queues payload to every client without blocking
func (h *Hub) Broadcast(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.Send <- payload:
			h.sent.Add(1)
		default:
			h.dropped.Add(1)
		}
	}
}

// OnAngle implements Sink
func (h *Hub) OnAngle(sample types.AngleSample) {
	ind := NewIndicator(sample, h.indicator)
	h.broadcastMessage(Message{Type: "angle", Indicator: &ind})
}

// OnReport implements ReportSink
func (h *Hub) OnReport(report Report) {
	h.broadcastMessage(Message{Type: "report", Report: &report})
}

func (h *Hub) broadcastMessage(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Error("hub: marshal message", "type", msg.Type, "error", err)
		return
	}
	h.Broadcast(payload)
}

// ServeWS upgrades the request and streams hub messages to the connection
// until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("hub: upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	client := h.Register()
	if client == nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		return
	}
	defer h.Unregister(client)

	slog.Debug("hub: client connected", "client_id", client.ID, "remote", r.RemoteAddr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range client.Send {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(writeWait))
	}()

	// Clients only listen; reading detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.Unregister(client)
	<-done
	slog.Debug("hub: client disconnected", "client_id", client.ID)
}

// Close disconnects every client and rejects new ones
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for client := range h.clients {
		delete(h.clients, client)
		close(client.Send)
	}
}

func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return HubStats{
		Clients: len(h.clients),
		Sent:    h.sent.Load(),
		Dropped: h.dropped.Load(),
	}
}
