package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Rooms clients can join.
const (
	RoomNetworkMonitor  = "network-monitor"
	RoomSecurityMonitor = "security-monitor"
)

// Client message events.
const (
	eventJoinNetworkMonitor  = "join-network-monitor"
	eventJoinSecurityMonitor = "join-security-monitor"
	eventRequestNetworkScan  = "request-network-scan"
)

// Server message events.
const (
	eventConnected         = "connected"
	eventJoinedRoom        = "joined-room"
	eventNetworkStatus     = "network-status"
	eventScanProgress      = "scan-progress"
	eventScanComplete      = "scan-complete"
	eventScanResult        = "scan-result"
	eventCamerasDiscovered = "cameras-discovered"
	eventSecurityStatus    = "security-status"
	eventDeviceAuthorized  = "device-authorized"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

// Message is the WebSocket wire envelope in both directions.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func newMessage(event string, data any) (Message, error) {
	if data == nil {
		return Message{Event: event}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, err
	}
	return Message{Event: event, Data: raw}, nil
}

// wsClient is one connected WebSocket peer. Writes are serialised through
// the mutex; the read loop owns the connection otherwise.
type wsClient struct {
	conn  *websocket.Conn
	wmu   sync.Mutex
	rooms map[string]bool
}

func (c *wsClient) send(msg Message) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

func (c *wsClient) ping() error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// Hub tracks connected clients and their room membership.
type Hub struct {
	mu      sync.Mutex
	clients map[*wsClient]bool

	// OnScanRequest handles a client's request-network-scan message.
	OnScanRequest func(rangeExpr string)

	upgrader websocket.Upgrader
	logger   *logrus.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.New()
	}
	return &Hub{
		clients: make(map[*wsClient]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard is served from another origin on the LAN.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Handle upgrades an HTTP request and runs the client's read loop.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("websocket upgrade failed: %v", err)
		return
	}

	client := &wsClient{conn: conn, rooms: make(map[string]bool)}
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	if msg, err := newMessage(eventConnected, map[string]string{"status": "ok"}); err == nil {
		client.send(msg)
	}

	go h.pingLoop(client)
	h.readLoop(client)
}

func (h *Hub) pingLoop(client *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for range ticker.C {
		if !h.connected(client) {
			return
		}
		if err := client.ping(); err != nil {
			return
		}
	}
}

func (h *Hub) connected(client *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clients[client]
}

func (h *Hub) readLoop(client *wsClient) {
	defer h.drop(client)

	client.conn.SetReadLimit(4096)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := client.conn.ReadJSON(&msg); err != nil {
			return
		}
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		h.dispatch(client, msg)
	}
}

func (h *Hub) dispatch(client *wsClient, msg Message) {
	switch msg.Event {
	case eventJoinNetworkMonitor:
		h.join(client, RoomNetworkMonitor)
	case eventJoinSecurityMonitor:
		h.join(client, RoomSecurityMonitor)
	case eventRequestNetworkScan:
		var payload struct {
			Range string `json:"range"`
		}
		if len(msg.Data) > 0 {
			json.Unmarshal(msg.Data, &payload)
		}
		if h.OnScanRequest != nil {
			h.OnScanRequest(payload.Range)
		}
	default:
		h.logger.Debugf("unknown websocket event %q", msg.Event)
	}
}

func (h *Hub) join(client *wsClient, room string) {
	h.mu.Lock()
	client.rooms[room] = true
	h.mu.Unlock()

	if msg, err := newMessage(eventJoinedRoom, map[string]string{"room": room}); err == nil {
		client.send(msg)
	}
}

func (h *Hub) drop(client *wsClient) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	client.conn.Close()
}

// Broadcast sends an event to every client in a room. Dead connections are
// dropped.
func (h *Hub) Broadcast(room, event string, data any) {
	msg, err := newMessage(event, data)
	if err != nil {
		h.logger.Warnf("broadcast marshal failed: %v", err)
		return
	}

	h.mu.Lock()
	var targets []*wsClient
	for client := range h.clients {
		if client.rooms[room] {
			targets = append(targets, client)
		}
	}
	h.mu.Unlock()

	for _, client := range targets {
		if err := client.send(msg); err != nil {
			h.drop(client)
		}
	}
}

// BroadcastAll sends an event to every connected client.
func (h *Hub) BroadcastAll(event string, data any) {
	msg, err := newMessage(event, data)
	if err != nil {
		h.logger.Warnf("broadcast marshal failed: %v", err)
		return
	}

	h.mu.Lock()
	targets := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		targets = append(targets, client)
	}
	h.mu.Unlock()

	for _, client := range targets {
		if err := client.send(msg); err != nil {
			h.drop(client)
		}
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
