// Package websocket provides the WebSocket IPC surface for real-time
// configuration updates: routing-config and tray-menu pushes to connected
// processes, and tray-originated profile selections flowing back in.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// MessageType represents WebSocket message types
type MessageType string

const (
	// MessageTypeRoutingConfig carries a full RoutingConfig snapshot
	MessageTypeRoutingConfig MessageType = "routing_config"
	// MessageTypeTrayMenu carries the rendered tray menu state
	MessageTypeTrayMenu MessageType = "tray_menu"
	// MessageTypeSyncResult carries the outcome of a sync round
	MessageTypeSyncResult MessageType = "sync_result"
	// MessageTypeSelectProfile is sent by the tray process when the user
	// picks a profile from the menu
	MessageTypeSelectProfile MessageType = "select_profile"
)

// Message represents a WebSocket message
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

// selectProfilePayload is the inbound payload of a select_profile message.
type selectProfilePayload struct {
	ProfileID string `json:"profileId"`
}

// NewRoutingConfigMessage creates a routing config push message
func NewRoutingConfigMessage(payload interface{}) *Message {
	return &Message{
		Type:    MessageTypeRoutingConfig,
		Payload: payload,
	}
}

// NewTrayMenuMessage creates a tray menu push message
func NewTrayMenuMessage(payload interface{}) *Message {
	return &Message{
		Type:    MessageTypeTrayMenu,
		Payload: payload,
	}
}

// NewSyncResultMessage creates a sync result message
func NewSyncResultMessage(payload interface{}) *Message {
	return &Message{
		Type:    MessageTypeSyncResult,
		Payload: payload,
	}
}

// Client represents a WebSocket client connection
type Client struct {
	ID   string
	Send chan *Message
	hub  *Hub
	conn *websocket.Conn
}

// WebSocket configuration constants
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

// WebSocket upgrader with default options
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for development (should be restricted in production)
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub manages WebSocket connections and message broadcasting
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	running    bool
	stopCh     chan struct{}

	// onSelect is invoked with the profile id of every inbound
	// select_profile message.
	onSelect func(profileID string)
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopCh:     make(chan struct{}),
	}
}

// SetSelectHandler registers the handler for tray-originated profile
// selections. Set before serving connections.
func (h *Hub) SetSelectHandler(handler func(profileID string)) {
	h.mu.Lock()
	h.onSelect = handler
	h.mu.Unlock()
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.mu.Lock()
	h.running = true
	h.mu.Unlock()

	for {
		select {
		case <-h.stopCh:
			// Graceful shutdown
			h.mu.Lock()
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			h.running = false
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					// Client buffer full, skip this message for this client
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Stop stops the hub's main loop
func (h *Hub) Stop() {
	h.mu.RLock()
	running := h.running
	h.mu.RUnlock()

	if running {
		close(h.stopCh)
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		// Broadcast channel full, skip
	}
}

// BroadcastRoutingConfig broadcasts a RoutingConfig snapshot to all clients
func (h *Hub) BroadcastRoutingConfig(payload interface{}) {
	h.Broadcast(NewRoutingConfigMessage(payload))
}

// BroadcastTrayMenu broadcasts tray menu state to all clients
func (h *Hub) BroadcastTrayMenu(payload interface{}) {
	h.Broadcast(NewTrayMenuMessage(payload))
}

// BroadcastSyncResult broadcasts a sync round outcome to all clients
func (h *Hub) BroadcastSyncResult(payload interface{}) {
	h.Broadcast(NewSyncResultMessage(payload))
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning returns whether the hub is running
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// handleInbound dispatches a message received from a client.
func (h *Hub) handleInbound(data []byte) {
	var msg struct {
		Type    MessageType     `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if msg.Type != MessageTypeSelectProfile {
		return
	}

	var payload selectProfilePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.ProfileID == "" {
		return
	}

	h.mu.RLock()
	handler := h.onSelect
	h.mu.RUnlock()

	if handler != nil {
		handler(payload.ProfileID)
	}
}

// HandleWebSocket handles WebSocket connection upgrade and client management
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &Client{
		ID:   uuid.New().String(),
		Send: make(chan *Message, 256),
		hub:  h,
		conn: conn,
	}

	h.Register(client)

	// Start goroutines for reading and writing
	go client.writePump()
	go client.readPump()
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		c.hub.handleInbound(data)
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// Marshal the message to JSON
			data, err := json.Marshal(message)
			if err != nil {
				continue
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(data)

			// Add queued messages to the current WebSocket message
			n := len(c.Send)
			for i := 0; i < n; i++ {
				msg := <-c.Send
				data, err := json.Marshal(msg)
				if err != nil {
					continue
				}
				w.Write([]byte{'\n'})
				w.Write(data)
			}

			if err := w.Close(); err != nil {
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
