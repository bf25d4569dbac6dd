// Package ws pushes status editor events to connected admin dashboards.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"character-studio/backend/internal/workflow"
	"character-studio/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Admin clients only send small control messages
	maxMessageSize = 4 * 1024

	sendBuffer = 64
)

// Message is the envelope of every frame in both directions
type Message struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content,omitempty"`
}

type Client struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
	Hub    *Hub

	mu       sync.Mutex
	statusID string
}

// watching reports whether the client wants events of statusID. Clients
// without a subscription receive everything.
func (c *Client) watching(statusID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusID == "" || c.statusID == statusID
}

func (c *Client) subscribe(statusID string) {
	c.mu.Lock()
	c.statusID = statusID
	c.mu.Unlock()
}

type envelope struct {
	statusID string
	data     []byte
}

type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	log        *logger.Logger
	upgrader   websocket.Upgrader
	mu         sync.Mutex
}

// NewHub creates a hub accepting connections from the given origins; "*"
// allows any origin
func NewHub(allowedOrigins []string, log *logger.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan envelope, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:      originChecker(allowedOrigins),
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, "*") {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}

// Run serves registrations and broadcasts until ctx ends, then closes every client
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug("Admin client registered", "client_id", client.ID, "user_id", client.UserID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.log.Debug("Admin client unregistered", "client_id", client.ID)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.watching(msg.statusID) {
					continue
				}
				select {
				case client.Send <- msg.data:
				default:
					close(client.Send)
					delete(h.clients, client)
					h.log.Warn("Admin client removed due to blocked channel", "client_id", client.ID)
				}
			}
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Notify implements workflow.Notifier. Events are dropped once the hub stopped.
func (h *Hub) Notify(ctx context.Context, event workflow.Event) {
	content, err := json.Marshal(event)
	if err != nil {
		h.log.LogError(err, "Failed to encode event", "type", event.Type)
		return
	}
	data, err := json.Marshal(Message{Type: event.Type, Content: content})
	if err != nil {
		h.log.LogError(err, "Failed to encode event", "type", event.Type)
		return
	}

	select {
	case h.broadcast <- envelope{statusID: event.StatusID, data: data}:
	case <-h.done:
	case <-ctx.Done():
	}
}

func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warn("Admin websocket closed unexpectedly", "client_id", c.ID, "error", err.Error())
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply("error", map[string]string{"message": "invalid message"})
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg Message) {
	switch msg.Type {
	case "ping":
		c.reply("pong", nil)
	case "subscribe":
		var body struct {
			StatusID string `json:"status_id"`
		}
		if len(msg.Content) > 0 {
			if err := json.Unmarshal(msg.Content, &body); err != nil {
				c.reply("error", map[string]string{"message": "invalid subscribe content"})
				return
			}
		}
		c.subscribe(body.StatusID)
		c.reply("subscribed", body)
	default:
		c.reply("error", map[string]string{"message": "unknown message type: " + msg.Type})
	}
}

// reply queues a message for this client only
func (c *Client) reply(msgType string, content any) {
	msg := Message{Type: msgType}
	if content != nil {
		raw, err := json.Marshal(content)
		if err != nil {
			return
		}
		msg.Content = raw
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	c.Hub.mu.Lock()
	defer c.Hub.mu.Unlock()
	if !c.Hub.clients[c] {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades an authenticated admin request. ?status_id= subscribes
// to a single status from the start.
func ServeWs(hub *Hub, c *gin.Context) {
	conn, err := hub.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.LogError(err, "Error upgrading connection")
		return
	}

	client := &Client{
		ID:       uuid.NewString(),
		UserID:   c.GetString("userId"),
		Conn:     conn,
		Send:     make(chan []byte, sendBuffer),
		Hub:      hub,
		statusID: c.Query("status_id"),
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
