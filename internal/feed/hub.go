// Package feed broadcasts arena events to WebSocket viewers. The hub is the
// engine's event sink: trades, rejections, chat, and leaderboard updates all
// flow through it to every connected client.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Viewers connect from arbitrary origins; the feed is read-only.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event is the wire envelope for every feed message.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Client is a single WebSocket viewer connection.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub manages viewer connections and fans events out to them. Slow clients
// are dropped rather than ever blocking a publish.
type Hub struct {
	log *slog.Logger

	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{} // closed when Run exits
}

// NewHub creates a Hub. Call Run before publishing.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:        log.With("component", "feed"),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run drives the hub's event loop until the context is canceled. It should
// be launched as a goroutine.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			h.log.Info("viewer connected", "client", client.id, "viewers", len(h.clients))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.log.Info("viewer disconnected", "client", client.id, "viewers", len(h.clients))
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer; cut it loose.
					delete(h.clients, client)
					close(client.send)
					h.log.Warn("dropping slow viewer", "client", client.id)
				}
			}
		}
	}
}

// Publish broadcasts an event to all viewers. It never blocks: when the hub
// is saturated the event is dropped and logged.
func (h *Hub) Publish(eventType string, data any) {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		h.log.Error("marshaling event", "type", eventType, "error", err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.log.Warn("feed saturated, dropping event", "type", eventType)
	}
}

// ServeHTTP lets the hub mount directly on a route.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.ServeWS(w, r)
}

// ServeWS upgrades an HTTP request to a WebSocket viewer connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade", "error", err)
		return
	}

	client := &Client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	// Greet before registering so the greeting is the first frame.
	greeting, _ := json.Marshal(Event{Type: "connected", Data: map[string]string{"client_id": client.id}})
	client.send <- greeting

	// A connection arriving after shutdown has no event loop to join.
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump drains inbound frames. The feed is one-way; anything the viewer
// sends is discarded, but the pump keeps pong handling and close detection
// alive.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
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

// writePump forwards queued events to the connection and keeps it alive
// with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
