package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Clients only send pings, so a small limit is enough
	maxMessageSize = 4 * 1024

	broadcastBuffer = 64
)

// Invalidation events. Clients re-fetch the matching state on receipt.
const (
	EventKanbanChanged  = "kanban_changed"
	EventUploadsChanged = "uploads_changed"
	EventQuotesChanged  = "quotes_changed"
)

// Client represents a connected WebSocket client
type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn
	Send     chan []byte
	Username string
}

// WebSocketMessage is the standard message format for WebSocket communication
type WebSocketMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
	User string `json:"user,omitempty"`
}

type envelope struct {
	payload []byte
	exclude string
}

// ReadPump reads from the connection until it closes. The only message a
// client sends is "ping"; anything else is ignored.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("user", c.Username).Msg("WebSocket error")
			}
			break
		}

		var msg WebSocketMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Debug().Err(err).Msg("Ignoring malformed WebSocket message")
			continue
		}
		if msg.Type != "ping" {
			log.Debug().Str("type", msg.Type).Str("user", c.Username).Msg("Ignoring client message")
			continue
		}

		pong, err := json.Marshal(WebSocketMessage{
			Type: "pong",
			Data: map[string]string{"timestamp": time.Now().UTC().Format(time.RFC3339)},
		})
		if err == nil {
			select {
			case c.Send <- pong:
			default:
			}
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
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
				// The hub closed the channel
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

// Hub maintains the set of active clients and broadcasts messages to the clients
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan envelope, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast queues a message for every client except those logged in as
// excludeUser. An empty excludeUser reaches everyone. It never blocks: when
// the queue is full the message is dropped, since clients re-fetch full
// state on the next event anyway.
func (h *Hub) Broadcast(message WebSocketMessage, excludeUser string) {
	message.User = excludeUser
	payload, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Msg("Error marshalling WebSocket message")
		return
	}
	select {
	case h.broadcast <- envelope{payload: payload, exclude: excludeUser}:
	default:
		log.Warn().Str("type", message.Type).Msg("Broadcast queue full, dropping message")
	}
}

// Notify broadcasts an invalidation event to every client.
func (h *Hub) Notify(event string) {
	h.Broadcast(WebSocketMessage{Type: event}, "")
}

// Run starts the hub's main loop. It returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			log.Debug().Str("user", client.Username).Int("clients", len(h.clients)).Msg("Client connected")
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				log.Debug().Str("user", client.Username).Int("clients", len(h.clients)).Msg("Client disconnected")
			}
		case env := <-h.broadcast:
			for client := range h.clients {
				if env.exclude != "" && client.Username == env.exclude {
					continue
				}
				select {
				case client.Send <- env.payload:
				default:
					// Client's send buffer is full, assume disconnected
					log.Warn().Str("user", client.Username).Msg("Client send buffer full, removing client")
					close(client.Send)
					delete(h.clients, client)
				}
			}
		}
	}
}
