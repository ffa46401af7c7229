package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/mcp-training/battleship/game/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	// Pending deliveries buffered between the game and the hub loop.
	outboxSize = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		return true
	},
}

// Message is the outbound envelope for every event and reply
type Message struct {
	Event     string `json:"event"`
	RoomID    string `json:"room_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// Client represents a WebSocket client
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string

	// roomID is the last room this client joined. Only the read pump touches it.
	roomID string
}

// ID returns the connection ID the game knows this client by
func (c *Client) ID() string { return c.id }

type deliveryKind int

const (
	deliverJoin deliveryKind = iota
	deliverLeave
	deliverRoom
	deliverConnection
)

type delivery struct {
	kind   deliveryKind
	roomID string
	connID string
	msg    Message
}

// Hub maintains the set of active clients and their room groups. It
// implements session.Broadcaster; every call is queued on a single outbox so
// deliveries keep the order in which the game produced them.
type Hub struct {
	// Registered clients by connection ID
	clients map[string]*Client

	// Room broadcast groups
	rooms map[string]map[*Client]bool

	// Room operations and outbound messages, in order
	outbox chan delivery

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	done      chan struct{}
	connected atomic.Int64
	logger    *slog.Logger
}

var _ session.Broadcaster = (*Hub)(nil)

// NewHub creates a new WebSocket hub
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[*Client]bool),
		outbox:     make(chan delivery, outboxSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's event loop and returns when ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case d := <-h.outbox:
			h.deliver(d)

		case <-ctx.Done():
			for _, client := range h.clients {
				h.unregisterClient(client)
			}
			return
		}
	}
}

// Clients returns the number of connected sockets
func (h *Hub) Clients() int {
	return int(h.connected.Load())
}

// JoinRoom adds a connection to a room's broadcast group
func (h *Hub) JoinRoom(roomID, connectionID string) {
	h.enqueue(delivery{kind: deliverJoin, roomID: roomID, connID: connectionID})
}

// LeaveRoom drops a room's broadcast group
func (h *Hub) LeaveRoom(roomID string) {
	h.enqueue(delivery{kind: deliverLeave, roomID: roomID})
}

// ToRoom sends ev to every client in the room
func (h *Hub) ToRoom(roomID string, ev session.Event) {
	h.enqueue(delivery{kind: deliverRoom, roomID: roomID, msg: eventMessage(ev)})
}

// ToConnection sends ev to one client
func (h *Hub) ToConnection(connectionID string, ev session.Event) {
	h.enqueue(delivery{kind: deliverConnection, connID: connectionID, msg: eventMessage(ev)})
}

// reply sends a command response to one client
func (h *Hub) reply(connectionID string, msg Message) {
	h.enqueue(delivery{kind: deliverConnection, connID: connectionID, msg: msg})
}

func (h *Hub) enqueue(d delivery) {
	select {
	case h.outbox <- d:
	case <-h.done:
	}
}

func eventMessage(ev session.Event) Message {
	return Message{Event: ev.Name, RoomID: ev.RoomID, Data: ev.Data}
}

// registerClient adds a client to the hub
func (h *Hub) registerClient(client *Client) {
	h.clients[client.id] = client
	h.connected.Add(1)
	h.logger.Debug("client registered", "connection_id", client.id, "clients", len(h.clients))
}

// unregisterClient removes a client and its room memberships
func (h *Hub) unregisterClient(client *Client) {
	if h.clients[client.id] != client {
		return
	}
	delete(h.clients, client.id)
	for roomID, members := range h.rooms {
		if members[client] {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	close(client.send)
	h.connected.Add(-1)
	h.logger.Debug("client unregistered", "connection_id", client.id, "clients", len(h.clients))
}

func (h *Hub) deliver(d delivery) {
	switch d.kind {
	case deliverJoin:
		// Connections that are not sockets (REST players) have no client.
		client, ok := h.clients[d.connID]
		if !ok {
			return
		}
		if h.rooms[d.roomID] == nil {
			h.rooms[d.roomID] = make(map[*Client]bool)
		}
		h.rooms[d.roomID][client] = true

	case deliverLeave:
		delete(h.rooms, d.roomID)

	case deliverRoom:
		members := h.rooms[d.roomID]
		if len(members) == 0 {
			return
		}
		data, ok := h.marshal(d.msg)
		if !ok {
			return
		}
		for client := range members {
			h.push(client, data)
		}

	case deliverConnection:
		client, ok := h.clients[d.connID]
		if !ok {
			return
		}
		if data, ok := h.marshal(d.msg); ok {
			h.push(client, data)
		}
	}
}

func (h *Hub) marshal(msg Message) ([]byte, bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal message", "event", msg.Event, "error", err)
		return nil, false
	}
	return data, true
}

func (h *Hub) push(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		// Client's send channel is full, close it
		h.logger.Warn("dropping slow client", "connection_id", client.id)
		h.unregisterClient(client)
	}
}

// readPump pumps commands from the WebSocket connection to the handler
func (c *Client) readPump(handler *Handler) {
	defer func() {
		handler.disconnect(c)
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
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket error", "connection_id", c.id, "error", err)
			}
			break
		}
		handler.handle(c, raw)
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
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One JSON document per frame so clients can parse each message.
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
