package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/wricardo/mcp-training/battleship/game/service"
)

// Command types accepted from clients
const (
	CommandJoin       = "join"
	CommandPlaceFleet = "place_fleet"
	CommandFire       = "fire"
	CommandState      = "state"
	CommandLeave      = "leave"
)

// Reply events sent in answer to a command
const (
	EventConnected   = "connected"
	EventJoined      = "joined"
	EventFleetPlaced = "fleet_placed"
	EventFireResult  = "fire_result"
	EventState       = "state"
	EventLeft        = "left"
	EventError       = "error"
)

const commandTimeout = 5 * time.Second

var errUnknownCommand = errors.New("unknown command type")

// Command is one inbound client request
type Command struct {
	Type      string     `json:"type"`
	RequestID string     `json:"request_id,omitempty"`
	Username  string     `json:"username,omitempty"`
	RoomID    string     `json:"room_id,omitempty"`
	Ships     [][]string `json:"ships,omitempty"`
	Target    string     `json:"target,omitempty"`
}

// ErrorData is the payload of an error event
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Handler upgrades HTTP requests and turns client commands into game calls
type Handler struct {
	hub     *Hub
	service service.GameService
	logger  *slog.Logger
}

// NewHandler creates a WebSocket handler backed by gameService
func NewHandler(hub *Hub, gameService service.GameService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{hub: hub, service: gameService, logger: logger}
}

// HandleWebSocket handles WebSocket requests from clients
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:  h.hub,
		conn: conn,
		send: make(chan []byte, 256),
		id:   uuid.NewString(),
	}

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}
	h.hub.reply(client.id, Message{
		Event: EventConnected,
		Data:  map[string]string{"connection_id": client.id},
	})

	// Start client goroutines
	go client.writePump()
	go client.readPump(h)
}

func (h *Handler) handle(c *Client, raw []byte) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		h.hub.reply(c.id, Message{
			Event: EventError,
			Data:  ErrorData{Code: service.CodeBadRequest, Message: "invalid JSON: " + err.Error()},
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	reply, err := h.dispatch(ctx, c, cmd)
	if err != nil {
		code := service.ErrorCode(err)
		if errors.Is(err, errUnknownCommand) {
			code = service.CodeBadRequest
		}
		h.logger.Debug("command rejected", "connection_id", c.id, "type", cmd.Type, "code", code, "error", err)
		h.hub.reply(c.id, Message{
			Event:     EventError,
			RoomID:    cmd.RoomID,
			RequestID: cmd.RequestID,
			Data:      ErrorData{Code: code, Message: err.Error()},
		})
		return
	}
	reply.RequestID = cmd.RequestID
	h.hub.reply(c.id, reply)
}

func (h *Handler) dispatch(ctx context.Context, c *Client, cmd Command) (Message, error) {
	roomID := cmd.RoomID
	if roomID == "" {
		roomID = c.roomID
	}

	switch cmd.Type {
	case CommandJoin:
		joined, err := h.service.Join(ctx, c.id, cmd.Username)
		if err != nil {
			return Message{}, err
		}
		c.roomID = joined.RoomID
		return Message{Event: EventJoined, RoomID: joined.RoomID, Data: joined}, nil

	case CommandPlaceFleet:
		snap, err := h.service.PlaceFleet(ctx, roomID, c.id, cmd.Ships)
		if err != nil {
			return Message{}, err
		}
		return Message{Event: EventFleetPlaced, RoomID: roomID, Data: snap}, nil

	case CommandFire:
		shot, err := h.service.Fire(ctx, roomID, c.id, cmd.Target)
		if err != nil {
			return Message{}, err
		}
		return Message{Event: EventFireResult, RoomID: roomID, Data: shot}, nil

	case CommandState:
		snap, err := h.service.GetRoom(ctx, roomID, c.id)
		if err != nil {
			return Message{}, err
		}
		return Message{Event: EventState, RoomID: roomID, Data: snap}, nil

	case CommandLeave:
		if err := h.service.Leave(ctx, c.id); err != nil {
			return Message{}, err
		}
		c.roomID = ""
		return Message{Event: EventLeft, RoomID: roomID}, nil
	}
	return Message{}, errUnknownCommand
}

// disconnect forfeits whatever game the closing socket was in
func (h *Handler) disconnect(c *Client) {
	err := h.service.Leave(context.Background(), c.id)
	if err != nil && !errors.Is(err, service.ErrNotSeated) {
		h.logger.Warn("disconnect failed", "connection_id", c.id, "error", err)
		return
	}
	h.logger.Debug("socket closed", "connection_id", c.id)
}
