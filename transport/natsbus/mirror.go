package natsbus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/wricardo/mcp-training/battleship/game/session"
)

// publisher is the part of *nats.Conn the mirror needs
type publisher interface {
	Publish(subject string, data []byte) error
}

// Envelope is the JSON body of every mirrored message
type Envelope struct {
	Event        string    `json:"event"`
	RoomID       string    `json:"room_id"`
	ConnectionID string    `json:"connection_id,omitempty"`
	Data         any       `json:"data,omitempty"`
	Time         time.Time `json:"time"`
}

// Mirror is a session.Broadcaster that forwards every call to next and
// publishes room events to NATS under <prefix>.room.<room_id>.<event>.
// Group membership changes are not published.
type Mirror struct {
	next   session.Broadcaster
	pub    publisher
	prefix string
	logger *slog.Logger
}

var _ session.Broadcaster = (*Mirror)(nil)

// NewMirror wraps next. pub is usually a *nats.Conn.
func NewMirror(next session.Broadcaster, pub publisher, prefix string, logger *slog.Logger) *Mirror {
	if next == nil {
		next = session.NopBroadcaster{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{
		next:   next,
		pub:    pub,
		prefix: strings.TrimSuffix(prefix, "."),
		logger: logger,
	}
}

// Connect dials the NATS server at url with reconnects enabled
func Connect(url string, logger *slog.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(
		url,
		nats.Name("battleship"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return conn, nil
}

func (m *Mirror) JoinRoom(roomID, connectionID string) {
	m.next.JoinRoom(roomID, connectionID)
}

func (m *Mirror) LeaveRoom(roomID string) {
	m.next.LeaveRoom(roomID)
}

func (m *Mirror) ToRoom(roomID string, ev session.Event) {
	m.next.ToRoom(roomID, ev)
	m.publish(roomID, "", ev)
}

func (m *Mirror) ToConnection(connectionID string, ev session.Event) {
	m.next.ToConnection(connectionID, ev)
	m.publish(ev.RoomID, connectionID, ev)
}

// Subject returns the subject an event for roomID is published on
func (m *Mirror) Subject(roomID, event string) string {
	return m.prefix + ".room." + roomID + "." + event
}

func (m *Mirror) publish(roomID, connectionID string, ev session.Event) {
	if roomID == "" {
		return
	}
	data, err := json.Marshal(Envelope{
		Event:        ev.Name,
		RoomID:       roomID,
		ConnectionID: connectionID,
		Data:         ev.Data,
		Time:         time.Now().UTC(),
	})
	if err != nil {
		m.logger.Error("failed to marshal mirrored event", "event", ev.Name, "room_id", roomID, "error", err)
		return
	}
	if err := m.pub.Publish(m.Subject(roomID, ev.Name), data); err != nil {
		m.logger.Warn("failed to publish event", "event", ev.Name, "room_id", roomID, "error", err)
	}
}
