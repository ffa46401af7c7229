package natsbus

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/battleship/game/session"
)

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{subject: subject, data: data})
	return nil
}

type countingBroadcaster struct {
	joins, leaves, room, conn int
}

func (c *countingBroadcaster) JoinRoom(string, string)            { c.joins++ }
func (c *countingBroadcaster) LeaveRoom(string)                   { c.leaves++ }
func (c *countingBroadcaster) ToRoom(string, session.Event)       { c.room++ }
func (c *countingBroadcaster) ToConnection(string, session.Event) { c.conn++ }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMirror_ForwardsAndPublishes(t *testing.T) {
	next := &countingBroadcaster{}
	pub := &fakePublisher{}
	m := NewMirror(next, pub, "battleship.", quietLogger())

	m.JoinRoom("r1", "c0")
	m.ToRoom("r1", session.Event{Name: session.EventFireOutcome, RoomID: "r1", Data: map[string]int{"shooter": 0}})
	m.ToConnection("c1", session.Event{Name: session.EventOpponentDisconnected, RoomID: "r1"})
	m.LeaveRoom("r1")

	assert.Equal(t, 1, next.joins)
	assert.Equal(t, 1, next.leaves)
	assert.Equal(t, 1, next.room)
	assert.Equal(t, 1, next.conn)

	require.Len(t, pub.msgs, 2)
	assert.Equal(t, "battleship.room.r1.fire_outcome", pub.msgs[0].subject)
	assert.Equal(t, "battleship.room.r1.opponent_disconnected", pub.msgs[1].subject)

	var env Envelope
	require.NoError(t, json.Unmarshal(pub.msgs[1].data, &env))
	assert.Equal(t, "c1", env.ConnectionID)
	assert.Equal(t, "r1", env.RoomID)
	assert.False(t, env.Time.IsZero())
}

func TestMirror_PublishFailureDoesNotBlockDelivery(t *testing.T) {
	next := &countingBroadcaster{}
	m := NewMirror(next, &fakePublisher{err: errors.New("nats: connection closed")}, "bs", quietLogger())

	m.ToRoom("r1", session.Event{Name: session.EventGameStarted, RoomID: "r1"})
	assert.Equal(t, 1, next.room)
}

func TestMirror_SkipsEventsWithoutRoom(t *testing.T) {
	pub := &fakePublisher{}
	m := NewMirror(nil, pub, "bs", quietLogger())

	m.ToConnection("c0", session.Event{Name: "hello"})
	assert.Empty(t, pub.msgs)
	assert.Equal(t, "bs.room.abc.timed_out", m.Subject("abc", session.EventTimedOut))
}
