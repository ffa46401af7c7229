package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/battleship/game/engine"
)

type fixedRand int

func (f fixedRand) IntN(int) int { return int(f) }

type delivery struct {
	kind   string
	target string
	ev     Event
}

// recorder captures everything the manager emits
type recorder struct {
	mu  sync.Mutex
	log []delivery
}

func (r *recorder) add(d delivery) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, d)
}

func (r *recorder) JoinRoom(roomID, connectionID string) {
	r.add(delivery{kind: "join", target: roomID + "/" + connectionID})
}
func (r *recorder) LeaveRoom(roomID string) { r.add(delivery{kind: "leave", target: roomID}) }
func (r *recorder) ToRoom(roomID string, ev Event) {
	r.add(delivery{kind: "room", target: roomID, ev: ev})
}
func (r *recorder) ToConnection(connectionID string, ev Event) {
	r.add(delivery{kind: "conn", target: connectionID, ev: ev})
}

func (r *recorder) names(kind, target string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, d := range r.log {
		if d.kind == kind && d.target == target {
			out = append(out, d.ev.Name)
		}
	}
	return out
}

func (r *recorder) left(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.log {
		if d.kind == "leave" && d.target == roomID {
			return true
		}
	}
	return false
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *recorder) {
	t.Helper()
	rec := &recorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{WithBroadcaster(rec), WithRandomSource(fixedRand(0))}, opts...)
	return NewManager(logger, opts...), rec
}

func ships(cells ...string) [][]engine.Coordinate {
	out := make([][]engine.Coordinate, 0, len(cells))
	for _, c := range cells {
		out = append(out, []engine.Coordinate{engine.Coordinate(c)})
	}
	return out
}

// startGame pairs c0 and c1 and places one single-cell ship each
func startGame(t *testing.T, m *Manager) string {
	t.Helper()
	first, err := m.Join("c0", "alice")
	require.NoError(t, err)
	second, err := m.Join("c1", "bob")
	require.NoError(t, err)
	require.Equal(t, first.RoomID, second.RoomID)

	_, err = m.SubmitFleet(first.RoomID, "c0", ships("A1"))
	require.NoError(t, err)
	snap, err := m.SubmitFleet(first.RoomID, "c1", ships("B1", "B3"))
	require.NoError(t, err)
	require.Equal(t, engine.ActivePlay, snap.State)
	return first.RoomID
}

func TestManager_JoinPairsInArrivalOrder(t *testing.T) {
	m, rec := newTestManager(t)

	first, err := m.Join("c0", "alice")
	require.NoError(t, err)
	assert.True(t, first.Waiting)
	assert.Equal(t, 0, first.Slot)
	assert.Equal(t, first.RoomID, m.Stats().PendingRoom)
	assert.Equal(t, []string{EventWaitingForOpponent}, rec.names("conn", "c0"))

	second, err := m.Join("c1", "bob")
	require.NoError(t, err)
	assert.False(t, second.Waiting)
	assert.Equal(t, 1, second.Slot)
	assert.Equal(t, first.RoomID, second.RoomID)
	assert.Empty(t, m.Stats().PendingRoom)
	assert.Equal(t, []string{EventOpponentJoined}, rec.names("room", first.RoomID))

	third, err := m.Join("c2", "carol")
	require.NoError(t, err)
	assert.True(t, third.Waiting)
	assert.NotEqual(t, first.RoomID, third.RoomID)
	assert.Equal(t, 2, m.Count())

	snap, err := m.Get(first.RoomID, "")
	require.NoError(t, err)
	assert.Equal(t, engine.PlacingShips, snap.State)
}

func TestManager_JoinTwice(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Join("c0", "alice")
	require.NoError(t, err)

	_, err = m.Join("c0", "alice")
	assert.True(t, errors.Is(err, engine.ErrAlreadySeated))
	assert.Equal(t, 1, m.Count())
}

func TestManager_UnknownRoom(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.SubmitFleet("nope", "c0", ships("A1"))
	assert.True(t, errors.Is(err, engine.ErrUnknownRoom))
	_, err = m.Fire("nope", "c0", "A1")
	assert.True(t, errors.Is(err, engine.ErrUnknownRoom))
	_, err = m.Get("nope", "c0")
	assert.True(t, errors.Is(err, engine.ErrUnknownRoom))
}

func TestManager_FullGameTearsDownRoom(t *testing.T) {
	m, rec := newTestManager(t)
	roomID := startGame(t, m)

	events := rec.names("room", roomID)
	assert.Equal(t, []string{EventOpponentJoined, EventFleetAccepted, EventFleetAccepted, EventGameStarted}, events)

	_, err := m.Fire(roomID, "c1", "A1")
	assert.True(t, errors.Is(err, engine.ErrNotYourTurn))

	out, err := m.Fire(roomID, "c0", "B1")
	require.NoError(t, err)
	assert.True(t, out.Hit)
	assert.False(t, out.Finished)

	out, err = m.Fire(roomID, "c1", "J9")
	require.NoError(t, err)
	assert.False(t, out.Hit)

	out, err = m.Fire(roomID, "c0", "B3")
	require.NoError(t, err)
	assert.True(t, out.Finished)
	assert.Equal(t, 0, out.Winner)

	assert.Equal(t, 0, m.Count())
	_, seated := m.SeatOf("c0")
	assert.False(t, seated)
	assert.True(t, rec.left(roomID))

	tail := rec.names("room", roomID)
	assert.Equal(t, EventWinnerAnnounced, tail[len(tail)-1])

	res, ok := m.Result(roomID)
	require.True(t, ok)
	assert.Equal(t, "alice", res.WinnerUsername)
	assert.Equal(t, "bob", res.LoserUsername)
	assert.Equal(t, string(engine.ReasonFleetDestroyed), res.Reason)
	assert.Equal(t, 3, res.Shots)
	assert.EqualValues(t, 1, m.Stats().GamesFinished)

	_, err = m.Fire(roomID, "c1", "A1")
	assert.True(t, errors.Is(err, engine.ErrUnknownRoom))

	// both players are free to queue again
	again, err := m.Join("c0", "alice")
	require.NoError(t, err)
	assert.True(t, again.Waiting)
}

func TestManager_DisconnectDuringPlay(t *testing.T) {
	m, rec := newTestManager(t)
	roomID := startGame(t, m)

	m.Disconnect("c0")

	assert.Equal(t, []string{EventOpponentDisconnected}, rec.names("conn", "c1"))
	tail := rec.names("room", roomID)
	assert.Equal(t, EventWinnerAnnounced, tail[len(tail)-1])

	res, ok := m.Result(roomID)
	require.True(t, ok)
	assert.Equal(t, 1, res.Winner)
	assert.Equal(t, string(engine.ReasonForfeit), res.Reason)

	_, err := m.Fire(roomID, "c1", "A1")
	assert.True(t, errors.Is(err, engine.ErrUnknownRoom))
	assert.Equal(t, 0, m.Stats().Connections)

	// second disconnect of either side is a no-op
	m.Disconnect("c0")
	m.Disconnect("c1")
	m.Disconnect("never-seen")
	assert.EqualValues(t, 1, m.Stats().GamesFinished)
}

func TestManager_DisconnectWhileWaiting(t *testing.T) {
	m, rec := newTestManager(t)
	first, err := m.Join("c0", "alice")
	require.NoError(t, err)

	m.Disconnect("c0")
	assert.Equal(t, 0, m.Count())
	assert.Empty(t, m.Stats().PendingRoom)
	assert.True(t, rec.left(first.RoomID))
	_, ok := m.Result(first.RoomID)
	assert.False(t, ok, "abandoned rooms are not recorded")

	next, err := m.Join("c1", "bob")
	require.NoError(t, err)
	assert.True(t, next.Waiting)
	assert.NotEqual(t, first.RoomID, next.RoomID)
}

func TestManager_DisconnectDuringPlacement(t *testing.T) {
	m, rec := newTestManager(t)
	first, _ := m.Join("c0", "alice")
	_, _ = m.Join("c1", "bob")

	m.Disconnect("c1")

	assert.Contains(t, rec.names("conn", "c0"), EventOpponentDisconnected)
	res, ok := m.Result(first.RoomID)
	require.True(t, ok)
	assert.Equal(t, 0, res.Winner)
	assert.Equal(t, 0, m.Count())
}

func TestManager_RoomIDCollision(t *testing.T) {
	ids := []string{"aaaaaa", "aaaaaa", "bbbbbb"}
	var mu sync.Mutex
	gen := func() string {
		mu.Lock()
		defer mu.Unlock()
		id := ids[0]
		ids = ids[1:]
		return id
	}
	m, _ := newTestManager(t, WithRoomIDGenerator(gen))

	first, err := m.Join("c0", "alice")
	require.NoError(t, err)
	assert.Equal(t, "aaaaaa", first.RoomID)

	// pair the first room so the next join opens another
	_, err = m.Join("c1", "bob")
	require.NoError(t, err)

	second, err := m.Join("c2", "carol")
	require.NoError(t, err)
	assert.Equal(t, "bbbbbb", second.RoomID)
}

func TestManager_RoomIDsExhausted(t *testing.T) {
	m, _ := newTestManager(t, WithRoomIDGenerator(func() string { return "aaaaaa" }))

	_, err := m.Join("c0", "alice")
	require.NoError(t, err)
	_, err = m.Join("c1", "bob")
	require.NoError(t, err)

	_, err = m.Join("c2", "carol")
	require.ErrorIs(t, err, ErrRoomIDsExhausted)
	assert.Equal(t, engine.CodeInternal, engine.ErrorCode(err))

	_, seated := m.SeatOf("c2")
	assert.False(t, seated)
	assert.Equal(t, 1, m.Count())
	assert.Empty(t, m.Stats().PendingRoom)
}

func TestManager_JoinSkipsAbandonedPendingRoom(t *testing.T) {
	m, _ := newTestManager(t)

	first, err := m.Join("c0", "alice")
	require.NoError(t, err)
	require.True(t, first.Waiting)

	// abandon the room without releasing it from the matchmaker
	lr := m.room(first.RoomID)
	require.NotNil(t, lr)
	lr.mu.Lock()
	_, changed := lr.game.Forfeit("c0")
	lr.mu.Unlock()
	require.True(t, changed)
	require.Equal(t, first.RoomID, m.Stats().PendingRoom)

	second, err := m.Join("c1", "bob")
	require.NoError(t, err)
	assert.True(t, second.Waiting)
	assert.Equal(t, 0, second.Slot)
	assert.NotEqual(t, first.RoomID, second.RoomID)
	assert.Equal(t, second.RoomID, m.Stats().PendingRoom)

	snap, err := m.Get(second.RoomID, "c1")
	require.NoError(t, err)
	assert.Equal(t, engine.WaitingForOpponent, snap.State)
}

func TestManager_CleanupIdleRooms(t *testing.T) {
	m, rec := newTestManager(t)
	roomID := startGame(t, m)
	waiting, err := m.Join("c2", "carol")
	require.NoError(t, err)

	assert.Equal(t, 0, m.CleanupIdleRooms(time.Hour), "nothing is idle yet")

	time.Sleep(5 * time.Millisecond)
	reaped := m.CleanupIdleRooms(time.Millisecond)
	assert.Equal(t, 2, reaped)
	assert.Equal(t, 0, m.Count())

	// c0 was to move, so c0 timed out and c1 wins by forfeit
	assert.Contains(t, rec.names("conn", "c0"), EventTimedOut)
	assert.Contains(t, rec.names("conn", "c2"), EventTimedOut)
	res, ok := m.Result(roomID)
	require.True(t, ok)
	assert.Equal(t, 1, res.Winner)

	_, ok = m.Result(waiting.RoomID)
	assert.False(t, ok)
}

func TestManager_ListAndStats(t *testing.T) {
	m, _ := newTestManager(t)
	startGame(t, m)
	_, err := m.Join("c2", "carol")
	require.NoError(t, err)

	list := m.List()
	assert.Len(t, list, 2)
	for _, snap := range list {
		assert.Nil(t, snap.YourFleet, "listing is a spectator view")
	}

	stats := m.Stats()
	assert.Equal(t, 2, stats.Rooms)
	assert.Equal(t, 3, stats.Connections)
	assert.NotEmpty(t, stats.PendingRoom)
	assert.Equal(t, 1, stats.RoomsByState[engine.ActivePlay])
	assert.Equal(t, 1, stats.RoomsByState[engine.WaitingForOpponent])
}

func TestManager_ConcurrentJoins(t *testing.T) {
	m, _ := newTestManager(t)
	const players = 100

	var wg sync.WaitGroup
	for i := 0; i < players; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Join(fmt.Sprintf("conn-%d", i), fmt.Sprintf("player-%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stats := m.Stats()
	assert.Equal(t, players/2, stats.Rooms)
	assert.Equal(t, players, stats.Connections)
	assert.Empty(t, stats.PendingRoom)
	assert.Equal(t, players/2, stats.RoomsByState[engine.PlacingShips])
}

func TestManager_ConcurrentGames(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}
	m, _ := newTestManager(t)
	const pairs = 50

	var wg sync.WaitGroup
	for i := 0; i < pairs*2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := fmt.Sprintf("conn-%d", i)
			joined, err := m.Join(conn, conn)
			if !assert.NoError(t, err) {
				return
			}
			// half of the players walk away mid-game
			if i%4 == 0 {
				m.Disconnect(conn)
				return
			}
			for tick := 0; ; tick++ {
				seat, ok := m.SeatOf(conn)
				if !ok {
					return
				}
				snap, err := m.Get(seat.RoomID, conn)
				if err != nil {
					return
				}
				// the last arrival may never get an opponent
				if snap.State == engine.WaitingForOpponent && tick > 500 {
					m.Disconnect(conn)
					return
				}
				if snap.State == engine.PlacingShips && len(snap.YourFleet) == 0 {
					_, _ = m.SubmitFleet(joined.RoomID, conn, ships("A1"))
				}
				if snap.State == engine.ActivePlay && snap.YourTurn {
					_, _ = m.Fire(seat.RoomID, conn, "A1")
				}
				time.Sleep(time.Millisecond)
			}
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("games did not finish")
	}

	assert.Equal(t, 0, m.Count())
	assert.Equal(t, 0, m.Stats().Connections)
}
