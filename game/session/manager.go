package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wricardo/mcp-training/battleship/game/engine"
)

// maxRoomIDAttempts bounds retries when a generated room ID is taken
const maxRoomIDAttempts = 16

// ErrRoomIDsExhausted is returned when no unused room ID could be generated
var ErrRoomIDsExhausted = errors.New("unable to allocate a unique room id")

// Seat locates a connection: the room it plays in and its slot
type Seat struct {
	RoomID string `json:"room_id"`
	Slot   int    `json:"slot"`
}

// JoinResult is returned by Join
type JoinResult struct {
	RoomID  string `json:"room_id"`
	Slot    int    `json:"slot"`
	Waiting bool   `json:"waiting"`
}

// Stats summarizes the live state of the manager
type Stats struct {
	Rooms         int                      `json:"rooms"`
	Connections   int                      `json:"connections"`
	PendingRoom   string                   `json:"pending_room,omitempty"`
	RoomsByState  map[engine.RoomState]int `json:"rooms_by_state"`
	GamesFinished int64                    `json:"games_finished"`
}

// liveRoom serializes every mutation of one game
type liveRoom struct {
	mu   sync.Mutex
	game *engine.Room
}

// Manager is the session registry and lifecycle manager. It maps connections
// to rooms, runs matchmaking, and tears rooms down when they finish.
//
// Lock order is matchmaker, then room, then registry. The registry lock is
// never held while acquiring a room lock.
type Manager struct {
	rooms map[string]*liveRoom
	seats map[string]Seat
	mu    sync.RWMutex

	matchmaker *Matchmaker
	results    *ResultLog
	events     Broadcaster
	rng        engine.RandomSource
	rules      engine.Rules
	newRoomID  func() string
	logger     *slog.Logger
	finished   atomic.Int64
}

// Option configures a Manager
type Option func(*Manager)

// WithBroadcaster sets where room events are delivered
func WithBroadcaster(b Broadcaster) Option {
	return func(m *Manager) { m.events = b }
}

// WithRandomSource sets the source used to pick the starting player
func WithRandomSource(rng engine.RandomSource) Option {
	return func(m *Manager) { m.rng = rng }
}

// WithRules sets the placement limits for new rooms
func WithRules(rules engine.Rules) Option {
	return func(m *Manager) { m.rules = rules }
}

// WithResultHistory bounds how many finished games are remembered
func WithResultHistory(n int) Option {
	return func(m *Manager) { m.results = NewResultLog(n) }
}

// WithRoomIDGenerator replaces the random room ID generator
func WithRoomIDGenerator(gen func() string) Option {
	return func(m *Manager) { m.newRoomID = gen }
}

// NewManager creates a new session manager
func NewManager(logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		rooms:      make(map[string]*liveRoom),
		seats:      make(map[string]Seat),
		matchmaker: &Matchmaker{},
		results:    NewResultLog(DefaultResultHistory),
		events:     NopBroadcaster{},
		rng:        engine.NewRandomSource(),
		newRoomID:  generateRoomID,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Join seats connectionID in the pending room, or opens a new pending room
// when there is none.
func (m *Manager) Join(connectionID, username string) (JoinResult, error) {
	var result JoinResult

	err := m.matchmaker.Pair(func(pending string) (string, error) {
		if _, seated := m.SeatOf(connectionID); seated {
			return pending, fmt.Errorf("%w: %s", engine.ErrAlreadySeated, connectionID)
		}

		if lr := m.room(pending); lr != nil {
			joined, err := m.seatOpponent(lr, connectionID, username)
			if err == nil {
				result = joined
				return "", nil
			}
			if !errors.Is(err, engine.ErrNotInState) {
				return pending, err
			}
			// The pending room was abandoned before its teardown finished.
			m.logger.Debug("pending room no longer waiting", "room_id", pending)
		}

		created, err := m.openRoom(connectionID, username)
		if err != nil {
			return "", err
		}
		result = created
		return created.RoomID, nil
	})
	if err != nil {
		return JoinResult{}, err
	}
	return result, nil
}

func (m *Manager) seatOpponent(lr *liveRoom, connectionID, username string) (JoinResult, error) {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	slot, err := lr.game.Seat(connectionID, username)
	if err != nil {
		return JoinResult{}, err
	}
	roomID := lr.game.ID
	m.register(connectionID, Seat{RoomID: roomID, Slot: slot})

	m.events.JoinRoom(roomID, connectionID)
	m.events.ToRoom(roomID, Event{
		Name:   EventOpponentJoined,
		RoomID: roomID,
		Data:   PlayerJoined{Slot: slot, Players: usernames(lr.game)},
	})
	m.logger.Info("opponent joined", "room_id", roomID, "connection_id", connectionID, "slot", slot)

	return JoinResult{RoomID: roomID, Slot: slot, Waiting: false}, nil
}

func (m *Manager) openRoom(connectionID, username string) (JoinResult, error) {
	lr := &liveRoom{}

	m.mu.Lock()
	id := m.newRoomID()
	for attempts := 0; m.rooms[id] != nil; attempts++ {
		if attempts >= maxRoomIDAttempts {
			m.mu.Unlock()
			return JoinResult{}, fmt.Errorf("%w after %d attempts", ErrRoomIDsExhausted, attempts)
		}
		id = m.newRoomID()
	}
	lr.game = engine.NewRoom(id, m.rules, m.rng)
	slot, err := lr.game.Seat(connectionID, username)
	if err != nil {
		m.mu.Unlock()
		return JoinResult{}, err
	}
	m.rooms[id] = lr
	m.seats[connectionID] = Seat{RoomID: id, Slot: slot}
	m.mu.Unlock()

	m.events.JoinRoom(id, connectionID)
	m.events.ToConnection(connectionID, Event{
		Name:   EventWaitingForOpponent,
		RoomID: id,
		Data:   PlayerJoined{Slot: slot, Players: []string{username}},
	})
	m.logger.Info("room opened", "room_id", id, "connection_id", connectionID)

	return JoinResult{RoomID: id, Slot: slot, Waiting: true}, nil
}

// SubmitFleet places connectionID's ships in roomID
func (m *Manager) SubmitFleet(roomID, connectionID string, cellSets [][]engine.Coordinate) (engine.Snapshot, error) {
	lr, err := m.lookup(roomID)
	if err != nil {
		return engine.Snapshot{}, err
	}

	lr.mu.Lock()
	defer lr.mu.Unlock()

	game := lr.game
	if err := game.SubmitFleet(connectionID, cellSets); err != nil {
		return engine.Snapshot{}, err
	}

	slot, _ := game.SlotOf(connectionID)
	m.events.ToRoom(roomID, Event{
		Name:   EventFleetAccepted,
		RoomID: roomID,
		Data:   FleetAccepted{Slot: slot, Username: game.Players[slot].Username},
	})
	m.logger.Info("fleet accepted", "room_id", roomID, "connection_id", connectionID, "ships", len(cellSets))

	if game.State == engine.ActivePlay {
		m.events.ToRoom(roomID, Event{
			Name:   EventGameStarted,
			RoomID: roomID,
			Data: GameStarted{
				Starter:         game.Starter,
				StarterUsername: game.Players[game.Starter].Username,
				Instructions:    Instructions,
			},
		})
		m.logger.Info("game started", "room_id", roomID, "starter", game.Starter)
	}

	return game.Snapshot(connectionID), nil
}

// Fire resolves a shot. A shot that destroys the last ship finishes the game
// and removes the room.
func (m *Manager) Fire(roomID, connectionID string, target engine.Coordinate) (engine.FireOutcome, error) {
	lr, err := m.lookup(roomID)
	if err != nil {
		return engine.FireOutcome{}, err
	}

	lr.mu.Lock()
	game := lr.game
	out, err := game.Fire(connectionID, target)
	if err != nil {
		lr.mu.Unlock()
		return engine.FireOutcome{}, err
	}

	m.events.ToRoom(roomID, Event{Name: EventFireOutcome, RoomID: roomID, Data: out})
	m.events.ToRoom(roomID, Event{Name: EventShipsRemaining, RoomID: roomID, Data: ShipsRemaining{Remaining: out.Remaining}})
	m.logger.Debug("shot resolved", "room_id", roomID, "slot", out.Shooter, "target", target, "hit", out.Hit, "sunk", out.Sunk != nil)

	var conns []string
	if out.Finished {
		m.announceWinner(game, roomID)
		conns = game.ConnectionIDs()
	}
	lr.mu.Unlock()

	if out.Finished {
		m.teardown(roomID, conns)
	}
	return out, nil
}

// Disconnect removes connectionID. A live game is forfeited to the opponent;
// a waiting room is discarded. Unknown connections are ignored.
func (m *Manager) Disconnect(connectionID string) {
	seat, ok := m.SeatOf(connectionID)
	if !ok {
		return
	}
	lr := m.room(seat.RoomID)
	if lr == nil {
		m.unregister(connectionID, seat.RoomID)
		return
	}

	lr.mu.Lock()
	game := lr.game
	winner, changed := game.Forfeit(connectionID)
	if !changed {
		// Already finished; the finishing call owns the teardown.
		lr.mu.Unlock()
		return
	}
	if winner != engine.NoPlayer {
		survivor := game.Players[winner].ConnectionID
		leaver := game.Players[1-winner]
		m.events.ToConnection(survivor, Event{
			Name:   EventOpponentDisconnected,
			RoomID: seat.RoomID,
			Data:   OpponentDisconnected{Slot: 1 - winner, Username: leaver.Username},
		})
		m.announceWinner(game, seat.RoomID)
	}
	conns := game.ConnectionIDs()
	reason := game.Reason
	lr.mu.Unlock()

	m.matchmaker.Release(seat.RoomID)
	m.teardown(seat.RoomID, conns)
	m.logger.Info("connection left", "room_id", seat.RoomID, "connection_id", connectionID, "reason", reason)
}

// announceWinner emits winner_announced and records the result. Caller holds the room lock.
func (m *Manager) announceWinner(game *engine.Room, roomID string) {
	winner := game.Players[game.Winner]
	loser := game.Players[1-game.Winner]

	m.events.ToRoom(roomID, Event{
		Name:   EventWinnerAnnounced,
		RoomID: roomID,
		Data: WinnerAnnounced{
			Winner:         game.Winner,
			WinnerUsername: winner.Username,
			Reason:         string(game.Reason),
		},
	})

	m.results.Add(GameResult{
		RoomID:         roomID,
		Winner:         game.Winner,
		WinnerUsername: winner.Username,
		LoserUsername:  loser.Username,
		Reason:         string(game.Reason),
		Shots:          len(game.Shots),
		Remaining:      game.RemainingCounts(),
		StartedAt:      game.CreatedAt,
		FinishedAt:     time.Now(),
	})
	m.finished.Add(1)
	m.logger.Info("winner announced", "room_id", roomID, "winner", game.Winner, "reason", game.Reason)
}

// teardown removes the room and every registry entry pointing at it
func (m *Manager) teardown(roomID string, conns []string) {
	m.mu.Lock()
	delete(m.rooms, roomID)
	for _, c := range conns {
		if seat, ok := m.seats[c]; ok && seat.RoomID == roomID {
			delete(m.seats, c)
		}
	}
	m.mu.Unlock()

	m.events.LeaveRoom(roomID)
}

func (m *Manager) register(connectionID string, seat Seat) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seats[connectionID] = seat
}

func (m *Manager) unregister(connectionID, roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seat, ok := m.seats[connectionID]; ok && seat.RoomID == roomID {
		delete(m.seats, connectionID)
	}
}

func (m *Manager) room(id string) *liveRoom {
	if id == "" {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[id]
}

func (m *Manager) lookup(id string) (*liveRoom, error) {
	lr := m.room(id)
	if lr == nil {
		return nil, fmt.Errorf("%w: %s", engine.ErrUnknownRoom, id)
	}
	return lr, nil
}

// SeatOf returns where connectionID is seated
func (m *Manager) SeatOf(connectionID string) (Seat, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seat, ok := m.seats[connectionID]
	return seat, ok
}

// Get returns roomID as seen by viewerConnectionID
func (m *Manager) Get(roomID, viewerConnectionID string) (engine.Snapshot, error) {
	lr, err := m.lookup(roomID)
	if err != nil {
		return engine.Snapshot{}, err
	}
	lr.mu.Lock()
	defer lr.mu.Unlock()
	return lr.game.Snapshot(viewerConnectionID), nil
}

// List returns a spectator snapshot of every live room
func (m *Manager) List() []engine.Snapshot {
	live := m.liveRooms()
	out := make([]engine.Snapshot, 0, len(live))
	for _, lr := range live {
		lr.mu.Lock()
		out = append(out, lr.game.Snapshot(""))
		lr.mu.Unlock()
	}
	return out
}

// Result returns the outcome of a finished game
func (m *Manager) Result(roomID string) (GameResult, bool) {
	return m.results.Get(roomID)
}

// Results returns recent outcomes, newest first
func (m *Manager) Results() []GameResult {
	return m.results.List()
}

// Count returns the number of live rooms
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// Rules returns the placement limits applied to new rooms
func (m *Manager) Rules() engine.Rules {
	return m.rules
}

// Stats returns a point-in-time summary
func (m *Manager) Stats() Stats {
	live := m.liveRooms()

	m.mu.RLock()
	conns := len(m.seats)
	m.mu.RUnlock()

	byState := make(map[engine.RoomState]int)
	for _, lr := range live {
		lr.mu.Lock()
		byState[lr.game.State]++
		lr.mu.Unlock()
	}

	return Stats{
		Rooms:         len(live),
		Connections:   conns,
		PendingRoom:   m.matchmaker.Pending(),
		RoomsByState:  byState,
		GamesFinished: m.finished.Load(),
	}
}

// CleanupIdleRooms disconnects the connection stalling each room that has not
// changed for longer than maxIdle: the sole waiter, a player who has not
// placed ships, or the player to move. It returns the number of rooms reaped.
func (m *Manager) CleanupIdleRooms(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-maxIdle)

	var stalled []Seat
	var conns []string
	for _, lr := range m.liveRooms() {
		lr.mu.Lock()
		game := lr.game
		if game.State != engine.Finished && game.UpdatedAt.Before(cutoff) {
			if slot := stallingSlot(game); slot != engine.NoPlayer {
				stalled = append(stalled, Seat{RoomID: game.ID, Slot: slot})
				conns = append(conns, game.Players[slot].ConnectionID)
			}
		}
		lr.mu.Unlock()
	}

	for i, conn := range conns {
		m.events.ToConnection(conn, Event{Name: EventTimedOut, RoomID: stalled[i].RoomID})
		m.logger.Info("idle room reaped", "room_id", stalled[i].RoomID, "connection_id", conn, "slot", stalled[i].Slot)
		m.Disconnect(conn)
	}
	return len(conns)
}

func stallingSlot(game *engine.Room) int {
	switch game.State {
	case engine.WaitingForOpponent:
		if game.Players[0] != nil {
			return 0
		}
	case engine.PlacingShips:
		for slot, p := range game.Players {
			if p != nil && !p.HasPlacedShips {
				return slot
			}
		}
	case engine.ActivePlay:
		return game.Turn
	}
	return engine.NoPlayer
}

// liveRooms copies the room list so room locks are taken without the registry lock
func (m *Manager) liveRooms() []*liveRoom {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*liveRoom, 0, len(m.rooms))
	for _, lr := range m.rooms {
		out = append(out, lr)
	}
	return out
}

func usernames(game *engine.Room) []string {
	names := make([]string, 0, 2)
	for _, p := range game.Players {
		if p != nil {
			names = append(names, p.Username)
		}
	}
	return names
}

// generateRoomID generates a random 6-character room ID
func generateRoomID() string {
	bytes := make([]byte, 3)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
