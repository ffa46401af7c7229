package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wricardo/mcp-training/battleship/game/engine"
	"github.com/wricardo/mcp-training/battleship/game/session"
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	logger   *slog.Logger
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, logger *slog.Logger) GameService {
	if logger == nil {
		logger = slog.Default()
	}
	return &gameServiceImpl{
		sessions: sessions,
		logger:   logger,
	}
}

// Join queues a connection for a game. A missing connection ID is generated
// and returned so stateless clients can keep playing with it.
func (s *gameServiceImpl) Join(ctx context.Context, connectionID, username string) (*JoinInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if connectionID == "" {
		connectionID = uuid.NewString()
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = "player-" + shortID(connectionID)
	}

	joined, err := s.sessions.Join(connectionID, username)
	if err != nil {
		return nil, fmt.Errorf("failed to join: %w", err)
	}

	msg := "Opponent found. Place your fleet."
	if joined.Waiting {
		msg = "Waiting for an opponent to join."
	}
	return &JoinInfo{
		ConnectionID: connectionID,
		Username:     username,
		RoomID:       joined.RoomID,
		Slot:         joined.Slot,
		Waiting:      joined.Waiting,
		Message:      msg,
	}, nil
}

// Leave disconnects a connection from its room
func (s *gameServiceImpl) Leave(ctx context.Context, connectionID string) error {
	if _, ok := s.sessions.SeatOf(connectionID); !ok {
		return fmt.Errorf("%w: %s", ErrNotSeated, connectionID)
	}
	s.sessions.Disconnect(connectionID)
	return nil
}

// PlaceFleet submits a connection's ships, one coordinate list per ship
func (s *gameServiceImpl) PlaceFleet(ctx context.Context, roomID, connectionID string, ships [][]string) (*engine.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cellSets := make([][]engine.Coordinate, len(ships))
	for i, ship := range ships {
		cells := make([]engine.Coordinate, len(ship))
		for j, c := range ship {
			cells[j] = engine.Coordinate(c)
		}
		cellSets[i] = cells
	}

	snap, err := s.sessions.SubmitFleet(roomID, connectionID, cellSets)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Fire shoots at target on the opponent's grid
func (s *gameServiceImpl) Fire(ctx context.Context, roomID, connectionID, target string) (*FireResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(target) == "" {
		return nil, ErrMissingTarget
	}

	out, err := s.sessions.Fire(roomID, connectionID, engine.Coordinate(target))
	if err != nil {
		return nil, err
	}
	return &FireResult{FireOutcome: out, Message: describeShot(out)}, nil
}

// GetRoom returns the room as seen by viewerConnectionID
func (s *gameServiceImpl) GetRoom(ctx context.Context, roomID, viewerConnectionID string) (*engine.Snapshot, error) {
	snap, err := s.sessions.Get(roomID, viewerConnectionID)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// ListRooms returns all live rooms, oldest first
func (s *gameServiceImpl) ListRooms(ctx context.Context) ([]*RoomInfo, error) {
	snaps := s.sessions.List()
	rooms := make([]*RoomInfo, 0, len(snaps))
	for _, snap := range snaps {
		players := make([]string, 0, len(snap.Players))
		for _, p := range snap.Players {
			players = append(players, p.Username)
		}
		rooms = append(rooms, &RoomInfo{
			ID:        snap.RoomID,
			State:     snap.State,
			Players:   players,
			Turn:      snap.Turn,
			Shots:     snap.ShotCount,
			CreatedAt: snap.CreatedAt,
			UpdatedAt: snap.UpdatedAt,
		})
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms, nil
}

// GetResult returns the outcome of a finished game
func (s *gameServiceImpl) GetResult(ctx context.Context, roomID string) (*session.GameResult, error) {
	res, ok := s.sessions.Result(roomID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrResultNotFound, roomID)
	}
	return &res, nil
}

// ListResults returns recent outcomes, newest first
func (s *gameServiceImpl) ListResults(ctx context.Context) ([]session.GameResult, error) {
	return s.sessions.Results(), nil
}

func (s *gameServiceImpl) Rules(ctx context.Context) *RulesInfo {
	rules := s.sessions.Rules()
	return &RulesInfo{
		MaxShips:     rules.MaxShips,
		MaxShipCells: rules.MaxShipCells,
		Coordinates:  "Any non-empty label, e.g. B4. Cells must not repeat within a fleet.",
		Flow: []string{
			"join: you are paired with the next player to join",
			"place_fleet: submit every ship at once as lists of cells",
			"fire: players alternate one shot each, hit or miss",
			"the first player to sink every enemy ship wins; leaving forfeits",
		},
	}
}

func (s *gameServiceImpl) Stats(ctx context.Context) (*session.Stats, error) {
	stats := s.sessions.Stats()
	return &stats, nil
}

// ReapIdle disconnects players stalling rooms idle for longer than maxIdle
func (s *gameServiceImpl) ReapIdle(ctx context.Context, maxIdle time.Duration) int {
	n := s.sessions.CleanupIdleRooms(maxIdle)
	if n > 0 {
		s.logger.Info("reaped idle rooms", "count", n, "max_idle", maxIdle)
	}
	return n
}

func describeShot(out engine.FireOutcome) string {
	var b strings.Builder
	switch {
	case out.Sunk != nil:
		fmt.Fprintf(&b, "Hit at %s. Ship sunk!", out.Target)
	case out.Hit:
		fmt.Fprintf(&b, "Hit at %s.", out.Target)
	default:
		fmt.Fprintf(&b, "Miss at %s.", out.Target)
	}
	if out.Finished {
		fmt.Fprintf(&b, " All enemy ships destroyed. Player %d wins.", out.Winner)
	} else {
		fmt.Fprintf(&b, " %d enemy ships remaining.", out.VictimRemaining)
	}
	return b.String()
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 6 {
		return id[:6]
	}
	return id
}
