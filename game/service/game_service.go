package service

import (
	"context"
	"time"

	"github.com/wricardo/mcp-training/battleship/game/engine"
	"github.com/wricardo/mcp-training/battleship/game/session"
)

// GameService defines all game-related operations
type GameService interface {
	// Matchmaking
	Join(ctx context.Context, connectionID, username string) (*JoinInfo, error)
	Leave(ctx context.Context, connectionID string) error

	// Game Operations
	PlaceFleet(ctx context.Context, roomID, connectionID string, ships [][]string) (*engine.Snapshot, error)
	Fire(ctx context.Context, roomID, connectionID, target string) (*FireResult, error)

	// Game State
	GetRoom(ctx context.Context, roomID, viewerConnectionID string) (*engine.Snapshot, error)
	ListRooms(ctx context.Context) ([]*RoomInfo, error)
	GetResult(ctx context.Context, roomID string) (*session.GameResult, error)
	ListResults(ctx context.Context) ([]session.GameResult, error)

	// Server
	Rules(ctx context.Context) *RulesInfo
	Stats(ctx context.Context) (*session.Stats, error)
	ReapIdle(ctx context.Context, maxIdle time.Duration) int
}

// SessionManager defines the room registry operations the service drives
type SessionManager interface {
	Join(connectionID, username string) (session.JoinResult, error)
	SubmitFleet(roomID, connectionID string, cellSets [][]engine.Coordinate) (engine.Snapshot, error)
	Fire(roomID, connectionID string, target engine.Coordinate) (engine.FireOutcome, error)
	Disconnect(connectionID string)
	SeatOf(connectionID string) (session.Seat, bool)
	Get(roomID, viewerConnectionID string) (engine.Snapshot, error)
	List() []engine.Snapshot
	Result(roomID string) (session.GameResult, bool)
	Results() []session.GameResult
	Rules() engine.Rules
	Stats() session.Stats
	CleanupIdleRooms(maxIdle time.Duration) int
}
