package service

import (
	"errors"
	"time"

	"github.com/wricardo/mcp-training/battleship/game/engine"
)

var (
	// ErrResultNotFound is returned when no finished game is recorded for a room
	ErrResultNotFound = errors.New("result not found")
	// ErrNotSeated is returned by Leave for connections that are not in a room
	ErrNotSeated = errors.New("connection is not seated")
	// ErrMissingTarget is returned by Fire when no coordinate was given
	ErrMissingTarget = errors.New("target is required")
)

// JoinInfo is returned to a joining client
type JoinInfo struct {
	ConnectionID string `json:"connection_id"`
	Username     string `json:"username"`
	RoomID       string `json:"room_id"`
	Slot         int    `json:"slot"`
	Waiting      bool   `json:"waiting"`
	Message      string `json:"message"`
}

// FireResult contains the result of a shot
type FireResult struct {
	engine.FireOutcome
	Message string `json:"message"`
}

// RoomInfo is the listing entry for a live room
type RoomInfo struct {
	ID        string           `json:"id"`
	State     engine.RoomState `json:"state"`
	Players   []string         `json:"players"`
	Turn      int              `json:"turn"`
	Shots     int              `json:"shots"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// RulesInfo describes how the game is played on this server
type RulesInfo struct {
	MaxShips     int      `json:"max_ships"`
	MaxShipCells int      `json:"max_ship_cells"`
	Coordinates  string   `json:"coordinates"`
	Flow         []string `json:"flow"`
}
