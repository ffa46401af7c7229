package engine

import (
	"math/rand/v2"
	"time"
)

// Coordinate identifies a single grid cell, e.g. "B7". Coordinates are never
// normalized: "b7" and "B7" are different cells.
type Coordinate string

// RoomState is the lifecycle stage of a room
type RoomState string

const (
	WaitingForOpponent RoomState = "waiting_for_opponent"
	PlacingShips       RoomState = "placing_ships"
	ActivePlay         RoomState = "active_play"
	Finished           RoomState = "finished"
)

// FinishReason explains how a room reached Finished
type FinishReason string

const (
	ReasonFleetDestroyed FinishReason = "fleet_destroyed"
	ReasonForfeit        FinishReason = "forfeit"
	// ReasonAbandoned is used when the only occupant of a waiting room leaves.
	ReasonAbandoned FinishReason = "abandoned"
)

// NoPlayer marks an unset slot index (no winner yet, no turn outside ActivePlay).
const NoPlayer = -1

// Rules holds the optional structural limits applied at placement.
// A zero value means unlimited.
type Rules struct {
	MaxShips     int `json:"max_ships"`
	MaxShipCells int `json:"max_ship_cells"`
}

// RandomSource picks the starting player. Tests inject a fixed source.
type RandomSource interface {
	IntN(n int) int
}

// NewRandomSource returns a RandomSource backed by the global math/rand/v2 generator.
func NewRandomSource() RandomSource {
	return globalRand{}
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Player is a seated participant. It is owned by its Room.
type Player struct {
	ConnectionID   string
	Username       string
	Fleet          Fleet
	HasJoined      bool
	HasPlacedShips bool
	JoinedAt       time.Time
}

// Shot is one processed fire command
type Shot struct {
	Shooter int        `json:"shooter"`
	Target  Coordinate `json:"target"`
	Hit     bool       `json:"hit"`
	Sunk    bool       `json:"sunk"`
}

// ShipView is the serializable form of a Ship
type ShipView struct {
	Cells []Coordinate `json:"cells"`
	Hits  []Coordinate `json:"hits"`
	Sunk  bool         `json:"sunk"`
}

// FireOutcome is returned by Room.Fire
type FireOutcome struct {
	Shooter int        `json:"shooter"`
	Victim  int        `json:"victim"`
	Target  Coordinate `json:"target"`
	Hit     bool       `json:"hit"`
	Sunk    *ShipView  `json:"sunk,omitempty"`

	// Remaining is the count of unsunk ships per slot after the shot.
	Remaining       [2]int `json:"remaining"`
	VictimRemaining int    `json:"victim_remaining"`
	NextTurn        int    `json:"next_turn"`
	Finished        bool   `json:"finished"`
	Winner          int    `json:"winner"`
}
