// Package engine provides the core game logic for the battleship server.
//
// The engine package implements the game mechanics including:
//   - Fleet placement and structural validation
//   - Shot resolution with hit, miss and sunk detection
//   - The per-room state machine (waiting, placing, playing, finished)
//   - Turn order and win detection
//
// Core Types:
//
// Fleet is an ordered list of Ships built by PlaceShips. Room holds two Player
// slots and drives the lifecycle of a single game. Coordinates are opaque
// strings compared by exact equality.
//
// Usage:
//
//	room := engine.NewRoom("a1f3", engine.Rules{}, engine.NewRandomSource())
//	room.Seat("conn-1", "alice")
//	room.Seat("conn-2", "bob")
//
//	room.SubmitFleet("conn-1", [][]engine.Coordinate{{"A1", "A2"}})
//	room.SubmitFleet("conn-2", [][]engine.Coordinate{{"C3"}})
//
//	outcome, err := room.Fire(room.PlayerAt(room.Turn).ConnectionID, "C3")
//
// Concurrency:
//
// Nothing in this package is safe for concurrent use. Callers serialize access
// to a Room, typically with one mutex per room (see package session).
package engine
