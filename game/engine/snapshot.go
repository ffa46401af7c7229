package engine

import "time"

// PlayerView is the public part of a seated player
type PlayerView struct {
	Slot           int    `json:"slot"`
	Username       string `json:"username"`
	HasPlacedShips bool   `json:"has_placed_ships"`
	ShipsRemaining int    `json:"ships_remaining"`
}

// Snapshot is a room as seen by one viewer. The viewer's own fleet is
// included in full; of the opponent's fleet only sunk ships are revealed.
type Snapshot struct {
	RoomID       string       `json:"room_id"`
	State        RoomState    `json:"state"`
	Turn         int          `json:"turn"`
	Starter      int          `json:"starter"`
	Winner       int          `json:"winner"`
	Reason       FinishReason `json:"reason,omitempty"`
	Players      []PlayerView `json:"players"`
	YourSlot     int          `json:"your_slot"`
	YourTurn     bool         `json:"your_turn"`
	YourFleet    []ShipView   `json:"your_fleet,omitempty"`
	OpponentSunk []ShipView   `json:"opponent_sunk,omitempty"`
	Shots        []Shot       `json:"shots"`
	ShotCount    int          `json:"shot_count"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Snapshot builds a copy of the room for viewerConnectionID. An empty or
// unknown viewer gets the spectator view (no fleets).
func (r *Room) Snapshot(viewerConnectionID string) Snapshot {
	s := Snapshot{
		RoomID:    r.ID,
		State:     r.State,
		Turn:      r.Turn,
		Starter:   r.Starter,
		Winner:    r.Winner,
		Reason:    r.Reason,
		Players:   make([]PlayerView, 0, 2),
		YourSlot:  NoPlayer,
		Shots:     append([]Shot{}, r.Shots...),
		ShotCount: len(r.Shots),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}

	for i, p := range r.Players {
		if p == nil {
			continue
		}
		s.Players = append(s.Players, PlayerView{
			Slot:           i,
			Username:       p.Username,
			HasPlacedShips: p.HasPlacedShips,
			ShipsRemaining: RemainingShips(p.Fleet),
		})
	}

	slot, ok := r.SlotOf(viewerConnectionID)
	if !ok || viewerConnectionID == "" {
		return s
	}
	s.YourSlot = slot
	s.YourTurn = r.State == ActivePlay && r.Turn == slot
	for _, ship := range r.Players[slot].Fleet {
		s.YourFleet = append(s.YourFleet, ship.View())
	}
	if opp := r.Players[1-slot]; opp != nil {
		for _, ship := range opp.Fleet {
			if ship.Sunk() {
				s.OpponentSunk = append(s.OpponentSunk, ship.View())
			}
		}
	}
	return s
}
