package engine

import (
	"fmt"
	"time"
)

// Room is the authoritative state of one two-player game
type Room struct {
	ID        string
	Players   [2]*Player
	State     RoomState
	Turn      int
	Winner    int
	Reason    FinishReason
	Starter   int
	Shots     []Shot
	CreatedAt time.Time
	UpdatedAt time.Time

	rules Rules
	rng   RandomSource
}

// NewRoom creates an empty room waiting for its first player
func NewRoom(id string, rules Rules, rng RandomSource) *Room {
	if rng == nil {
		rng = NewRandomSource()
	}
	now := time.Now()
	return &Room{
		ID:        id,
		State:     WaitingForOpponent,
		Turn:      NoPlayer,
		Winner:    NoPlayer,
		Starter:   NoPlayer,
		CreatedAt: now,
		UpdatedAt: now,
		rules:     rules,
		rng:       rng,
	}
}

// Seat places a connection into the next free slot. Filling the second slot
// moves the room to PlacingShips.
func (r *Room) Seat(connectionID, username string) (int, error) {
	if r.State != WaitingForOpponent {
		return NoPlayer, fmt.Errorf("%w: room %s is %s", ErrNotInState, r.ID, r.State)
	}
	if _, ok := r.SlotOf(connectionID); ok {
		return NoPlayer, fmt.Errorf("%w: %s", ErrAlreadySeated, connectionID)
	}

	slot := NoPlayer
	for i, p := range r.Players {
		if p == nil {
			slot = i
			break
		}
	}
	if slot == NoPlayer {
		return NoPlayer, fmt.Errorf("%w: %s", ErrRoomFull, r.ID)
	}

	r.Players[slot] = &Player{
		ConnectionID: connectionID,
		Username:     username,
		HasJoined:    true,
		JoinedAt:     time.Now(),
	}
	if r.Occupants() == 2 {
		r.State = PlacingShips
	}
	r.touch()
	return slot, nil
}

// SubmitFleet validates and stores a player's fleet. When both fleets are in,
// the room enters ActivePlay with a uniformly random starting player.
func (r *Room) SubmitFleet(connectionID string, cellSets [][]Coordinate) error {
	slot, ok := r.SlotOf(connectionID)
	if !ok {
		return fmt.Errorf("%w: %s is not seated in room %s", ErrUnknownPlayer, connectionID, r.ID)
	}
	if r.State != PlacingShips {
		return fmt.Errorf("%w: room %s is %s", ErrNotInState, r.ID, r.State)
	}
	player := r.Players[slot]
	if player.HasPlacedShips {
		return fmt.Errorf("%w: slot %d", ErrAlreadyPlaced, slot)
	}

	fleet, err := PlaceShips(cellSets, r.rules)
	if err != nil {
		return err
	}
	player.Fleet = fleet
	player.HasPlacedShips = true

	if r.Players[0].HasPlacedShips && r.Players[1].HasPlacedShips {
		r.State = ActivePlay
		r.Starter = r.rng.IntN(2)
		r.Turn = r.Starter
	}
	r.touch()
	return nil
}

// Fire resolves a shot from connectionID against the opponent's fleet.
// The turn passes after every processed shot; destroying the last ship
// finishes the room with the shooter as winner.
func (r *Room) Fire(connectionID string, target Coordinate) (FireOutcome, error) {
	slot, ok := r.SlotOf(connectionID)
	if !ok {
		return FireOutcome{}, fmt.Errorf("%w: %s is not seated in room %s", ErrUnknownPlayer, connectionID, r.ID)
	}
	if r.State != ActivePlay {
		return FireOutcome{}, fmt.Errorf("%w: room %s is %s", ErrNotInState, r.ID, r.State)
	}
	if slot != r.Turn {
		return FireOutcome{}, fmt.Errorf("%w: slot %d to move", ErrNotYourTurn, r.Turn)
	}

	victim := 1 - slot
	res := ResolveShot(r.Players[victim].Fleet, target)
	r.Shots = append(r.Shots, Shot{Shooter: slot, Target: target, Hit: res.Hit, Sunk: res.Sunk != nil})
	r.Turn = victim

	out := FireOutcome{
		Shooter: slot,
		Victim:  victim,
		Target:  target,
		Hit:     res.Hit,
		Winner:  NoPlayer,
	}
	if res.Sunk != nil {
		view := res.Sunk.View()
		out.Sunk = &view
	}
	if IsFleetDestroyed(r.Players[victim].Fleet) {
		r.finish(slot, ReasonFleetDestroyed)
		out.Finished = true
		out.Winner = slot
	}
	out.Remaining = r.RemainingCounts()
	out.VictimRemaining = out.Remaining[victim]
	out.NextTurn = r.Turn
	r.touch()
	return out, nil
}

// Forfeit ends the room because connectionID left. The other seated player,
// if any, wins. A sole occupant of a waiting room abandons it instead. It
// reports the winning slot, NoPlayer when there is none, and false when the
// room was already finished or the connection is not seated.
func (r *Room) Forfeit(connectionID string) (int, bool) {
	slot, ok := r.SlotOf(connectionID)
	if !ok || r.State == Finished {
		return NoPlayer, false
	}
	other := 1 - slot
	if r.Players[other] == nil {
		r.finish(NoPlayer, ReasonAbandoned)
		return NoPlayer, true
	}
	r.finish(other, ReasonForfeit)
	return other, true
}

func (r *Room) finish(winner int, reason FinishReason) {
	r.State = Finished
	r.Winner = winner
	r.Reason = reason
	r.Turn = NoPlayer
	r.touch()
}

func (r *Room) touch() {
	r.UpdatedAt = time.Now()
}

// SlotOf returns the slot occupied by connectionID
func (r *Room) SlotOf(connectionID string) (int, bool) {
	for i, p := range r.Players {
		if p != nil && p.ConnectionID == connectionID {
			return i, true
		}
	}
	return NoPlayer, false
}

// PlayerAt returns the player in slot, or nil
func (r *Room) PlayerAt(slot int) *Player {
	if slot < 0 || slot >= len(r.Players) {
		return nil
	}
	return r.Players[slot]
}

// Opponent returns the player facing connectionID, or nil
func (r *Room) Opponent(connectionID string) *Player {
	slot, ok := r.SlotOf(connectionID)
	if !ok {
		return nil
	}
	return r.Players[1-slot]
}

// Occupants is the number of seated players
func (r *Room) Occupants() int {
	n := 0
	for _, p := range r.Players {
		if p != nil {
			n++
		}
	}
	return n
}

// ConnectionIDs lists seated connections in slot order
func (r *Room) ConnectionIDs() []string {
	ids := make([]string, 0, 2)
	for _, p := range r.Players {
		if p != nil {
			ids = append(ids, p.ConnectionID)
		}
	}
	return ids
}

// RemainingCounts returns unsunk ships per slot
func (r *Room) RemainingCounts() [2]int {
	var counts [2]int
	for i, p := range r.Players {
		if p != nil {
			counts[i] = RemainingShips(p.Fleet)
		}
	}
	return counts
}

// Rules returns the placement limits this room enforces
func (r *Room) Rules() Rules { return r.rules }
