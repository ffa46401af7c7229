package session

import "sync"

// Matchmaker pairs join requests strictly in arrival order. At most one room
// is pending (seated with a single player) at any time.
type Matchmaker struct {
	mu      sync.Mutex
	pending string
}

// Pair runs one matchmaking step atomically. step receives the pending room
// ID ("" when there is none) and returns the room ID that is pending after
// the step ("" when the caller completed a pair). On error the pending room
// is left unchanged.
func (mm *Matchmaker) Pair(step func(pending string) (string, error)) error {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	next, err := step(mm.pending)
	if err != nil {
		return err
	}
	mm.pending = next
	return nil
}

// Release clears the pending room if it is roomID
func (mm *Matchmaker) Release(roomID string) bool {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if roomID == "" || mm.pending != roomID {
		return false
	}
	mm.pending = ""
	return true
}

// Pending returns the pending room ID, or ""
func (mm *Matchmaker) Pending() string {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.pending
}
