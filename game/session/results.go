package session

import (
	"sync"
	"time"
)

// DefaultResultHistory is the number of finished games kept when no limit is configured.
const DefaultResultHistory = 100

// GameResult records how a finished game ended
type GameResult struct {
	RoomID         string    `json:"room_id"`
	Winner         int       `json:"winner"`
	WinnerUsername string    `json:"winner_username"`
	LoserUsername  string    `json:"loser_username"`
	Reason         string    `json:"reason"`
	Shots          int       `json:"shots"`
	Remaining      [2]int    `json:"remaining"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// ResultLog keeps the most recent results in memory, oldest evicted first
type ResultLog struct {
	mu    sync.RWMutex
	limit int
	order []string
	byID  map[string]GameResult
}

// NewResultLog creates a log holding at most limit results
func NewResultLog(limit int) *ResultLog {
	if limit <= 0 {
		limit = DefaultResultHistory
	}
	return &ResultLog{
		limit: limit,
		byID:  make(map[string]GameResult),
	}
}

// Add stores a result. A result for a reused room ID replaces the older one.
func (l *ResultLog) Add(res GameResult) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.byID[res.RoomID]; exists {
		for i, id := range l.order {
			if id == res.RoomID {
				l.order = append(l.order[:i], l.order[i+1:]...)
				break
			}
		}
	}
	l.byID[res.RoomID] = res
	l.order = append(l.order, res.RoomID)

	for len(l.order) > l.limit {
		delete(l.byID, l.order[0])
		l.order = l.order[1:]
	}
}

// Get returns the result for roomID
func (l *ResultLog) Get(roomID string) (GameResult, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	res, ok := l.byID[roomID]
	return res, ok
}

// List returns results newest first
func (l *ResultLog) List() []GameResult {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]GameResult, 0, len(l.order))
	for i := len(l.order) - 1; i >= 0; i-- {
		out = append(out, l.byID[l.order[i]])
	}
	return out
}

// Len is the number of stored results
func (l *ResultLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}
