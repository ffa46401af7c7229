package session

// Event names delivered to clients
const (
	EventWaitingForOpponent   = "waiting_for_opponent"
	EventOpponentJoined       = "opponent_joined"
	EventFleetAccepted        = "fleet_accepted"
	EventGameStarted          = "game_started"
	EventFireOutcome          = "fire_outcome"
	EventShipsRemaining       = "ships_remaining"
	EventWinnerAnnounced      = "winner_announced"
	EventOpponentDisconnected = "opponent_disconnected"
	EventTimedOut             = "timed_out"
)

// Instructions is sent with game_started
const Instructions = "Both fleets are placed. Take turns firing at your opponent's grid; the first to sink every enemy ship wins."

// Event is a fire-and-forget notification for the transport layer
type Event struct {
	Name   string `json:"event"`
	RoomID string `json:"room_id,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// Broadcaster is implemented by the transport. Calls must not block on
// client I/O and must not call back into the Manager.
type Broadcaster interface {
	// JoinRoom adds a connection to a room's broadcast group
	JoinRoom(roomID, connectionID string)
	// LeaveRoom drops the room's broadcast group
	LeaveRoom(roomID string)
	ToRoom(roomID string, ev Event)
	ToConnection(connectionID string, ev Event)
}

// NopBroadcaster discards every event
type NopBroadcaster struct{}

func (NopBroadcaster) JoinRoom(string, string)    {}
func (NopBroadcaster) LeaveRoom(string)           {}
func (NopBroadcaster) ToRoom(string, Event)       {}
func (NopBroadcaster) ToConnection(string, Event) {}

// PlayerJoined is the payload of opponent_joined and waiting_for_opponent
type PlayerJoined struct {
	Slot    int      `json:"slot"`
	Players []string `json:"players"`
}

// FleetAccepted is the payload of fleet_accepted
type FleetAccepted struct {
	Slot     int    `json:"slot"`
	Username string `json:"username"`
}

// GameStarted is the payload of game_started
type GameStarted struct {
	Starter         int    `json:"starter"`
	StarterUsername string `json:"starter_username"`
	Instructions    string `json:"instructions"`
}

// ShipsRemaining is the payload of ships_remaining
type ShipsRemaining struct {
	Remaining [2]int `json:"remaining"`
}

// WinnerAnnounced is the payload of winner_announced
type WinnerAnnounced struct {
	Winner         int    `json:"winner"`
	WinnerUsername string `json:"winner_username"`
	Reason         string `json:"reason"`
}

// OpponentDisconnected is the payload of opponent_disconnected
type OpponentDisconnected struct {
	Slot     int    `json:"slot"`
	Username string `json:"username"`
}
