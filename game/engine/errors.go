package engine

import "errors"

var (
	ErrUnknownRoom      = errors.New("unknown room")
	ErrUnknownPlayer    = errors.New("unknown player")
	ErrNotInState       = errors.New("operation not allowed in current room state")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrAlreadyPlaced    = errors.New("ships already placed")
	ErrInvalidPlacement = errors.New("invalid ship placement")
	ErrAlreadySeated    = errors.New("connection already seated in a room")
	ErrRoomFull         = errors.New("room is full")
)

// Error codes are stable, machine-friendly identifiers sent to clients.
const (
	CodeUnknownRoom      = "unknown_room"
	CodeUnknownPlayer    = "unknown_player"
	CodeNotInState       = "not_in_state"
	CodeNotYourTurn      = "not_your_turn"
	CodeAlreadyPlaced    = "already_placed"
	CodeInvalidPlacement = "invalid_placement"
	CodeAlreadySeated    = "already_seated"
	CodeRoomFull         = "room_full"
	CodeInternal         = "internal"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrUnknownRoom, CodeUnknownRoom},
	{ErrUnknownPlayer, CodeUnknownPlayer},
	{ErrNotInState, CodeNotInState},
	{ErrNotYourTurn, CodeNotYourTurn},
	{ErrAlreadyPlaced, CodeAlreadyPlaced},
	{ErrInvalidPlacement, CodeInvalidPlacement},
	{ErrAlreadySeated, CodeAlreadySeated},
	{ErrRoomFull, CodeRoomFull},
}

// ErrorCode returns the client-facing code for err, or CodeInternal when err
// does not wrap one of the package's sentinel errors.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}
