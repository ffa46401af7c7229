package service

import (
	"context"
	"errors"

	"github.com/wricardo/mcp-training/battleship/game/engine"
)

// Codes for errors raised by the service itself
const (
	CodeNotSeated      = "not_seated"
	CodeResultNotFound = "result_not_found"
	CodeBadRequest     = "bad_request"
	CodeCancelled      = "cancelled"
)

// ErrorCode extends engine.ErrorCode with the service's own errors
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotSeated):
		return CodeNotSeated
	case errors.Is(err, ErrResultNotFound):
		return CodeResultNotFound
	case errors.Is(err, ErrMissingTarget):
		return CodeBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCancelled
	}
	return engine.ErrorCode(err)
}
