package chat

import (
	"context"
	"errors"

	"github.com/simonyos/mango/internal/llm"
)

var (
	// ErrTurnActive is returned when a turn is started while already running.
	ErrTurnActive = errors.New("turn already active")

	// ErrNoActiveModel is returned when no provider is selected. The matching
	// configuration event has already been sent to the sink.
	ErrNoActiveModel = errors.New("no active model")

	// ErrEmptyTurnID is returned for a request without a turn id.
	ErrEmptyTurnID = errors.New("turn id is required")
)

// classify maps an adapter failure to the error kind shown to the user.
func classify(err error) ErrorKind {
	switch {
	case llm.IsConfigError(err):
		return ErrorConfiguration
	case llm.IsMalformed(err):
		return ErrorMalformed
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTimeout
	}
	return ErrorTransport
}
