// Package chat holds the turn lifecycle: the conversation store owned by the
// panel, the coordinator that starts a turn, and the multiplexer that drives
// one provider stream per turn.
package chat

import (
	"github.com/simonyos/mango/internal/llm"
)

// Status is the lifecycle state of a turn.
type Status string

const (
	StatusPending   Status = "pending"
	StatusStreaming Status = "streaming"
	StatusComplete  Status = "complete"
	StatusError     Status = "error"
)

// TurnKind distinguishes free chat from page summaries.
type TurnKind string

const (
	TurnChat    TurnKind = "chat"
	TurnSummary TurnKind = "summary"
)

// Turn is one user/assistant exchange.
type Turn struct {
	ID            string     `json:"id"`
	Kind          TurnKind   `json:"kind"`
	Title         string     `json:"title,omitempty"`
	UserText      string     `json:"userText"`
	AssistantText string     `json:"assistantText"`
	Status        Status     `json:"status"`
	Error         *ErrorInfo `json:"error,omitempty"`
}

// IsComplete reports whether the turn has received its terminal event.
func (t Turn) IsComplete() bool {
	return t.Status == StatusComplete || t.Status == StatusError
}

// ErrorKind classifies a failed turn.
type ErrorKind string

const (
	ErrorConfiguration ErrorKind = "configuration"
	ErrorTransport     ErrorKind = "transport"
	ErrorMalformed     ErrorKind = "malformed"
	ErrorTimeout       ErrorKind = "timeout"
)

// ErrorInfo is the user-facing description of a failed turn. Vendor detail
// never appears in Message.
type ErrorInfo struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

var errorMessages = map[ErrorKind]string{
	ErrorConfiguration: "No usable model is configured. Pick or add one in model settings.",
	ErrorTransport:     "Something went wrong while talking to the model. Please try again.",
	ErrorMalformed:     "The model sent a response that could not be read.",
	ErrorTimeout:       "The model took too long to respond.",
}

// NewErrorInfo returns the generic message for kind.
func NewErrorInfo(kind ErrorKind) *ErrorInfo {
	msg, ok := errorMessages[kind]
	if !ok {
		kind, msg = ErrorTransport, errorMessages[ErrorTransport]
	}
	return &ErrorInfo{Kind: kind, Message: msg}
}

// StreamEvent is one step of a turn's output. A turn yields any number of
// deltas followed by exactly one event with Final or Error set.
type StreamEvent struct {
	TurnID string     `json:"turnId"`
	Delta  string     `json:"delta,omitempty"`
	Final  bool       `json:"final,omitempty"`
	Error  *ErrorInfo `json:"error,omitempty"`
}

// Terminal reports whether no further events follow for this turn.
func (e StreamEvent) Terminal() bool {
	return e.Final || e.Error != nil
}

func deltaEvent(turnID, text string) StreamEvent {
	return StreamEvent{TurnID: turnID, Delta: text}
}

func finalEvent(turnID string) StreamEvent {
	return StreamEvent{TurnID: turnID, Final: true}
}

// ErrorEvent builds the terminal event for a failed turn.
func ErrorEvent(turnID string, kind ErrorKind) StreamEvent {
	return StreamEvent{TurnID: turnID, Error: NewErrorInfo(kind)}
}

// TurnRequest carries everything needed to run a turn away from the panel.
type TurnRequest struct {
	TurnID       string        `json:"turnId"`
	Provider     llm.Config    `json:"provider"`
	SystemPrompt string        `json:"systemPrompt,omitempty"`
	Messages     []llm.Message `json:"messages"`
}

// Sink receives the events of a turn, in order.
type Sink func(StreamEvent)
