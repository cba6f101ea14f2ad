package bridge

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/simonyos/mango/internal/chat"
)

// EnvelopeType identifies what an envelope carries.
type EnvelopeType string

const (
	TypeStartTurn  EnvelopeType = "start_turn" // panel -> host, carries Turn
	TypePartial    EnvelopeType = "partial"    // host -> panel, carries a delta Event
	TypeTerminal   EnvelopeType = "terminal"   // host -> panel, carries the final or error Event
	TypeDisconnect EnvelopeType = "disconnect" // either side, the port is going away
	TypeHeartbeat  EnvelopeType = "heartbeat"  // host -> panel over NATS, the host is alive
)

// Envelope is the unit sent over a port.
type Envelope struct {
	ID        string            `json:"id"`
	Type      EnvelopeType      `json:"type"`
	Port      string            `json:"port"`
	Session   string            `json:"session"`
	Timestamp time.Time         `json:"timestamp"`
	Turn      *chat.TurnRequest `json:"turn,omitempty"`
	Event     *chat.StreamEvent `json:"event,omitempty"`
}

// NewEnvelope creates an envelope with a fresh id.
func NewEnvelope(typ EnvelopeType, port, session string) *Envelope {
	return &Envelope{
		ID:        uuid.NewString(),
		Type:      typ,
		Port:      port,
		Session:   session,
		Timestamp: time.Now().UTC(),
	}
}

// StartTurnEnvelope wraps a turn request.
func StartTurnEnvelope(port, session string, req chat.TurnRequest) *Envelope {
	env := NewEnvelope(TypeStartTurn, port, session)
	env.Turn = &req
	return env
}

// EventEnvelope wraps a stream event as partial or terminal.
func EventEnvelope(port, session string, ev chat.StreamEvent) *Envelope {
	typ := TypePartial
	if ev.Terminal() {
		typ = TypeTerminal
	}
	env := NewEnvelope(typ, port, session)
	env.Event = &ev
	return env
}

// Validate checks that the payload matches the type.
func (e *Envelope) Validate() error {
	switch e.Type {
	case TypeStartTurn:
		if e.Turn == nil || e.Turn.TurnID == "" {
			return fmt.Errorf("%w: start_turn without turn", ErrInvalidEnvelope)
		}
	case TypePartial:
		if e.Event == nil || e.Event.Terminal() {
			return fmt.Errorf("%w: partial without delta", ErrInvalidEnvelope)
		}
	case TypeTerminal:
		if e.Event == nil || !e.Event.Terminal() {
			return fmt.Errorf("%w: terminal without final or error", ErrInvalidEnvelope)
		}
	case TypeDisconnect, TypeHeartbeat:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEnvelope, e.Type)
	}
	if e.Session == "" {
		return fmt.Errorf("%w: missing session", ErrInvalidEnvelope)
	}
	return nil
}

// Encode serializes the envelope to JSON.
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEnvelope deserializes and validates an envelope.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}
