package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/simonyos/mango/internal/logging"
)

// MessagePage asks the host to fetch and convert a page.
const MessagePage = "page"

// PageRequest is the payload of a page message.
type PageRequest struct {
	URL string `json:"url"`
}

// Messenger sends one-shot request/response messages to the host.
type Messenger interface {
	Request(ctx context.Context, name string, req, resp any) error
}

// Handler answers one message. The result is JSON-encoded into the reply.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

type messageReply struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// RemoteError is a handler failure reported by the other side.
type RemoteError struct {
	Name    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("message %s failed: %s", e.Name, e.Message)
}

func handle(ctx context.Context, h Handler, payload []byte) []byte {
	var reply messageReply
	result, err := h(ctx, payload)
	if err == nil {
		reply.Result, err = json.Marshal(result)
	}
	if err != nil {
		reply = messageReply{Error: err.Error()}
	}
	data, _ := json.Marshal(reply)
	return data
}

func decodeReply(name string, data []byte, resp any) error {
	var reply messageReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if reply.Error != "" {
		return &RemoteError{Name: name, Message: reply.Error}
	}
	if resp == nil || len(reply.Result) == 0 {
		return nil
	}
	return json.Unmarshal(reply.Result, resp)
}

// LocalMessenger dispatches messages to handlers in the same process,
// round-tripping through JSON like the remote transport.
type LocalMessenger struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewLocalMessenger creates an empty local messenger.
func NewLocalMessenger() *LocalMessenger {
	return &LocalMessenger{handlers: make(map[string]Handler)}
}

// Handle registers h for name.
func (m *LocalMessenger) Handle(name string, h Handler) {
	m.mu.Lock()
	m.handlers[name] = h
	m.mu.Unlock()
}

func (m *LocalMessenger) Request(ctx context.Context, name string, req, resp any) error {
	m.mu.RLock()
	h, ok := m.handlers[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, name)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	return decodeReply(name, handle(ctx, h, payload), resp)
}

// NATSMessenger sends messages as NATS requests.
type NATSMessenger struct {
	nc *nats.Conn
}

// NewNATSMessenger creates a messenger on nc.
func NewNATSMessenger(nc *nats.Conn) *NATSMessenger {
	return &NATSMessenger{nc: nc}
}

func (m *NATSMessenger) Request(ctx context.Context, name string, req, resp any) error {
	if m.nc == nil {
		return ErrNotConnected
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	msg, err := m.nc.RequestWithContext(ctx, subjectMessage(name), payload)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			return fmt.Errorf("%w: %s", ErrNoHandler, name)
		}
		return fmt.Errorf("request %s: %w", name, err)
	}
	return decodeReply(name, msg.Data, resp)
}

// ServeMessages answers name requests on nc with h until the subscription is
// drained.
func ServeMessages(ctx context.Context, nc *nats.Conn, name string, h Handler, log *slog.Logger) (*nats.Subscription, error) {
	if nc == nil {
		return nil, ErrNotConnected
	}
	log = logging.OrDiscard(log)

	sub, err := nc.Subscribe(subjectMessage(name), func(msg *nats.Msg) {
		if err := msg.Respond(handle(ctx, h, msg.Data)); err != nil {
			log.Warn("failed to reply", "message", name, "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", name, err)
	}
	if err := nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("failed to flush subscription: %w", err)
	}
	return sub, nil
}
