package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/simonyos/mango/internal/llm"
	"github.com/simonyos/mango/internal/logging"
)

// DefaultTurnTimeout bounds a single turn when no timeout is configured.
const DefaultTurnTimeout = 5 * time.Minute

// Multiplexer runs one provider stream per turn and turns it into
// StreamEvents. A turn id can only be running once at a time.
type Multiplexer struct {
	factory llm.Factory
	timeout time.Duration
	log     *slog.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// MultiplexerOption configures a Multiplexer.
type MultiplexerOption func(*Multiplexer)

// WithTurnTimeout bounds each turn. Zero or negative disables the bound.
func WithTurnTimeout(d time.Duration) MultiplexerOption {
	return func(m *Multiplexer) { m.timeout = d }
}

// WithLogger sets the logger for raw provider errors.
func WithLogger(l *slog.Logger) MultiplexerOption {
	return func(m *Multiplexer) { m.log = logging.OrDiscard(l) }
}

// NewMultiplexer creates a multiplexer building providers with factory.
// A nil factory uses llm.New.
func NewMultiplexer(factory llm.Factory, opts ...MultiplexerOption) *Multiplexer {
	if factory == nil {
		factory = llm.New
	}
	m := &Multiplexer{
		factory: factory,
		timeout: DefaultTurnTimeout,
		log:     logging.Discard(),
		active:  make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Multiplexer) acquire(turnID string, cancel context.CancelFunc) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.active[turnID]; ok {
		return false
	}
	m.active[turnID] = cancel
	return true
}

func (m *Multiplexer) release(turnID string) {
	m.mu.Lock()
	delete(m.active, turnID)
	m.mu.Unlock()
}

// Active returns the number of running turns.
func (m *Multiplexer) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Cancel stops a running turn. Its terminal event is still emitted.
func (m *Multiplexer) Cancel(turnID string) bool {
	m.mu.Lock()
	cancel, ok := m.active[turnID]
	m.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Start runs the turn in a new goroutine. It returns false, without calling
// emit, when the turn is already running.
func (m *Multiplexer) Start(ctx context.Context, req TurnRequest, emit Sink) bool {
	ctx, cancel := m.turnContext(ctx)
	if req.TurnID == "" || !m.acquire(req.TurnID, cancel) {
		cancel()
		return false
	}
	go m.run(ctx, cancel, req, emit)
	return true
}

// Run drives the turn to completion on the calling goroutine. Every outcome,
// including a panic inside the provider, ends in exactly one terminal event.
func (m *Multiplexer) Run(ctx context.Context, req TurnRequest, emit Sink) error {
	if req.TurnID == "" {
		return ErrEmptyTurnID
	}
	ctx, cancel := m.turnContext(ctx)
	if !m.acquire(req.TurnID, cancel) {
		cancel()
		return fmt.Errorf("%w: %s", ErrTurnActive, req.TurnID)
	}
	m.run(ctx, cancel, req, emit)
	return nil
}

// SetTurnTimeout changes the bound for turns started afterwards.
func (m *Multiplexer) SetTurnTimeout(d time.Duration) {
	m.mu.Lock()
	m.timeout = d
	m.mu.Unlock()
}

func (m *Multiplexer) turnContext(parent context.Context) (context.Context, context.CancelFunc) {
	m.mu.Lock()
	timeout := m.timeout
	m.mu.Unlock()
	if timeout > 0 {
		return context.WithTimeout(parent, timeout)
	}
	return context.WithCancel(parent)
}

func (m *Multiplexer) run(ctx context.Context, cancel context.CancelFunc, req TurnRequest, emit Sink) {
	log := m.log.With("turn_id", req.TurnID, "provider", req.Provider.Kind, "model", req.Provider.Model)
	defer m.release(req.TurnID)
	defer cancel()

	terminated := false
	send := func(ev StreamEvent) {
		if terminated {
			return
		}
		terminated = ev.Terminal()
		emit(ev)
	}
	fail := func(err error) {
		kind := classify(err)
		log.Warn("turn failed", "kind", kind, "error", err)
		send(ErrorEvent(req.TurnID, kind))
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("provider panicked", "panic", r)
			send(ErrorEvent(req.TurnID, ErrorTransport))
		}
	}()

	started := time.Now()
	provider, err := m.factory(req.Provider)
	if err != nil {
		fail(err)
		return
	}

	chunks, err := provider.GenerateStream(ctx, llm.Request{
		SystemPrompt: req.SystemPrompt,
		Messages:     req.Messages,
	})
	if err != nil {
		fail(err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			fail(ctx.Err())
			return
		case chunk, ok := <-chunks:
			if !ok {
				if err := ctx.Err(); err != nil {
					fail(err)
					return
				}
				send(finalEvent(req.TurnID))
				log.Debug("turn complete", "elapsed", time.Since(started))
				return
			}
			if chunk.Error != nil {
				fail(chunk.Error)
				return
			}
			if chunk.Text != "" {
				send(deltaEvent(req.TurnID, chunk.Text))
			}
			if chunk.Done {
				send(finalEvent(req.TurnID))
				log.Debug("turn complete", "elapsed", time.Since(started))
				return
			}
		}
	}
}

// Dispatcher ships a turn request to wherever the multiplexer runs and
// delivers the resulting events to sink.
type Dispatcher interface {
	Dispatch(ctx context.Context, req TurnRequest, sink Sink) error
}

// LocalDispatcher runs turns on an in-process multiplexer.
type LocalDispatcher struct {
	Mux *Multiplexer
}

// Dispatch starts the turn asynchronously. Cancelling ctx cancels the turn.
func (d LocalDispatcher) Dispatch(ctx context.Context, req TurnRequest, sink Sink) error {
	if !d.Mux.Start(ctx, req, sink) {
		if req.TurnID == "" {
			return ErrEmptyTurnID
		}
		return fmt.Errorf("%w: %s", ErrTurnActive, req.TurnID)
	}
	return nil
}

// IsTurnActive reports whether err is a duplicate-start rejection.
func IsTurnActive(err error) bool {
	return errors.Is(err, ErrTurnActive)
}
