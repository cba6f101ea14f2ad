package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/simonyos/mango/internal/chat"
	"github.com/simonyos/mango/internal/logging"
)

// Client is the panel side of the bridge. It implements chat.Dispatcher by
// sending start_turn envelopes and routing events back by turn id.
type Client struct {
	conn Conn
	log  *slog.Logger

	mu    sync.Mutex
	sinks map[string]chat.Sink

	done chan struct{}
}

var _ chat.Dispatcher = (*Client)(nil)

// NewClient starts reading conn. Close releases it.
func NewClient(conn Conn, log *slog.Logger) *Client {
	c := &Client{
		conn:  conn,
		log:   logging.OrDiscard(log),
		sinks: make(map[string]chat.Sink),
		done:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Dispatch sends req to the host. Events for the turn go to sink in order.
func (c *Client) Dispatch(ctx context.Context, req chat.TurnRequest, sink chat.Sink) error {
	if req.TurnID == "" {
		return chat.ErrEmptyTurnID
	}

	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return ErrPortClosed
	default:
	}
	if _, ok := c.sinks[req.TurnID]; ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", chat.ErrTurnActive, req.TurnID)
	}
	c.sinks[req.TurnID] = sink
	c.mu.Unlock()

	if err := c.conn.Send(ctx, StartTurnEnvelope(c.conn.Name(), c.conn.Session(), req)); err != nil {
		c.mu.Lock()
		delete(c.sinks, req.TurnID)
		c.mu.Unlock()
		return fmt.Errorf("failed to send turn: %w", err)
	}
	return nil
}

// Pending returns the number of turns awaiting a terminal event.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sinks)
}

// Done is closed once the port is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close disconnects from the host.
func (c *Client) Close() error {
	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) readLoop() {
	defer c.failPending()

	for {
		env, err := c.conn.Recv(context.Background())
		if err != nil {
			return
		}

		switch env.Type {
		case TypePartial, TypeTerminal:
			c.route(*env.Event)
		case TypeDisconnect:
			c.log.Debug("host closed the port")
			return
		default:
			c.log.Warn("unexpected envelope from host", "type", env.Type)
		}
	}
}

func (c *Client) route(ev chat.StreamEvent) {
	c.mu.Lock()
	sink, ok := c.sinks[ev.TurnID]
	if ok && ev.Terminal() {
		delete(c.sinks, ev.TurnID)
	}
	c.mu.Unlock()

	if ok {
		sink(ev)
	}
}

// failPending ends every open turn with a transport error once the port is
// lost, so no turn is left streaming forever.
func (c *Client) failPending() {
	c.mu.Lock()
	pending := c.sinks
	c.sinks = make(map[string]chat.Sink)
	close(c.done)
	c.mu.Unlock()

	for id, sink := range pending {
		sink(chat.ErrorEvent(id, chat.ErrorTransport))
	}
}
