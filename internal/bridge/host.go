package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/simonyos/mango/internal/chat"
	"github.com/simonyos/mango/internal/logging"
)

// Host is the background side of the bridge. It runs turns received over a
// port and streams their events back on the same port.
type Host struct {
	mux *chat.Multiplexer
	log *slog.Logger
}

// NewHost creates a host running turns on mux.
func NewHost(mux *chat.Multiplexer, log *slog.Logger) *Host {
	return &Host{mux: mux, log: logging.OrDiscard(log)}
}

// Serve accepts ports from l until ctx is done or l is closed.
func (h *Host) Serve(ctx context.Context, l Listener) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := l.Accept(ctx)
		if err != nil {
			if errors.Is(err, ErrListenerClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.ServeConn(ctx, conn)
		}()
	}
}

// ServeConn handles one port until the panel disconnects. Disconnecting
// cancels the port's in-flight turns; their events are no longer delivered.
func (h *Host) ServeConn(ctx context.Context, conn Conn) {
	log := h.log.With("port", conn.Name(), "session", conn.Session())
	log.Debug("port opened")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer conn.Close()

	for {
		env, err := conn.Recv(ctx)
		if err != nil {
			if !errors.Is(err, ErrPortClosed) && ctx.Err() == nil {
				log.Warn("port receive failed", "error", err)
			}
			return
		}

		switch env.Type {
		case TypeStartTurn:
			h.startTurn(ctx, conn, *env.Turn, log)
		case TypeDisconnect:
			log.Debug("port disconnected")
			return
		default:
			log.Warn("unexpected envelope from panel", "type", env.Type)
		}
	}
}

func (h *Host) startTurn(ctx context.Context, conn Conn, req chat.TurnRequest, log *slog.Logger) {
	emit := func(ev chat.StreamEvent) {
		if err := conn.Send(ctx, EventEnvelope(conn.Name(), conn.Session(), ev)); err != nil {
			log.Debug("dropping event for closed port", "turn_id", ev.TurnID, "error", err)
		}
	}
	if !h.mux.Start(ctx, req, emit) {
		log.Debug("ignoring duplicate start", "turn_id", req.TurnID)
	}
}
