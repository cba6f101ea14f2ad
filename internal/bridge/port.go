package bridge

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// DefaultPortName is the port the panel opens to reach the assistant.
const DefaultPortName = "assistant"

// Conn is one end of an ordered, bidirectional port.
type Conn interface {
	// Send delivers env to the other end.
	Send(ctx context.Context, env *Envelope) error
	// Recv blocks for the next envelope. It returns ErrPortClosed once the
	// port is closed and drained.
	Recv(ctx context.Context) (*Envelope, error)
	// Close notifies the other end with a disconnect and releases the port.
	Close() error
	Name() string
	Session() string
}

// Listener accepts ports opened by panels.
type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	Close() error
}

// ValidatePortName rejects names that cannot be used as a subject token.
func ValidatePortName(name string) error {
	if name == "" || strings.ContainsAny(name, ".*> \t\n") {
		return fmt.Errorf("%w: %q", ErrInvalidPortName, name)
	}
	return nil
}

const pipeBuffer = 256

// pipeConn is one end of an in-memory port.
type pipeConn struct {
	name, session string
	in            chan *Envelope
	out           chan *Envelope
	closed        chan struct{} // shared by both ends
	once          *sync.Once
}

// Pipe returns the two ends of an in-memory port.
func Pipe(name string) (Conn, Conn) {
	session := uuid.NewString()
	ab := make(chan *Envelope, pipeBuffer)
	ba := make(chan *Envelope, pipeBuffer)
	closed := make(chan struct{})
	once := &sync.Once{}

	a := &pipeConn{name: name, session: session, in: ba, out: ab, closed: closed, once: once}
	b := &pipeConn{name: name, session: session, in: ab, out: ba, closed: closed, once: once}
	return a, b
}

func (p *pipeConn) Name() string    { return p.name }
func (p *pipeConn) Session() string { return p.session }

func (p *pipeConn) Send(ctx context.Context, env *Envelope) error {
	select {
	case <-p.closed:
		return ErrPortClosed
	default:
	}
	select {
	case p.out <- env:
		return nil
	case <-p.closed:
		return ErrPortClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeConn) Recv(ctx context.Context) (*Envelope, error) {
	select {
	case env := <-p.in:
		return env, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.closed:
		// drain what was sent before the close
		select {
		case env := <-p.in:
			return env, nil
		default:
			return nil, ErrPortClosed
		}
	}
}

func (p *pipeConn) Close() error {
	p.once.Do(func() {
		select {
		case p.out <- NewEnvelope(TypeDisconnect, p.name, p.session):
		default:
		}
		close(p.closed)
	})
	return nil
}

// MemoryListener hands out in-memory ports to in-process panels.
type MemoryListener struct {
	name   string
	accept chan Conn
	done   chan struct{}
	once   sync.Once
}

// NewMemoryListener creates a listener for port name.
func NewMemoryListener(name string) *MemoryListener {
	return &MemoryListener{
		name:   name,
		accept: make(chan Conn),
		done:   make(chan struct{}),
	}
}

// Dial opens a port to the listener.
func (l *MemoryListener) Dial(ctx context.Context) (Conn, error) {
	panel, host := Pipe(l.name)
	select {
	case l.accept <- host:
		return panel, nil
	case <-l.done:
		return nil, ErrListenerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *MemoryListener) Accept(ctx context.Context) (Conn, error) {
	select {
	case c := <-l.accept:
		return c, nil
	case <-l.done:
		return nil, ErrListenerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *MemoryListener) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}
