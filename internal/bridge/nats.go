package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/simonyos/mango/internal/logging"
)

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL            string        `json:"url" yaml:"url"`
	CredsFile      string        `json:"creds_file,omitempty" yaml:"creds_file,omitempty"`
	Token          string        `json:"token,omitempty" yaml:"token,omitempty"`
	ConnectTimeout time.Duration `json:"connect_timeout,omitempty" yaml:"connect_timeout,omitempty"`
	ReconnectWait  time.Duration `json:"reconnect_wait,omitempty" yaml:"reconnect_wait,omitempty"`
	MaxReconnects  int           `json:"max_reconnects,omitempty" yaml:"max_reconnects,omitempty"`
}

// DefaultNATSConfig returns the default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:            nats.DefaultURL, // "nats://127.0.0.1:4222"
		ConnectTimeout: 5 * time.Second,
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  60,
	}
}

// Connect dials the broker. clientName shows up in server monitoring.
func Connect(cfg NATSConfig, clientName string, log *slog.Logger) (*nats.Conn, error) {
	log = logging.OrDiscard(log)
	def := DefaultNATSConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = def.ReconnectWait
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = def.MaxReconnects
	}

	opts := []nats.Option{
		nats.Name(clientName),
		nats.Timeout(cfg.ConnectTimeout),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected, reconnecting", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Debug("nats connection closed", "error", nc.LastError())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			log.Error("nats error", "subject", subject, "error", err)
		}),
	}
	if cfg.CredsFile != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFile))
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConnectionFailed, err)
	}
	return nc, nil
}

// Subject formatting helpers
func subjectUp(port, session string) string {
	return fmt.Sprintf("mango.port.%s.%s.up", port, session)
}

func subjectDown(port, session string) string {
	return fmt.Sprintf("mango.port.%s.%s.down", port, session)
}

func subjectUpWildcard(port string) string {
	return fmt.Sprintf("mango.port.%s.*.up", port)
}

func subjectMessage(name string) string {
	return fmt.Sprintf("mango.message.%s", name)
}

// Liveness of a NATS port. The host publishes a heartbeat on every open
// session each heartbeatInterval; the panel gives the port up after
// heartbeatMisses intervals without hearing from the host. A start_turn is
// acknowledged by the host within startAckTimeout.
var (
	heartbeatInterval = 5 * time.Second
	heartbeatMisses   = 3
	startAckTimeout   = 5 * time.Second
)

// natsConn is one end of a port carried over NATS subjects.
type natsConn struct {
	nc            *nats.Conn
	name, session string
	sendSubject   string
	sub           *nats.Subscription // panel side only
	in            chan *Envelope
	closed        chan struct{}
	once          sync.Once
	onClose       func()
	log           *slog.Logger

	// panel side: when the host was last heard from
	lastSeen  atomic.Int64
	watchOnce sync.Once
	interval  time.Duration
}

func newNATSConn(nc *nats.Conn, name, session, sendSubject string, log *slog.Logger) *natsConn {
	return &natsConn{
		nc:          nc,
		name:        name,
		session:     session,
		sendSubject: sendSubject,
		in:          make(chan *Envelope, pipeBuffer),
		closed:      make(chan struct{}),
		log:         logging.OrDiscard(log),
		interval:    heartbeatInterval,
	}
}

func (c *natsConn) Name() string    { return c.name }
func (c *natsConn) Session() string { return c.session }

func (c *natsConn) deliver(env *Envelope) {
	select {
	case c.in <- env:
	case <-c.closed:
	}
}

func (c *natsConn) Send(ctx context.Context, env *Envelope) error {
	select {
	case <-c.closed:
		return ErrPortClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	data, err := env.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}
	if env.Type == TypeStartTurn {
		return c.sendStart(ctx, data)
	}
	if err := c.nc.Publish(c.sendSubject, data); err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}
	return nil
}

// sendStart publishes a start_turn as a request so a missing host is noticed
// right away. The first acknowledged start arms the heartbeat watchdog.
func (c *natsConn) sendStart(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, startAckTimeout)
	defer cancel()

	if _, err := c.nc.RequestWithContext(ctx, c.sendSubject, data); err != nil {
		if errors.Is(err, nats.ErrNoResponders) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, nats.ErrTimeout) {
			return fmt.Errorf("%w: %s", ErrNoHost, c.name)
		}
		return fmt.Errorf("failed to send start: %w", err)
	}
	c.seen()
	c.watchOnce.Do(func() { go c.watchHost() })
	return nil
}

func (c *natsConn) seen() {
	c.lastSeen.Store(time.Now().UnixNano())
}

// watchHost closes the port once the host has been silent for too long.
func (c *natsConn) watchHost() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	limit := time.Duration(heartbeatMisses) * c.interval

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			silent := time.Since(time.Unix(0, c.lastSeen.Load()))
			if silent > limit {
				c.log.Warn("host stopped responding, closing port", "port", c.name, "session", c.session, "silent", silent)
				c.markClosed()
				return
			}
		}
	}
}

// heartbeat publishes heartbeats from the host side until the port closes.
func (c *natsConn) heartbeat() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			data, err := NewEnvelope(TypeHeartbeat, c.name, c.session).Encode()
			if err != nil {
				continue
			}
			if err := c.nc.Publish(c.sendSubject, data); err != nil {
				c.log.Debug("heartbeat failed", "session", c.session, "error", err)
			}
		}
	}
}

// watchConnection closes the port when the NATS connection itself closes.
func (c *natsConn) watchConnection() {
	// RemoveStatusListener drops every listener on the connection, so the
	// channel stays registered; CLOSED is only ever reported once.
	status := c.nc.StatusChanged(nats.CLOSED)

	if c.nc.IsClosed() {
		c.markClosed()
		return
	}
	select {
	case <-status:
		c.log.Warn("nats connection closed, closing port", "port", c.name, "session", c.session)
		c.markClosed()
	case <-c.closed:
	}
}

func (c *natsConn) Recv(ctx context.Context) (*Envelope, error) {
	select {
	case env := <-c.in:
		return env, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		select {
		case env := <-c.in:
			return env, nil
		default:
			return nil, ErrPortClosed
		}
	}
}

func (c *natsConn) Close() error {
	var err error
	c.once.Do(func() {
		if data, encErr := NewEnvelope(TypeDisconnect, c.name, c.session).Encode(); encErr == nil {
			err = c.nc.Publish(c.sendSubject, data)
			if err == nil {
				err = c.nc.Flush()
			}
		}
		if c.sub != nil {
			_ = c.sub.Unsubscribe()
		}
		close(c.closed)
		if c.onClose != nil {
			c.onClose()
		}
	})
	return err
}

// markClosed closes the conn without notifying the other end, which already
// went away.
func (c *natsConn) markClosed() {
	c.once.Do(func() {
		if c.sub != nil {
			_ = c.sub.Unsubscribe()
		}
		close(c.closed)
		if c.onClose != nil {
			c.onClose()
		}
	})
}

// DialNATS opens a new port session from the panel side. The port closes,
// failing whatever the client still waits for, when the NATS connection
// closes or the host stops sending heartbeats.
func DialNATS(nc *nats.Conn, name string, log *slog.Logger) (Conn, error) {
	if nc == nil {
		return nil, ErrNotConnected
	}
	if err := ValidatePortName(name); err != nil {
		return nil, err
	}

	session := uuid.NewString()
	c := newNATSConn(nc, name, session, subjectUp(name, session), log)
	sub, err := nc.Subscribe(subjectDown(name, session), func(msg *nats.Msg) {
		env, err := DecodeEnvelope(msg.Data)
		if err != nil || env.Session != session {
			return
		}
		c.seen()
		if env.Type == TypeHeartbeat {
			return
		}
		c.deliver(env)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to port: %w", err)
	}
	c.sub = sub
	if err := nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("failed to flush subscription: %w", err)
	}
	go c.watchConnection()
	return c, nil
}

// NATSListener accepts port sessions published under one port name.
type NATSListener struct {
	nc     *nats.Conn
	name   string
	sub    *nats.Subscription
	log    *slog.Logger
	accept chan Conn
	done   chan struct{}
	once   sync.Once

	mu       sync.Mutex
	sessions map[string]*natsConn
}

// ListenNATS subscribes to every session opened on port name.
func ListenNATS(nc *nats.Conn, name string, log *slog.Logger) (*NATSListener, error) {
	if nc == nil {
		return nil, ErrNotConnected
	}
	if err := ValidatePortName(name); err != nil {
		return nil, err
	}

	l := &NATSListener{
		nc:       nc,
		name:     name,
		log:      logging.OrDiscard(log),
		accept:   make(chan Conn, 16),
		done:     make(chan struct{}),
		sessions: make(map[string]*natsConn),
	}
	sub, err := nc.Subscribe(subjectUpWildcard(name), l.handle)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to port %s: %w", name, err)
	}
	l.sub = sub
	if err := nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("failed to flush subscription: %w", err)
	}
	return l, nil
}

func (l *NATSListener) handle(msg *nats.Msg) {
	env, err := DecodeEnvelope(msg.Data)
	if err != nil {
		l.log.Warn("dropping invalid envelope", "subject", msg.Subject, "error", err)
		return
	}
	if msg.Subject != subjectUp(l.name, env.Session) {
		l.log.Warn("dropping envelope with mismatched session", "subject", msg.Subject)
		return
	}
	if msg.Reply != "" {
		if err := msg.Respond([]byte("ack")); err != nil {
			l.log.Warn("failed to acknowledge start", "session", env.Session, "error", err)
		}
	}

	l.mu.Lock()
	conn, ok := l.sessions[env.Session]
	if !ok {
		if env.Type == TypeDisconnect {
			l.mu.Unlock()
			return
		}
		conn = newNATSConn(l.nc, l.name, env.Session, subjectDown(l.name, env.Session), l.log)
		session := env.Session
		conn.onClose = func() { l.forget(session) }
		l.sessions[env.Session] = conn
		go conn.heartbeat()
	}
	l.mu.Unlock()

	if !ok {
		select {
		case l.accept <- conn:
		case <-l.done:
			return
		}
	}

	conn.deliver(env)
	if env.Type == TypeDisconnect {
		conn.markClosed()
	}
}

func (l *NATSListener) forget(session string) {
	l.mu.Lock()
	delete(l.sessions, session)
	l.mu.Unlock()
}

// Accept waits for the next new session.
func (l *NATSListener) Accept(ctx context.Context) (Conn, error) {
	select {
	case c := <-l.accept:
		return c, nil
	case <-l.done:
		return nil, ErrListenerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting sessions and closes the open ones.
func (l *NATSListener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		err = l.sub.Unsubscribe()

		l.mu.Lock()
		open := make([]*natsConn, 0, len(l.sessions))
		for _, c := range l.sessions {
			open = append(open, c)
		}
		l.mu.Unlock()
		for _, c := range open {
			_ = c.Close()
		}
	})
	return err
}
