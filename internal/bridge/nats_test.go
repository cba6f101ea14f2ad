package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/simonyos/mango/internal/chat"
	"github.com/simonyos/mango/internal/llm"
	"github.com/simonyos/mango/internal/page"
)

type staticSettings struct{}

func (staticSettings) ActiveProvider(context.Context) (llm.Config, bool, error) {
	return llm.Config{Kind: llm.KindOllama, Model: "llama3"}, true, nil
}

func (staticSettings) ActiveSystemPrompt(context.Context) (string, bool, error) {
	return "", false, nil
}

func startNATSServer(t *testing.T) *server.Server {
	t.Helper()
	ns, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	require.NoError(t, err)
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server not ready")
	}
	t.Cleanup(ns.Shutdown)
	return ns
}

func connectNATS(t *testing.T, ns *server.Server) *nats.Conn {
	t.Helper()
	nc, err := Connect(NATSConfig{URL: ns.ClientURL()}, "mango-test", nil)
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}

func startNATS(t *testing.T) *nats.Conn {
	t.Helper()
	return connectNATS(t, startNATSServer(t))
}

// serveNATSHost runs a host for p on nc until the test ends.
func serveNATSHost(t *testing.T, nc *nats.Conn, p *gatedProvider) {
	t.Helper()
	l, err := ListenNATS(nc, DefaultPortName, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan struct{})
	go func() {
		defer close(served)
		_ = NewHost(chat.NewMultiplexer(p.factory()), nil).Serve(ctx, l)
	}()
	t.Cleanup(func() {
		cancel()
		l.Close()
		<-served
	})
}

// fastHeartbeat shortens the port liveness timers for one test.
func fastHeartbeat(t *testing.T, interval time.Duration) {
	t.Helper()
	prevInterval, prevAck := heartbeatInterval, startAckTimeout
	heartbeatInterval, startAckTimeout = interval, time.Second
	t.Cleanup(func() {
		heartbeatInterval, startAckTimeout = prevInterval, prevAck
	})
}

func TestDialNATSValidates(t *testing.T) {
	_, err := DialNATS(nil, "assistant", nil)
	require.ErrorIs(t, err, ErrNotConnected)

	nc := startNATS(t)
	_, err = DialNATS(nc, "bad.name", nil)
	require.ErrorIs(t, err, ErrInvalidPortName)
	_, err = ListenNATS(nc, "", nil)
	require.ErrorIs(t, err, ErrInvalidPortName)
}

func TestNATSPortRoundTrip(t *testing.T) {
	nc := startNATS(t)

	l, err := ListenNATS(nc, DefaultPortName, nil)
	require.NoError(t, err)
	defer l.Close()

	panel, err := DialNATS(nc, DefaultPortName, nil)
	require.NoError(t, err)
	defer panel.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req := chat.TurnRequest{TurnID: "t1"}
	require.NoError(t, panel.Send(ctx, StartTurnEnvelope(panel.Name(), panel.Session(), req)))

	host, err := l.Accept(ctx)
	require.NoError(t, err)
	require.Equal(t, panel.Session(), host.Session())

	env, err := host.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, TypeStartTurn, env.Type)
	require.Equal(t, "t1", env.Turn.TurnID)

	for _, ev := range []chat.StreamEvent{{TurnID: "t1", Delta: "a"}, {TurnID: "t1", Delta: "b"}, {TurnID: "t1", Final: true}} {
		require.NoError(t, host.Send(ctx, EventEnvelope(host.Name(), host.Session(), ev)))
	}

	var deltas string
	for {
		env, err := panel.Recv(ctx)
		require.NoError(t, err)
		if env.Type == TypeTerminal {
			break
		}
		deltas += env.Event.Delta
	}
	require.Equal(t, "ab", deltas)

	// closing the panel reaches the host as a disconnect
	require.NoError(t, panel.Close())
	env, err = host.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, TypeDisconnect, env.Type)
	_, err = host.Recv(ctx)
	require.ErrorIs(t, err, ErrPortClosed)
}

func TestNATSHostStreamsTurn(t *testing.T) {
	nc := startNATS(t)
	p := &gatedProvider{chunks: []string{"over ", "nats"}}
	serveNATSHost(t, nc, p)

	conn, err := DialNATS(nc, DefaultPortName, nil)
	require.NoError(t, err)
	client := NewClient(conn, nil)
	defer client.Close()

	conv := chat.NewConversation()
	coord := chat.NewCoordinator(chat.CoordinatorConfig{
		Settings:   staticSettings{},
		Dispatcher: client,
	})

	log := newEventLog()
	turn, err := coord.Submit(context.Background(), conv, "hello", func(ev chat.StreamEvent) {
		conv.Apply(ev)
		log.sink(ev)
	})
	require.NoError(t, err)
	log.wait(t)

	got, _ := conv.Get(turn.ID)
	require.Equal(t, chat.StatusComplete, got.Status)
	require.Equal(t, "over nats", got.AssistantText)
}

func TestNATSMessenger(t *testing.T) {
	nc := startNATS(t)
	ctx := context.Background()

	m := NewNATSMessenger(nc)
	err := m.Request(ctx, "echo", echoRequest{Text: "hi"}, nil)
	require.ErrorIs(t, err, ErrNoHandler)

	sub, err := ServeMessages(ctx, nc, "echo", echoHandler, nil)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	var resp echoRequest
	require.NoError(t, m.Request(ctx, "echo", echoRequest{Text: "hi"}, &resp))
	require.Equal(t, "hi!", resp.Text)

	var remote *RemoteError
	require.ErrorAs(t, m.Request(ctx, "echo", echoRequest{}, &resp), &remote)
}

func TestFetchPageOverNATS(t *testing.T) {
	nc := startNATS(t)
	srv := pageServer(t)
	ctx := context.Background()

	sub, err := ServeMessages(ctx, nc, MessagePage, PageHandler(page.NewExtractor(srv.Client(), nil)), nil)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	c, err := FetchPage(ctx, NewNATSMessenger(nc), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "Fruit", c.Title)
}

func TestNATSDispatchWithoutHost(t *testing.T) {
	nc := startNATS(t)
	fastHeartbeat(t, time.Second)

	conn, err := DialNATS(nc, DefaultPortName, nil)
	require.NoError(t, err)
	client := NewClient(conn, nil)
	defer client.Close()

	err = client.Dispatch(context.Background(), chat.TurnRequest{TurnID: "t1"}, func(chat.StreamEvent) {})
	require.ErrorIs(t, err, ErrNoHost)
	require.Zero(t, client.Pending())

	// through the coordinator the failure becomes a terminal transport event
	conv := chat.NewConversation()
	coord := chat.NewCoordinator(chat.CoordinatorConfig{Settings: staticSettings{}, Dispatcher: client})
	log := newEventLog()
	_, err = coord.Submit(context.Background(), conv, "anyone there?", log.sink)
	require.ErrorIs(t, err, ErrNoHost)
	events := log.wait(t)
	require.Equal(t, chat.ErrorTransport, events[len(events)-1].Error.Kind)
}

func TestNATSClientFailsTurnsWhenConnectionCloses(t *testing.T) {
	ns := startNATSServer(t)
	p := &gatedProvider{chunks: []string{"never"}, gate: make(chan struct{})}
	serveNATSHost(t, connectNATS(t, ns), p)

	panelNC := connectNATS(t, ns)
	conn, err := DialNATS(panelNC, DefaultPortName, nil)
	require.NoError(t, err)
	client := NewClient(conn, nil)
	defer client.Close()

	log := newEventLog()
	require.NoError(t, client.Dispatch(context.Background(), chat.TurnRequest{TurnID: "t1"}, log.sink))
	require.Eventually(t, func() bool { return p.calls.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	panelNC.Close()

	events := log.wait(t)
	last := events[len(events)-1]
	require.NotNil(t, last.Error)
	require.Equal(t, chat.ErrorTransport, last.Error.Kind)
	require.Zero(t, client.Pending())

	select {
	case <-client.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("client still open after the connection closed")
	}
}

func TestNATSClientNoticesSilentHost(t *testing.T) {
	fastHeartbeat(t, 50*time.Millisecond)
	ns := startNATSServer(t)
	hostNC := connectNATS(t, ns)
	p := &gatedProvider{chunks: []string{"never"}, gate: make(chan struct{})}
	serveNATSHost(t, hostNC, p)

	conn, err := DialNATS(connectNATS(t, ns), DefaultPortName, nil)
	require.NoError(t, err)
	client := NewClient(conn, nil)
	defer client.Close()

	log := newEventLog()
	require.NoError(t, client.Dispatch(context.Background(), chat.TurnRequest{TurnID: "t1"}, log.sink))
	require.Eventually(t, func() bool { return p.calls.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	// the host process goes away without saying goodbye
	hostNC.Close()

	events := log.wait(t)
	require.Equal(t, chat.ErrorTransport, events[len(events)-1].Error.Kind)
	require.Zero(t, client.Pending())
}

func TestNATSHeartbeatKeepsSlowTurnAlive(t *testing.T) {
	fastHeartbeat(t, 50*time.Millisecond)
	ns := startNATSServer(t)
	gate := make(chan struct{})
	p := &gatedProvider{chunks: []string{"slow ", "reply"}, gate: gate}
	serveNATSHost(t, connectNATS(t, ns), p)

	conn, err := DialNATS(connectNATS(t, ns), DefaultPortName, nil)
	require.NoError(t, err)
	client := NewClient(conn, nil)
	defer client.Close()

	log := newEventLog()
	require.NoError(t, client.Dispatch(context.Background(), chat.TurnRequest{TurnID: "t1"}, log.sink))

	// silent provider for several heartbeat limits
	time.Sleep(500 * time.Millisecond)
	close(gate)

	events := log.wait(t)
	last := events[len(events)-1]
	require.True(t, last.Final)
	require.Nil(t, last.Error)
}
