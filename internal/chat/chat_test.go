package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/simonyos/mango/internal/llm"
)

// scriptedProvider replays a fixed list of chunks and counts invocations.
type scriptedProvider struct {
	calls   atomic.Int32
	chunks  []llm.StreamChunk
	err     error
	panics  bool
	gate    chan struct{} // when set, the stream waits on it before replying
	lastReq llm.Request
	mu      sync.Mutex
}

func (p *scriptedProvider) GenerateStream(ctx context.Context, req llm.Request) (<-chan llm.StreamChunk, error) {
	p.calls.Add(1)
	p.mu.Lock()
	p.lastReq = req
	p.mu.Unlock()

	if p.panics {
		panic("adapter exploded")
	}
	if p.err != nil {
		return nil, p.err
	}

	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		if p.gate != nil {
			select {
			case <-p.gate:
			case <-ctx.Done():
				return
			}
		}
		for _, c := range p.chunks {
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (p *scriptedProvider) request() llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastReq
}

func (p *scriptedProvider) factory() llm.Factory {
	return func(llm.Config) (llm.Provider, error) { return p, nil }
}

// recorder collects events and signals on the terminal one.
type recorder struct {
	mu     sync.Mutex
	events []StreamEvent
	done   chan struct{}
	once   sync.Once
}

func newRecorder() *recorder {
	return &recorder{done: make(chan struct{})}
}

func (r *recorder) sink(ev StreamEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	if ev.Terminal() {
		r.once.Do(func() { close(r.done) })
	}
}

func (r *recorder) wait(t *testing.T) []StreamEvent {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatal("no terminal event")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StreamEvent, len(r.events))
	copy(out, r.events)
	return out
}

// staticSettings is an ActiveSettings backed by fixed values.
type staticSettings struct {
	provider *llm.Config
	prompt   string
	err      error
}

func (s staticSettings) ActiveProvider(context.Context) (llm.Config, bool, error) {
	if s.err != nil {
		return llm.Config{}, false, s.err
	}
	if s.provider == nil {
		return llm.Config{}, false, nil
	}
	return *s.provider, true, nil
}

func (s staticSettings) ActiveSystemPrompt(context.Context) (string, bool, error) {
	return s.prompt, s.prompt != "", nil
}

var testProvider = &llm.Config{Kind: llm.KindCompatible, EndpointURL: "http://h/v1", Model: "m"}

func text(chunks ...string) []llm.StreamChunk {
	out := make([]llm.StreamChunk, 0, len(chunks)+1)
	for _, c := range chunks {
		out = append(out, llm.StreamChunk{Text: c})
	}
	return append(out, llm.StreamChunk{Done: true})
}

func TestMultiplexerEventOrdering(t *testing.T) {
	p := &scriptedProvider{chunks: text("Hel", "lo", " world")}
	m := NewMultiplexer(p.factory())

	conv := NewConversation()
	turn := conv.Add(TurnChat, "greet")
	require.True(t, conv.Claim(turn.ID))

	rec := newRecorder()
	err := m.Run(context.Background(), TurnRequest{TurnID: turn.ID, Provider: *testProvider}, func(ev StreamEvent) {
		rec.sink(ev)
		conv.Apply(ev)
	})
	require.NoError(t, err)

	events := rec.wait(t)
	require.Len(t, events, 4)
	require.True(t, events[3].Final)
	require.Nil(t, events[3].Error)

	// nothing lands after the final event
	require.False(t, conv.Apply(deltaEvent(turn.ID, "!")))

	got, _ := conv.Get(turn.ID)
	require.Equal(t, "Hello world", got.AssistantText)
	require.Equal(t, StatusComplete, got.Status)
	require.Zero(t, m.Active())
}

func TestMultiplexerIgnoresChunksAfterDone(t *testing.T) {
	p := &scriptedProvider{chunks: []llm.StreamChunk{
		{Text: "a"}, {Done: true}, {Text: "ghost"},
	}}
	m := NewMultiplexer(p.factory())

	rec := newRecorder()
	require.NoError(t, m.Run(context.Background(), TurnRequest{TurnID: "t"}, rec.sink))
	events := rec.wait(t)
	require.Equal(t, []StreamEvent{deltaEvent("t", "a"), finalEvent("t")}, events)
}

func TestMultiplexerIdempotentStart(t *testing.T) {
	gate := make(chan struct{})
	p := &scriptedProvider{chunks: text("x"), gate: gate}
	m := NewMultiplexer(p.factory())

	req := TurnRequest{TurnID: "same", Provider: *testProvider}
	rec := newRecorder()
	require.True(t, m.Start(context.Background(), req, rec.sink))
	require.False(t, m.Start(context.Background(), req, rec.sink))
	require.ErrorIs(t, m.Run(context.Background(), req, rec.sink), ErrTurnActive)

	close(gate)
	events := rec.wait(t)
	require.Equal(t, int32(1), p.calls.Load())
	require.Len(t, events, 2)

	// the guard is released once the turn ends
	require.Eventually(t, func() bool { return m.Active() == 0 }, time.Second, 10*time.Millisecond)
}

func TestMultiplexerErrorContainment(t *testing.T) {
	tests := []struct {
		name     string
		provider *scriptedProvider
		factory  llm.Factory
		wantKind ErrorKind
		wantText string
	}{
		{
			name:     "stream setup fails",
			provider: &scriptedProvider{err: &llm.APIError{Provider: llm.KindGroq, StatusCode: 500}},
			wantKind: ErrorTransport,
		},
		{
			name:     "missing key",
			provider: &scriptedProvider{err: llm.ErrMissingAPIKey},
			wantKind: ErrorConfiguration,
		},
		{
			name: "error mid-stream",
			provider: &scriptedProvider{chunks: []llm.StreamChunk{
				{Text: "par"}, {Error: errors.New("connection reset")},
			}},
			wantKind: ErrorTransport,
			wantText: "par",
		},
		{
			name: "malformed chunk",
			provider: &scriptedProvider{chunks: []llm.StreamChunk{
				{Error: llm.ErrMalformedChunk},
			}},
			wantKind: ErrorMalformed,
		},
		{
			name:     "adapter panics",
			provider: &scriptedProvider{panics: true},
			wantKind: ErrorTransport,
		},
		{
			name:     "factory rejects config",
			factory:  func(llm.Config) (llm.Provider, error) { return nil, llm.ErrUnknownKind },
			wantKind: ErrorConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := tt.factory
			if factory == nil {
				factory = tt.provider.factory()
			}
			m := NewMultiplexer(factory)

			conv := NewConversation()
			turn := conv.Add(TurnChat, "q")
			conv.Claim(turn.ID)

			rec := newRecorder()
			require.NotPanics(t, func() {
				require.NoError(t, m.Run(context.Background(), TurnRequest{TurnID: turn.ID}, func(ev StreamEvent) {
					rec.sink(ev)
					conv.Apply(ev)
				}))
			})

			events := rec.wait(t)
			last := events[len(events)-1]
			require.NotNil(t, last.Error)
			require.Equal(t, tt.wantKind, last.Error.Kind)
			require.NotContains(t, last.Error.Message, "connection reset")

			got, _ := conv.Get(turn.ID)
			require.Equal(t, StatusError, got.Status)
			require.Equal(t, tt.wantText, got.AssistantText)
		})
	}
}

func TestMultiplexerTimeout(t *testing.T) {
	p := &scriptedProvider{chunks: text("never"), gate: make(chan struct{})}
	m := NewMultiplexer(p.factory(), WithTurnTimeout(50*time.Millisecond))

	rec := newRecorder()
	require.NoError(t, m.Run(context.Background(), TurnRequest{TurnID: "slow"}, rec.sink))
	events := rec.wait(t)
	require.Len(t, events, 1)
	require.Equal(t, ErrorTimeout, events[0].Error.Kind)
}

func TestMultiplexerSetTurnTimeout(t *testing.T) {
	p := &scriptedProvider{chunks: text("never"), gate: make(chan struct{})}
	m := NewMultiplexer(p.factory(), WithTurnTimeout(0))
	m.SetTurnTimeout(20 * time.Millisecond)

	rec := newRecorder()
	require.NoError(t, m.Run(context.Background(), TurnRequest{TurnID: "slow"}, rec.sink))
	require.Equal(t, ErrorTimeout, rec.wait(t)[0].Error.Kind)
}

func TestMultiplexerCancel(t *testing.T) {
	p := &scriptedProvider{chunks: text("never"), gate: make(chan struct{})}
	m := NewMultiplexer(p.factory())

	rec := newRecorder()
	require.True(t, m.Start(context.Background(), TurnRequest{TurnID: "c"}, rec.sink))
	require.Eventually(t, func() bool { return p.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.True(t, m.Cancel("c"))

	events := rec.wait(t)
	require.Equal(t, ErrorTransport, events[len(events)-1].Error.Kind)
	require.False(t, m.Cancel("unknown"))
}

func TestMultiplexerRejectsEmptyTurnID(t *testing.T) {
	m := NewMultiplexer(nil)
	require.ErrorIs(t, m.Run(context.Background(), TurnRequest{}, func(StreamEvent) {}), ErrEmptyTurnID)
	require.False(t, m.Start(context.Background(), TurnRequest{}, func(StreamEvent) {}))
}
