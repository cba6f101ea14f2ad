package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simonyos/mango/internal/llm"
)

func newTestCoordinator(p *scriptedProvider, s ActiveSettings) *Coordinator {
	return NewCoordinator(CoordinatorConfig{
		Settings:      s,
		Dispatcher:    LocalDispatcher{Mux: NewMultiplexer(p.factory())},
		DefaultPrompt: "default prompt",
		SummaryPrompt: "summary prompt",
	})
}

func applyTo(conv *Conversation, rec *recorder) Sink {
	return func(ev StreamEvent) {
		conv.Apply(ev)
		rec.sink(ev)
	}
}

func TestCoordinatorStartsLatestPendingTurn(t *testing.T) {
	p := &scriptedProvider{chunks: text("D")}
	c := newTestCoordinator(p, staticSettings{provider: testProvider, prompt: "be nice"})

	conv := NewConversation()
	first := conv.Add(TurnChat, "A")
	conv.Claim(first.ID)
	conv.Apply(deltaEvent(first.ID, "B"))
	conv.Apply(finalEvent(first.ID))

	live := conv.Add(TurnChat, "C")
	rec := newRecorder()
	require.NoError(t, c.StartTurn(context.Background(), conv, applyTo(conv, rec)))
	rec.wait(t)

	req := p.request()
	require.Equal(t, "be nice", req.SystemPrompt)
	require.Equal(t, []llm.Message{
		{Role: llm.RoleUser, Content: "A"},
		{Role: llm.RoleAssistant, Content: "B"},
		{Role: llm.RoleUser, Content: "C"},
	}, req.Messages)

	got, _ := conv.Get(live.ID)
	require.Equal(t, "D", got.AssistantText)
	require.Equal(t, StatusComplete, got.Status)
}

func TestCoordinatorIdempotentStart(t *testing.T) {
	gate := make(chan struct{})
	p := &scriptedProvider{chunks: text("once"), gate: gate}
	c := newTestCoordinator(p, staticSettings{provider: testProvider})

	conv := NewConversation()
	conv.Add(TurnChat, "q")
	rec := newRecorder()
	sink := applyTo(conv, rec)

	require.NoError(t, c.StartTurn(context.Background(), conv, sink))
	require.NoError(t, c.StartTurn(context.Background(), conv, sink))
	close(gate)
	rec.wait(t)

	require.Equal(t, int32(1), p.calls.Load())
	require.Equal(t, "once", conv.Turns()[0].AssistantText)
}

func TestCoordinatorNoConfigShortCircuit(t *testing.T) {
	p := &scriptedProvider{chunks: text("unused")}
	c := newTestCoordinator(p, staticSettings{})

	conv := NewConversation()
	turn := conv.Add(TurnChat, "q")

	var events []StreamEvent
	err := c.StartTurn(context.Background(), conv, func(ev StreamEvent) {
		events = append(events, ev)
		conv.Apply(ev)
	})
	require.ErrorIs(t, err, ErrNoActiveModel)

	// delivered synchronously, before StartTurn returned
	require.Len(t, events, 1)
	require.True(t, events[0].Terminal())
	require.Equal(t, ErrorConfiguration, events[0].Error.Kind)
	require.Zero(t, p.calls.Load())

	got, _ := conv.Get(turn.ID)
	require.Equal(t, StatusError, got.Status)
}

func TestCoordinatorSettingsFailure(t *testing.T) {
	p := &scriptedProvider{}
	c := newTestCoordinator(p, staticSettings{err: errors.New("disk gone")})

	conv := NewConversation()
	conv.Add(TurnChat, "q")

	var events []StreamEvent
	err := c.StartTurn(context.Background(), conv, func(ev StreamEvent) { events = append(events, ev) })
	require.ErrorIs(t, err, ErrNoActiveModel)
	require.Len(t, events, 1)
	require.Zero(t, p.calls.Load())
}

func TestCoordinatorNothingPending(t *testing.T) {
	p := &scriptedProvider{}
	c := newTestCoordinator(p, staticSettings{provider: testProvider})

	called := false
	require.NoError(t, c.StartTurn(context.Background(), NewConversation(), func(StreamEvent) { called = true }))
	require.False(t, called)
	require.Zero(t, p.calls.Load())
}

func TestCoordinatorDefaultPrompt(t *testing.T) {
	p := &scriptedProvider{chunks: text("ok")}
	c := newTestCoordinator(p, staticSettings{provider: testProvider})

	conv := NewConversation()
	rec := newRecorder()
	_, err := c.Submit(context.Background(), conv, "q", applyTo(conv, rec))
	require.NoError(t, err)
	rec.wait(t)
	require.Equal(t, "default prompt", p.request().SystemPrompt)
}

func TestCoordinatorSummaryUsesSummaryPromptWithoutHistory(t *testing.T) {
	p := &scriptedProvider{chunks: text("tl;dr")}
	c := newTestCoordinator(p, staticSettings{provider: testProvider, prompt: "chat prompt"})

	conv := NewConversation()
	old := conv.Add(TurnChat, "earlier")
	conv.Claim(old.ID)
	conv.Apply(finalEvent(old.ID))

	rec := newRecorder()
	turn, err := c.Summarize(context.Background(), conv, "Example", "page body", applyTo(conv, rec))
	require.NoError(t, err)
	rec.wait(t)

	req := p.request()
	require.Equal(t, "summary prompt", req.SystemPrompt)
	require.Equal(t, []llm.Message{{Role: llm.RoleUser, Content: "page body"}}, req.Messages)

	got, _ := conv.Get(turn.ID)
	require.Equal(t, "tl;dr", got.AssistantText)
}

type failingDispatcher struct{}

func (failingDispatcher) Dispatch(context.Context, TurnRequest, Sink) error {
	return errors.New("port closed")
}

func TestCoordinatorDispatchFailure(t *testing.T) {
	c := NewCoordinator(CoordinatorConfig{
		Settings:   staticSettings{provider: testProvider},
		Dispatcher: failingDispatcher{},
	})

	conv := NewConversation()
	turn := conv.Add(TurnChat, "q")
	err := c.StartTurn(context.Background(), conv, func(ev StreamEvent) { conv.Apply(ev) })
	require.Error(t, err)

	got, _ := conv.Get(turn.ID)
	require.Equal(t, StatusError, got.Status)
	require.Equal(t, ErrorTransport, got.Error.Kind)
}
