package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConversationLifecycle(t *testing.T) {
	c := NewConversation()
	turn := c.Add(TurnChat, "hi")
	require.NotEmpty(t, turn.ID)
	require.Equal(t, StatusPending, turn.Status)

	// events before the claim are ignored
	require.False(t, c.Apply(deltaEvent(turn.ID, "early")))

	require.True(t, c.Claim(turn.ID))
	require.False(t, c.Claim(turn.ID), "second claim must lose")
	require.True(t, c.InFlight())

	require.True(t, c.Apply(deltaEvent(turn.ID, "Hel")))
	require.True(t, c.Apply(deltaEvent(turn.ID, "lo")))
	require.True(t, c.Apply(finalEvent(turn.ID)))
	require.False(t, c.Apply(deltaEvent(turn.ID, " late")))

	got, ok := c.Get(turn.ID)
	require.True(t, ok)
	require.Equal(t, "Hello", got.AssistantText)
	require.Equal(t, StatusComplete, got.Status)
	require.False(t, c.InFlight())
}

func TestConversationErrorKeepsPartialText(t *testing.T) {
	c := NewConversation()
	turn := c.Add(TurnChat, "hi")
	require.True(t, c.Claim(turn.ID))

	c.Apply(deltaEvent(turn.ID, "part"))
	c.Apply(ErrorEvent(turn.ID, ErrorTransport))

	got, _ := c.Get(turn.ID)
	require.Equal(t, "part", got.AssistantText)
	require.Equal(t, StatusError, got.Status)
	require.True(t, got.IsComplete())
	require.Equal(t, ErrorTransport, got.Error.Kind)
}

func TestConversationRestart(t *testing.T) {
	c := NewConversation()
	turn := c.Add(TurnChat, "hi")
	require.False(t, c.Restart(turn.ID), "pending turns cannot restart")

	c.Claim(turn.ID)
	c.Apply(deltaEvent(turn.ID, "old"))
	c.Apply(finalEvent(turn.ID))

	require.True(t, c.Restart(turn.ID))
	got, _ := c.Get(turn.ID)
	require.Equal(t, turn.ID, got.ID)
	require.Equal(t, "hi", got.UserText)
	require.Empty(t, got.AssistantText)
	require.Equal(t, StatusPending, got.Status)
}

func TestConversationRemoveAndClear(t *testing.T) {
	c := NewConversation()
	a := c.Add(TurnChat, "a")
	c.AddSummary("Page", "content")
	require.Equal(t, 2, c.Len())

	require.True(t, c.Remove(a.ID))
	require.False(t, c.Remove(a.ID))
	turns := c.Turns()
	require.Len(t, turns, 1)
	require.Equal(t, TurnSummary, turns[0].Kind)
	require.Equal(t, "Page", turns[0].Title)

	c.Clear()
	require.Zero(t, c.Len())
}

func TestTurnsReturnsCopy(t *testing.T) {
	c := NewConversation()
	c.Add(TurnChat, "a")
	turns := c.Turns()
	turns[0].UserText = "mutated"
	require.Equal(t, "a", c.Turns()[0].UserText)
}
