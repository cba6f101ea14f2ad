package chat

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simonyos/mango/internal/llm"
)

func TestBuildMessagesHistoryReconstruction(t *testing.T) {
	history := []Turn{
		{ID: "1", UserText: "A", AssistantText: "B", Status: StatusComplete},
		{ID: "2", UserText: "C", Status: StatusPending},
	}

	msgs := BuildMessages(history, history[1], 0)
	require.Equal(t, []llm.Message{
		{Role: llm.RoleUser, Content: "A"},
		{Role: llm.RoleAssistant, Content: "B"},
		{Role: llm.RoleUser, Content: "C"},
	}, msgs)
}

func TestBuildMessagesSkipsUnfinishedAndEmptyReplies(t *testing.T) {
	history := []Turn{
		{ID: "1", UserText: "q1", Status: StatusError},
		{ID: "2", UserText: "q2", AssistantText: "partial", Status: StatusError},
		{ID: "3", UserText: "q3", Status: StatusStreaming},
	}
	live := Turn{ID: "4", UserText: "q4", Status: StatusPending}

	msgs := BuildMessages(history, live, 0)
	require.Equal(t, []llm.Message{
		{Role: llm.RoleUser, Content: "q1"},
		{Role: llm.RoleUser, Content: "q2"},
		{Role: llm.RoleAssistant, Content: "partial"},
		{Role: llm.RoleUser, Content: "q4"},
	}, msgs)
}

func TestBuildMessagesLimit(t *testing.T) {
	var history []Turn
	for _, q := range []string{"a", "b", "c"} {
		history = append(history, Turn{ID: q, UserText: q, AssistantText: q + "!", Status: StatusComplete})
	}
	live := Turn{ID: "live", UserText: "d"}

	msgs := BuildMessages(history, live, 1)
	require.Equal(t, []llm.Message{
		{Role: llm.RoleUser, Content: "c"},
		{Role: llm.RoleAssistant, Content: "c!"},
		{Role: llm.RoleUser, Content: "d"},
	}, msgs)
}
