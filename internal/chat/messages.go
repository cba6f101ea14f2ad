package chat

import "github.com/simonyos/mango/internal/llm"

// BuildMessages flattens the finished turns before live into a provider
// message list, oldest first, and appends the live prompt. Turns without a
// reply contribute only their user message. A positive limit keeps only the
// most recent limit turns of history.
func BuildMessages(history []Turn, live Turn, limit int) []llm.Message {
	done := make([]Turn, 0, len(history))
	for _, t := range history {
		if t.ID == live.ID || !t.IsComplete() {
			continue
		}
		done = append(done, t)
	}
	if limit > 0 && len(done) > limit {
		done = done[len(done)-limit:]
	}

	msgs := make([]llm.Message, 0, 2*len(done)+1)
	for _, t := range done {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: t.UserText})
		if t.AssistantText != "" {
			msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: t.AssistantText})
		}
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: live.UserText})
}
