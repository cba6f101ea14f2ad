package chat

import (
	"sync"

	"github.com/google/uuid"
)

// TurnSource is the view of the conversation the coordinator needs.
type TurnSource interface {
	Turns() []Turn
	Claim(id string) bool
}

// Conversation is the ordered in-memory chat history. All mutations go
// through its methods; stream events are folded in with Apply.
type Conversation struct {
	mu    sync.Mutex
	turns []Turn
}

// NewConversation returns an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{}
}

// Add appends a new pending turn.
func (c *Conversation) Add(kind TurnKind, userText string) Turn {
	return c.add(Turn{Kind: kind, UserText: userText})
}

// AddSummary appends a pending summary turn for a page.
func (c *Conversation) AddSummary(title, content string) Turn {
	return c.add(Turn{Kind: TurnSummary, Title: title, UserText: content})
}

func (c *Conversation) add(t Turn) Turn {
	t.ID = uuid.NewString()
	t.Status = StatusPending
	if t.Kind == "" {
		t.Kind = TurnChat
	}

	c.mu.Lock()
	c.turns = append(c.turns, t)
	c.mu.Unlock()
	return t
}

// Turns returns a snapshot of the history, oldest first.
func (c *Conversation) Turns() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Get returns the turn with id.
func (c *Conversation) Get(id string) (Turn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(id); i >= 0 {
		return c.turns[i], true
	}
	return Turn{}, false
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// Claim moves a pending turn to streaming. Only the first caller wins.
func (c *Conversation) Claim(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 || c.turns[i].Status != StatusPending {
		return false
	}
	c.turns[i].Status = StatusStreaming
	return true
}

// Apply folds an event into its turn. Events for unknown turns, or for turns
// that are not streaming, are dropped; it reports whether ev was applied.
func (c *Conversation) Apply(ev StreamEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(ev.TurnID)
	if i < 0 || c.turns[i].Status != StatusStreaming {
		return false
	}

	t := &c.turns[i]
	t.AssistantText += ev.Delta
	switch {
	case ev.Error != nil:
		t.Status = StatusError
		errInfo := *ev.Error
		t.Error = &errInfo
	case ev.Final:
		t.Status = StatusComplete
	}
	return true
}

// Restart clears a finished turn's reply and makes it pending again, keeping
// its id and user text.
func (c *Conversation) Restart(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 || !c.turns[i].IsComplete() {
		return false
	}
	c.turns[i].AssistantText = ""
	c.turns[i].Error = nil
	c.turns[i].Status = StatusPending
	return true
}

// Remove deletes a turn.
func (c *Conversation) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return false
	}
	c.turns = append(c.turns[:i], c.turns[i+1:]...)
	return true
}

// Clear drops the whole history.
func (c *Conversation) Clear() {
	c.mu.Lock()
	c.turns = nil
	c.mu.Unlock()
}

// InFlight reports whether any turn is pending or streaming.
func (c *Conversation) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.turns {
		if !t.IsComplete() {
			return true
		}
	}
	return false
}

func (c *Conversation) indexLocked(id string) int {
	for i := len(c.turns) - 1; i >= 0; i-- {
		if c.turns[i].ID == id {
			return i
		}
	}
	return -1
}
