package chat

import (
	"context"
	"log/slog"

	"github.com/simonyos/mango/internal/llm"
	"github.com/simonyos/mango/internal/logging"
)

// ActiveSettings exposes the user's current selections. ok is false when
// nothing is selected.
type ActiveSettings interface {
	ActiveProvider(ctx context.Context) (cfg llm.Config, ok bool, err error)
	ActiveSystemPrompt(ctx context.Context) (prompt string, ok bool, err error)
}

// Coordinator turns the latest pending turn into a TurnRequest and hands it
// to a Dispatcher exactly once.
type Coordinator struct {
	settings      ActiveSettings
	dispatcher    Dispatcher
	defaultPrompt string
	summaryPrompt string
	historyLimit  int
	log           *slog.Logger
}

// CoordinatorConfig holds the coordinator's collaborators.
type CoordinatorConfig struct {
	Settings      ActiveSettings
	Dispatcher    Dispatcher
	DefaultPrompt string // used when no prompt template is active
	SummaryPrompt string // used for summary turns
	HistoryLimit  int    // 0 replays the full history
	Logger        *slog.Logger
}

// NewCoordinator creates a coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	return &Coordinator{
		settings:      cfg.Settings,
		dispatcher:    cfg.Dispatcher,
		defaultPrompt: cfg.DefaultPrompt,
		summaryPrompt: cfg.SummaryPrompt,
		historyLimit:  cfg.HistoryLimit,
		log:           logging.OrDiscard(cfg.Logger),
	}
}

// latestPending returns the index of the most recent pending turn, or -1.
func latestPending(turns []Turn) int {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Status == StatusPending {
			return i
		}
	}
	return -1
}

// StartTurn answers the most recent pending turn in src. It does nothing when
// there is no pending turn or when another caller already claimed it.
// Failures after the claim are reported to sink as a terminal event.
func (c *Coordinator) StartTurn(ctx context.Context, src TurnSource, sink Sink) error {
	turns := src.Turns()
	idx := latestPending(turns)
	if idx < 0 {
		return nil
	}
	live := turns[idx]

	if !src.Claim(live.ID) {
		c.log.Debug("turn already claimed", "turn_id", live.ID)
		return nil
	}

	provider, ok, err := c.settings.ActiveProvider(ctx)
	if err != nil {
		c.log.Error("failed to read active model", "error", err)
	}
	if err != nil || !ok {
		sink(ErrorEvent(live.ID, ErrorConfiguration))
		return ErrNoActiveModel
	}

	systemPrompt, err := c.systemPrompt(ctx, live.Kind)
	if err != nil {
		c.log.Warn("failed to read active prompt, using default", "error", err)
	}

	var history []Turn
	if live.Kind != TurnSummary {
		history = turns[:idx]
	}

	req := TurnRequest{
		TurnID:       live.ID,
		Provider:     provider,
		SystemPrompt: systemPrompt,
		Messages:     BuildMessages(history, live, c.historyLimit),
	}

	if err := c.dispatcher.Dispatch(ctx, req, sink); err != nil {
		c.log.Error("failed to dispatch turn", "turn_id", live.ID, "error", err)
		sink(ErrorEvent(live.ID, ErrorTransport))
		return err
	}
	return nil
}

func (c *Coordinator) systemPrompt(ctx context.Context, kind TurnKind) (string, error) {
	if kind == TurnSummary {
		return c.summaryPrompt, nil
	}
	prompt, ok, err := c.settings.ActiveSystemPrompt(ctx)
	if err != nil || !ok || prompt == "" {
		return c.defaultPrompt, err
	}
	return prompt, nil
}

// Submit appends a chat turn for text and starts it.
func (c *Coordinator) Submit(ctx context.Context, conv *Conversation, text string, sink Sink) (Turn, error) {
	t := conv.Add(TurnChat, text)
	return t, c.StartTurn(ctx, conv, sink)
}

// Summarize appends a summary turn for a page and starts it.
func (c *Coordinator) Summarize(ctx context.Context, conv *Conversation, title, content string, sink Sink) (Turn, error) {
	t := conv.AddSummary(title, content)
	return t, c.StartTurn(ctx, conv, sink)
}
