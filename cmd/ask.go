package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/simonyos/mango/internal/chat"
	"github.com/simonyos/mango/internal/config"
	"github.com/simonyos/mango/internal/logging"
)

var renderFlag bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the active model a single question",
	Long: `Ask the active model a single question and stream the answer to stdout.

The question is read from the arguments, or from stdin when none are given.

Examples:
  mango ask "What is a mango?"
  git diff | mango ask
  mango ask --render "Explain goroutines with an example"`,
	Run: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" && !stdinIsTerminal() {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", err)
			os.Exit(1)
		}
		question = strings.TrimSpace(string(data))
	}
	if question == "" {
		fmt.Fprintln(os.Stderr, "Error: no question given")
		os.Exit(1)
	}

	os.Exit(runOneShot(func(ctx context.Context, s *session, conv *chat.Conversation, sink chat.Sink) error {
		_, err := s.coord.Submit(ctx, conv, question, sink)
		return err
	}))
}

// startFunc appends a turn to conv and starts it with sink.
type startFunc func(ctx context.Context, s *session, conv *chat.Conversation, sink chat.Sink) error

// runOneShot runs a single turn started by start and prints it. It returns
// the process exit code.
func runOneShot(start startFunc) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	log := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx, cfg, log, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer s.Close()

	turn, err := streamTurn(ctx, s, chat.NewConversation(), os.Stdout, log, start)
	if err != nil && !errors.Is(err, chat.ErrNoActiveModel) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if turn.Error != nil {
		fmt.Fprintf(os.Stderr, "\nError: %s\n", describeTurnError(turn.Error))
		return 1
	}
	return 0
}

// describeTurnError is the user-facing line for a failed turn.
func describeTurnError(e *chat.ErrorInfo) string {
	if e.Kind == chat.ErrorConfiguration {
		return e.Message + " Run 'mango models add' or 'mango models use <id>'."
	}
	return e.Message
}

// streamTurn starts a turn and writes its reply to w, live or rendered once
// complete with --render. It returns the finished turn.
func streamTurn(ctx context.Context, s *session, conv *chat.Conversation, w io.Writer, log *slog.Logger, start startFunc) (chat.Turn, error) {
	before := conv.Len()
	events := make(chan chat.StreamEvent, 256)
	sink := func(ev chat.StreamEvent) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	startErr := start(ctx, s, conv, sink)
	if startErr != nil && !errors.Is(startErr, chat.ErrNoActiveModel) {
		log.Debug("turn start failed", "error", startErr)
		if conv.Len() == before {
			// failed before a turn existed, so no event will follow
			return chat.Turn{}, startErr
		}
	}

	var id string
	for {
		select {
		case ev := <-events:
			id = ev.TurnID
			conv.Apply(ev)
			if ev.Delta != "" && !renderFlag {
				fmt.Fprint(w, ev.Delta)
			}
			if !ev.Terminal() {
				continue
			}
			turn, _ := conv.Get(id)
			if !renderFlag {
				fmt.Fprintln(w)
			} else if turn.AssistantText != "" {
				fmt.Fprint(w, render(turn.AssistantText))
			}
			return turn, startErr
		case <-ctx.Done():
			return chat.Turn{}, ctx.Err()
		}
	}
}

func render(markdown string) string {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(wrapWidth()))
	if err != nil {
		return markdown
	}
	out, err := r.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}

func init() {
	askCmd.Flags().BoolVarP(&renderFlag, "render", "r", false, "render the answer as Markdown once complete")
	rootCmd.AddCommand(askCmd)
}
