package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/simonyos/mango/internal/chat"
	"github.com/simonyos/mango/internal/config"
	"github.com/simonyos/mango/internal/logging"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat in line mode, without the full-screen panel",
	Long: `Chat with the active model one line at a time. Replies stream straight to the
terminal and earlier turns stay in the conversation until /clear.

Up and down recall earlier input of this session. Ctrl+D or /quit leaves the
chat, Ctrl+C while a reply is streaming stops it and exits.

Commands:
  /summarize <url>  summarize a web page
  /clear            start a new conversation
  /help             list commands
  /quit             leave`,
	Run: runChat,
}

// lineReader reads one line after showing prompt.
type lineReader interface {
	Prompt(prompt string) (string, error)
}

// historyReader records every non-empty line in the liner history.
type historyReader struct {
	*liner.State
}

func (h historyReader) Prompt(prompt string) (string, error) {
	input, err := h.State.Prompt(prompt)
	if err == nil && strings.TrimSpace(input) != "" {
		h.AppendHistory(input)
	}
	return input, err
}

func runChat(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		fail(err)
	}

	log, logFile, err := logging.OpenFile(cfg.DataDir, "mango.log", cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fail(err)
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx, cfg, log, true)
	if err != nil {
		fail(err)
	}
	defer s.Close()

	// input history lives only as long as the session
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	chatLoop(ctx, s, historyReader{line}, os.Stdout, log)
}

// chatLoop reads lines until EOF, /quit or ctx ends. Plain lines become chat
// turns of one conversation.
func chatLoop(ctx context.Context, s *session, in lineReader, w io.Writer, log *slog.Logger) {
	conv := chat.NewConversation()
	fmt.Fprintf(w, "Mango chat (%s). /help lists commands, /quit leaves.\n", s.link)

	for ctx.Err() == nil {
		input, err := in.Prompt("mango> ")
		if err != nil {
			// EOF or Ctrl+C at the prompt
			fmt.Fprintln(w)
			return
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		var start startFunc
		if strings.HasPrefix(input, "/") {
			name, arg, _ := strings.Cut(input, " ")
			arg = strings.TrimSpace(arg)
			switch name {
			case "/quit", "/exit":
				return
			case "/help":
				fmt.Fprintln(w, "  /summarize <url>  summarize a web page")
				fmt.Fprintln(w, "  /clear            start a new conversation")
				fmt.Fprintln(w, "  /quit             leave")
				continue
			case "/clear":
				conv.Clear()
				fmt.Fprintln(w, "Conversation cleared.")
				continue
			case "/summarize":
				if arg == "" {
					fmt.Fprintln(w, "Usage: /summarize <url>")
					continue
				}
				start = summarizeURL(arg)
			default:
				fmt.Fprintf(w, "Unknown command %s. Try /help.\n", name)
				continue
			}
		} else {
			text := input
			start = func(ctx context.Context, s *session, conv *chat.Conversation, sink chat.Sink) error {
				_, err := s.coord.Submit(ctx, conv, text, sink)
				return err
			}
		}

		turn, err := streamTurn(ctx, s, conv, w, log, start)
		switch {
		case turn.Error != nil:
			fmt.Fprintf(w, "Error: %s\n", describeTurnError(turn.Error))
		case err != nil:
			fmt.Fprintf(w, "Error: %v\n", err)
		}
	}
}

func init() {
	chatCmd.Flags().BoolVarP(&renderFlag, "render", "r", false, "render each answer as Markdown once complete")
	rootCmd.AddCommand(chatCmd)
}
