package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simonyos/mango/internal/bridge"
	"github.com/simonyos/mango/internal/chat"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <url>",
	Short: "Summarize a web page with the active model",
	Long: `Fetch a web page, convert it to Markdown and ask the active model for a summary.

In nats bridge mode the page is fetched by the 'mango serve' host.

Examples:
  mango summarize https://go.dev/blog/go1.22
  mango summarize --render example.com`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runOneShot(summarizeURL(args[0])))
	},
}

// normalizeURL adds https:// to a bare host.
func normalizeURL(raw string) string {
	if !strings.Contains(raw, "://") {
		return "https://" + raw
	}
	return raw
}

// summarizeURL fetches the page through the session messenger and starts a
// summary turn for it.
func summarizeURL(raw string) startFunc {
	url := normalizeURL(raw)
	return func(ctx context.Context, s *session, conv *chat.Conversation, sink chat.Sink) error {
		c, err := bridge.FetchPage(ctx, s.messenger, url)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", url, err)
		}
		title := c.Title
		if title == "" {
			title = url
		}
		_, err = s.coord.Summarize(ctx, conv, title, c.Prompt(), sink)
		return err
	}
}

func init() {
	summarizeCmd.Flags().BoolVarP(&renderFlag, "render", "r", false, "render the summary as Markdown once complete")
	rootCmd.AddCommand(summarizeCmd)
}
