package cmd

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/simonyos/mango/internal/config"
	"github.com/simonyos/mango/internal/logging"
	"github.com/simonyos/mango/internal/tui"
	"github.com/simonyos/mango/internal/tui/theme"
)

var (
	bridgeFlag    string
	configDirFlag string
)

var rootCmd = &cobra.Command{
	Use:   "mango",
	Short: "Chat with hosted or local LLMs from your terminal",
	Long: `Mango is a streaming chat panel for several LLM providers.

Supported provider kinds:
  local-compatible - any OpenAI-compatible endpoint (LM Studio, vLLM, OpenAI)
  ollama           - a local Ollama server
  gemini           - Google Gemini (requires an API key)
  groq             - Groq (requires an API key)
  claude           - Anthropic Claude (requires an API key)

Add a model with 'mango models add', then run 'mango' to start chatting.
With bridge.mode set to nats, turns run on a 'mango serve' host instead.`,
	Run: runPanel,
}

func runPanel(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	theme.Current = theme.ByName(cfg.Theme)

	log, logFile, err := logging.OpenFile(cfg.DataDir, "mango.log", cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := openSession(ctx, cfg, log, true)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	// Start TUI with options to prevent terminal query responses from appearing
	p := tea.NewProgram(
		tui.New(ctx, tui.Options{
			Coordinator: s.coord,
			Store:       s.store,
			Messenger:   s.messenger,
			Link:        s.link,
			Logger:      log,
		}),
		tea.WithAltScreen(),
		tea.WithoutBracketedPaste(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running TUI: %v\n", err)
		os.Exit(1)
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(func() {
		if configDirFlag != "" {
			config.SetDir(configDirFlag)
		}
	})
	rootCmd.PersistentFlags().StringVar(&bridgeFlag, "bridge", "", "where turns run: local or nats (default from config)")
	rootCmd.PersistentFlags().StringVar(&configDirFlag, "config-dir", "", "config directory (default $MANGO_CONFIG_DIR or ~/.config/mango)")
}
