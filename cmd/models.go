package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/simonyos/mango/internal/config"
	"github.com/simonyos/mango/internal/llm"
	"github.com/simonyos/mango/internal/settings"
)

var (
	modelTitleFlag    string
	modelKindFlag     string
	modelNameFlag     string
	modelEndpointFlag string
	modelAPIKeyFlag   string
	modelUseFlag      bool
	ollamaURLFlag     string
)

var modelsCmd = &cobra.Command{
	Use:     "models",
	Aliases: []string{"model"},
	Short:   "Manage chat models",
	Long: `Manage the provider and model configurations you can chat with.

Examples:
  mango models list
  mango models add --kind ollama --model llama3.1
  mango models add --kind claude --model claude-3-5-sonnet-latest --api-key sk-ant-...
  mango models add --kind local-compatible --endpoint http://localhost:1234/v1 --model qwen2.5
  mango models use <id>
  mango models tags`,
	Run: func(cmd *cobra.Command, args []string) {
		listModels()
	},
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved models",
	Run: func(cmd *cobra.Command, args []string) {
		listModels()
	},
}

var modelsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Save a new model",
	Long: `Save a new model configuration. The first saved model becomes active.

Provider kinds: local-compatible, ollama, gemini, groq, claude`,
	Run: func(cmd *cobra.Command, args []string) {
		kind, err := llm.ParseKind(modelKindFlag)
		if err != nil {
			fail(err)
		}
		endpoint := modelEndpointFlag
		if endpoint == "" && kind.NeedsEndpoint() {
			endpoint = settings.DefaultCompatibleEndpoint
		}
		p := settings.ProviderConfig{
			Title:       modelTitleFlag,
			Kind:        kind,
			EndpointURL: endpoint,
			APIKey:      modelAPIKeyFlag,
			Model:       modelNameFlag,
		}
		if p.APIKey == "" && kind.NeedsAPIKey() {
			fmt.Printf("Get an API key at %s\n", settings.APIKeyURL(kind))
		}

		withStore(func(ctx context.Context, store *settings.Store) {
			saved, err := store.SaveModel(ctx, p)
			if err != nil {
				fail(err)
			}
			if modelUseFlag {
				if _, err := store.UseModel(ctx, saved.ID); err != nil {
					fail(err)
				}
			}
			fmt.Printf("Saved %s (%s).\n", saved.DisplayTitle(), saved.ID)
		})
	},
}

var modelsEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change a saved model",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withStore(func(ctx context.Context, store *settings.Store) {
			p, err := store.Model(ctx, args[0])
			if err != nil {
				fail(err)
			}
			flags := cmd.Flags()
			if flags.Changed("title") {
				p.Title = modelTitleFlag
			}
			if flags.Changed("kind") {
				kind, err := llm.ParseKind(modelKindFlag)
				if err != nil {
					fail(err)
				}
				p.Kind = kind
			}
			if flags.Changed("model") {
				p.Model = modelNameFlag
			}
			if flags.Changed("endpoint") {
				p.EndpointURL = modelEndpointFlag
			}
			if flags.Changed("api-key") {
				p.APIKey = modelAPIKeyFlag
			}
			saved, err := store.SaveModel(ctx, p)
			if err != nil {
				fail(err)
			}
			fmt.Printf("Updated %s.\n", saved.DisplayTitle())
		})
	},
}

var modelsDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"remove", "rm"},
	Short:   "Delete a saved model",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withStore(func(ctx context.Context, store *settings.Store) {
			if err := store.DeleteModel(ctx, args[0]); err != nil {
				fail(err)
			}
			fmt.Printf("Deleted %s.\n", args[0])
		})
	},
}

var modelsUseCmd = &cobra.Command{
	Use:   "use <id>",
	Short: "Make a saved model active",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withStore(func(ctx context.Context, store *settings.Store) {
			p, err := store.UseModel(ctx, args[0])
			if err != nil {
				fail(err)
			}
			fmt.Printf("Now using %s.\n", p.DisplayTitle())
		})
	},
}

var modelsTagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List models installed on the Ollama server",
	Run: func(cmd *cobra.Command, args []string) {
		base := ollamaURLFlag
		if base == "" {
			base = config.Get().OllamaURL
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		tags, err := llm.ListOllamaModels(ctx, base)
		if err != nil {
			fail(err)
		}
		if len(tags) == 0 {
			fmt.Println("No models installed. Pull one with 'ollama pull <name>'.")
			return
		}

		table := uitable.New()
		table.MaxColWidth = 60
		table.AddRow("NAME", "SIZE", "MODIFIED")
		for _, m := range tags {
			table.AddRow(m.Name, humanize.Bytes(uint64(m.Size)), humanize.Time(m.ModifiedAt))
		}
		fmt.Println(table)
	},
}

func listModels() {
	withStore(func(ctx context.Context, store *settings.Store) {
		models, err := store.Models(ctx)
		if err != nil {
			fail(err)
		}
		if len(models) == 0 {
			fmt.Println("No models saved.")
			fmt.Println("\nUse 'mango models add --kind <kind> --model <name>' to add one.")
			return
		}
		active, err := store.ActiveModel(ctx)
		if err != nil {
			fail(err)
		}

		table := uitable.New()
		table.MaxColWidth = 50
		table.AddRow("", "ID", "TITLE", "KIND", "MODEL", "ENDPOINT", "API KEY")
		for _, p := range models {
			marker := ""
			if active != nil && active.ID == p.ID {
				marker = "*"
			}
			key := ""
			if p.APIKey != "" {
				key = config.MaskKey(p.APIKey)
			}
			table.AddRow(marker, p.ID, p.DisplayTitle(), p.Kind, p.Model, p.EndpointURL, key)
		}
		fmt.Println(table)
	})
}

// withStore opens the settings store for the duration of fn.
func withStore(fn func(ctx context.Context, store *settings.Store)) {
	store, err := settings.Open(settings.DefaultPath(config.Get().DataDir))
	if err != nil {
		fail(err)
	}
	defer store.Close()
	fn(context.Background(), store)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func init() {
	for _, c := range []*cobra.Command{modelsAddCmd, modelsEditCmd} {
		c.Flags().StringVar(&modelTitleFlag, "title", "", "display title")
		c.Flags().StringVar(&modelKindFlag, "kind", "", "provider kind (local-compatible, ollama, gemini, groq, claude)")
		c.Flags().StringVar(&modelNameFlag, "model", "", "model name sent to the provider")
		c.Flags().StringVar(&modelEndpointFlag, "endpoint", "", "endpoint URL (local-compatible, or an override)")
		c.Flags().StringVar(&modelAPIKeyFlag, "api-key", "", "API key (gemini, groq, claude)")
	}
	modelsAddCmd.Flags().BoolVar(&modelUseFlag, "use", false, "make the new model active")
	modelsAddCmd.MarkFlagRequired("kind")
	modelsTagsCmd.Flags().StringVar(&ollamaURLFlag, "url", "", "Ollama server URL (default from config)")

	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsAddCmd)
	modelsCmd.AddCommand(modelsEditCmd)
	modelsCmd.AddCommand(modelsDeleteCmd)
	modelsCmd.AddCommand(modelsUseCmd)
	modelsCmd.AddCommand(modelsTagsCmd)
	rootCmd.AddCommand(modelsCmd)
}
