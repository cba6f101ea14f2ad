package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/simonyos/mango/internal/settings"
)

var (
	promptTitleFlag string
	promptTextFlag  string
	promptFileFlag  string
	promptUseFlag   bool
)

var promptsCmd = &cobra.Command{
	Use:     "prompts",
	Aliases: []string{"prompt"},
	Short:   "Manage system prompt templates",
	Long: `Manage the system prompt templates the assistant can use.

Without an active template the configured system_prompt, or the built-in
Mango prompt, is used.

Examples:
  mango prompts add --title Pirate --prompt "Answer like a pirate."
  mango prompts add --file reviewer.md
  mango prompts import ./prompts
  mango prompts use <id>`,
	Run: func(cmd *cobra.Command, args []string) {
		listPrompts()
	},
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List prompt templates",
	Run: func(cmd *cobra.Command, args []string) {
		listPrompts()
	},
}

var promptsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Save a new prompt template",
	Long: `Save a new prompt template from --prompt, or from a Markdown --file whose
optional YAML frontmatter sets the title.`,
	Run: func(cmd *cobra.Command, args []string) {
		var p settings.PromptTemplate
		if promptFileFlag != "" {
			data, err := os.ReadFile(promptFileFlag)
			if err != nil {
				fail(err)
			}
			fallback := strings.TrimSuffix(filepath.Base(promptFileFlag), ".md")
			p, err = settings.ParsePromptMarkdown(string(data), fallback)
			if err != nil {
				fail(err)
			}
		} else {
			p.SystemPrompt = promptTextFlag
		}
		if promptTitleFlag != "" {
			p.Title = promptTitleFlag
		}

		withStore(func(ctx context.Context, store *settings.Store) {
			saved, err := store.SavePrompt(ctx, p)
			if err != nil {
				fail(err)
			}
			if promptUseFlag {
				if _, err := store.UsePrompt(ctx, saved.ID); err != nil {
					fail(err)
				}
			}
			fmt.Printf("Saved %s (%s).\n", saved.Title, saved.ID)
		})
	},
}

var promptsDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"remove", "rm"},
	Short:   "Delete a prompt template",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withStore(func(ctx context.Context, store *settings.Store) {
			if err := store.DeletePrompt(ctx, args[0]); err != nil {
				fail(err)
			}
			fmt.Printf("Deleted %s.\n", args[0])
		})
	},
}

var promptsUseCmd = &cobra.Command{
	Use:   "use <id>",
	Short: "Make a prompt template active",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withStore(func(ctx context.Context, store *settings.Store) {
			p, err := store.UsePrompt(ctx, args[0])
			if err != nil {
				fail(err)
			}
			fmt.Printf("Using prompt %s.\n", p.Title)
		})
	},
}

var promptsImportCmd = &cobra.Command{
	Use:   "import <file|dir>",
	Short: "Import prompt templates from Markdown files",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withStore(func(ctx context.Context, store *settings.Store) {
			imported, err := store.ImportPrompts(ctx, args[0])
			if err != nil {
				fail(err)
			}
			for _, p := range imported {
				fmt.Printf("Imported %s (%s)\n", p.Title, p.ID)
			}
			fmt.Printf("%d prompt(s) imported.\n", len(imported))
		})
	},
}

func listPrompts() {
	withStore(func(ctx context.Context, store *settings.Store) {
		prompts, err := store.Prompts(ctx)
		if err != nil {
			fail(err)
		}
		if len(prompts) == 0 {
			fmt.Println("No prompt templates saved.")
			fmt.Println("\nUse 'mango prompts add --title <title> --prompt <text>' to add one.")
			return
		}
		active, err := store.ActivePrompt(ctx)
		if err != nil {
			fail(err)
		}

		table := uitable.New()
		table.MaxColWidth = 60
		table.AddRow("", "ID", "TITLE", "PROMPT")
		for _, p := range prompts {
			marker := ""
			if active != nil && active.ID == p.ID {
				marker = "*"
			}
			table.AddRow(marker, p.ID, p.Title, strings.ReplaceAll(p.SystemPrompt, "\n", " "))
		}
		fmt.Println(table)
	})
}

func init() {
	promptsAddCmd.Flags().StringVar(&promptTitleFlag, "title", "", "template title")
	promptsAddCmd.Flags().StringVar(&promptTextFlag, "prompt", "", "system prompt text")
	promptsAddCmd.Flags().StringVar(&promptFileFlag, "file", "", "Markdown file holding the prompt")
	promptsAddCmd.Flags().BoolVar(&promptUseFlag, "use", false, "make the new template active")
	promptsAddCmd.MarkFlagsMutuallyExclusive("prompt", "file")

	promptsCmd.AddCommand(promptsListCmd)
	promptsCmd.AddCommand(promptsAddCmd)
	promptsCmd.AddCommand(promptsDeleteCmd)
	promptsCmd.AddCommand(promptsUseCmd)
	promptsCmd.AddCommand(promptsImportCmd)
	rootCmd.AddCommand(promptsCmd)
}
