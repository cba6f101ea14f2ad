package cmd

import (
	"fmt"
	"sort"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/simonyos/mango/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage mango configuration",
	Long: `Manage mango configuration including API keys, timeouts and the bridge.

Values can also be set with MANGO_* environment variables, for example
MANGO_TURN_TIMEOUT=2m or MANGO_BRIDGE_MODE=nats.

Examples:
  mango config                          # Show current config
  mango config set gemini <key>         # Set the Gemini API key
  mango config set turn_timeout 2m      # Bound each reply to two minutes
  mango config set bridge.mode nats     # Run turns on a 'mango serve' host
  mango config delete gemini            # Remove the Gemini API key`,
	Run: func(cmd *cobra.Command, args []string) {
		showConfig()
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value.

Available keys:
  openai, gemini, groq, claude - API keys per vendor
  data_dir        - where settings.db and mango.log live
  log_level       - debug, info, warn or error
  log_format      - text or json
  turn_timeout    - longest a single reply may take (e.g. 5m)
  history_limit   - completed turns replayed per request (0 = all)
  system_prompt   - default system prompt when no template is active
  summary_prompt  - system prompt for page summaries
  ollama_url      - Ollama server URL
  theme           - mango or tokyonight
  bridge.mode     - local or nats
  bridge.port     - port name shared by panel and host
  nats.url        - NATS server URL
  nats.token      - NATS auth token
  nats.creds_file - NATS credentials file`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		key := args[0]
		value := args[1]

		if err := config.Set(key, value); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Printf("Set %s successfully.\n", key)
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		key := args[0]
		keys := config.ListKeys()

		if val, ok := keys[key]; ok {
			fmt.Printf("%s: %s\n", key, val)
		} else {
			fmt.Printf("%s is not set\n", key)
		}
	},
}

var configDeleteCmd = &cobra.Command{
	Use:     "delete <key>",
	Aliases: []string{"remove", "unset"},
	Short:   "Delete a configuration value",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		key := args[0]

		if err := config.Delete(key); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Printf("Deleted %s.\n", key)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.ConfigPath())
	},
}

func showConfig() {
	fmt.Printf("Configuration file: %s\n\n", config.ConfigPath())

	keys := config.ListKeys()
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)

	table := uitable.New()
	table.MaxColWidth = 80
	table.Separator = "  "
	for _, k := range names {
		table.AddRow(k+":", keys[k])
	}
	fmt.Println(table)
}

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configDeleteCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}
