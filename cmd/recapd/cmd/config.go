package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the effective configuration after merging the config file,
environment variables, and defaults. Credentials are redacted.

Configuration can be set via:
  - Config file (config.yaml in ., ./configs, /etc/recapd, or $HOME/.recapd)
  - Environment variables (RECAPD_JOBS_MAX_CONCURRENT, OPENAI_API_KEY, ...)
  - Command-line flags (for some options)`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		shown := *cfg
		shown.Credentials.OpenAIAPIKey = redact(shown.Credentials.OpenAIAPIKey)
		shown.Credentials.AnthropicAPIKey = redact(shown.Credentials.AnthropicAPIKey)
		shown.Credentials.ReplicateAPIToken = redact(shown.Credentials.ReplicateAPIToken)

		data, err := yaml.Marshal(shown)
		if err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
		fmt.Print(string(data))
		return nil
	},
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
