package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/longkey1/nostack/internal/nostack/config"
	"github.com/longkey1/nostack/internal/nostack/credentials"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configFields = []string{
	"configfile", "model",
	"openai_base_url", "openai_token",
	"anthropic_base_url", "anthropic_token",
	"gemini_base_url", "gemini_token",
	"promptdirs", "max_tokens", "max_image_size", "render_markdown",
	"model_cache_hours", "session_message_threshold", "session_retention_days",
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config [field]",
	Short: "Display current configuration",
	Long: `Display the current configuration values.
This command shows all configuration values loaded from the config file and environment variables.
Tokens are masked.

If a field name is specified, only that field's value is displayed.
Available fields: ` + strings.Join(configFields, ", ") + `

Examples:
  nostack config                    # Show all configuration
  nostack config model              # Show only model
  nostack config anthropic_base_url # Show only Anthropic base URL
  nostack config promptdirs         # Show only prompt directories`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		values := configValues(cfg)

		if len(args) > 0 {
			field := strings.ToLower(args[0])
			v, ok := values[field]
			if !ok {
				fmt.Fprintf(os.Stderr, "Unknown field: %s\n", args[0])
				fmt.Fprintf(os.Stderr, "Available fields: %s\n", strings.Join(configFields, ", "))
				os.Exit(1)
			}
			fmt.Println(v)
			return
		}

		for _, field := range configFields {
			fmt.Printf("%s: %s\n", field, values[field])
		}
	},
}

func configValues(cfg *config.Config) map[string]string {
	model := cfg.Model
	if model == "" {
		model = "(catalog default)"
	}
	return map[string]string{
		"configfile":                viper.ConfigFileUsed(),
		"model":                     model,
		"openai_base_url":           cfg.OpenAIBaseURL,
		"openai_token":              credentials.Mask(cfg.OpenAIToken),
		"anthropic_base_url":        cfg.AnthropicBaseURL,
		"anthropic_token":           credentials.Mask(cfg.AnthropicToken),
		"gemini_base_url":           cfg.GeminiBaseURL,
		"gemini_token":              credentials.Mask(cfg.GeminiToken),
		"promptdirs":                strings.Join(cfg.PromptDirs, ","),
		"max_tokens":                fmt.Sprint(cfg.MaxTokens),
		"max_image_size":            fmt.Sprint(cfg.MaxImageSize),
		"render_markdown":           fmt.Sprint(cfg.RenderMarkdown),
		"model_cache_hours":         fmt.Sprint(cfg.ModelCacheHours),
		"session_message_threshold": fmt.Sprint(cfg.SessionMessageThreshold),
		"session_retention_days":    fmt.Sprint(cfg.SessionRetentionDays),
	}
}

func init() {
	rootCmd.AddCommand(configCmd)
}
