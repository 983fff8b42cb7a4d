package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/longkey1/nostack/internal/nostack/config"
	"github.com/spf13/cobra"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the configuration file",
	Long: `Initialize the configuration file with default settings.
The config file will be created at $HOME/.config/nostack/config.toml by default.
You can specify a different location using the --config option.

Tokens default to references to the OPENAI_API_KEY, ANTHROPIC_API_KEY and
GEMINI_API_KEY environment variables. Keys saved with 'nostack keys set' are
used when a token is empty.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %v", err)
		}

		configFile := filepath.Join(home, ".config", "nostack", "config.toml")
		if cfgFile != "" {
			configFile = cfgFile
		}

		configDir := filepath.Dir(configFile)
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %v", err)
		}

		promptsDir := filepath.Join(configDir, "prompts")

		f, err := os.OpenFile(configFile, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
		if os.IsExist(err) {
			return fmt.Errorf("config file already exists at: %s", configFile)
		}
		if err != nil {
			return fmt.Errorf("failed to create config file: %v", err)
		}
		defer f.Close()

		if err := writeDefaultConfig(f, config.NewDefaultConfig(promptsDir)); err != nil {
			return fmt.Errorf("failed to write config: %v", err)
		}

		if err := os.MkdirAll(promptsDir, 0755); err != nil {
			return fmt.Errorf("failed to create prompts directory: %v", err)
		}

		fmt.Printf("Configuration file created at: %s\n", configFile)
		fmt.Printf("Prompts directory created at: %s\n", promptsDir)
		return nil
	},
}

type configEntry struct {
	key     string
	comment string
	value   any
}

func defaultConfigEntries(cfg *config.Config) []configEntry {
	return []configEntry{
		{"model", `"provider:model", e.g. "anthropic:claude-sonnet-4-5". Empty uses the catalog default.`, cfg.Model},
		{"openai_base_url", "", cfg.OpenAIBaseURL},
		{"openai_token", `A key, or "$VAR" to read it from the environment.`, cfg.OpenAIToken},
		{"anthropic_base_url", "", cfg.AnthropicBaseURL},
		{"anthropic_token", "", cfg.AnthropicToken},
		{"gemini_base_url", "", cfg.GeminiBaseURL},
		{"gemini_token", "", cfg.GeminiToken},
		{"prompt_dirs", "Directories searched for <name>.txt system prompts, in order.", cfg.PromptDirs},
		{"max_tokens", "Response token limit. Anthropic requires one on every request.", cfg.MaxTokens},
		{"max_image_size", "Attached images are downscaled so the longest side fits in this many pixels.", cfg.MaxImageSize},
		{"render_markdown", "Render replies as markdown when stdout is a terminal.", cfg.RenderMarkdown},
		{"model_cache_hours", "How long 'nostack models --remote' reuses a fetched model list.", cfg.ModelCacheHours},
		{"session_message_threshold", "Warn before continuing a session with this many messages. 0 disables.", cfg.SessionMessageThreshold},
		{"session_retention_days", "Sessions older than this are removed by 'nostack sessions clear'.", cfg.SessionRetentionDays},
	}
}

// writeDefaultConfig writes cfg as a commented TOML file.
func writeDefaultConfig(w io.Writer, cfg *config.Config) error {
	if _, err := fmt.Fprintln(w, "# nostack configuration"); err != nil {
		return err
	}
	enc := toml.NewEncoder(w)
	for _, e := range defaultConfigEntries(cfg) {
		if e.comment != "" {
			if _, err := fmt.Fprintf(w, "\n# %s\n", e.comment); err != nil {
				return err
			}
		}
		if err := enc.Encode(map[string]any{e.key: e.value}); err != nil {
			return fmt.Errorf("encoding %s: %w", e.key, err)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(initCmd)
}
