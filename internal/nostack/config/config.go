package config

import (
	"fmt"

	"github.com/longkey1/nostack/internal/nostack"
	"github.com/spf13/viper"
)

// Config holds the configuration for the chat client
type Config struct {
	Model                   string   `toml:"model" mapstructure:"model"` // Format: "provider:model" (e.g., "openai:gpt-4.1"); empty uses the catalog default
	OpenAIBaseURL           string   `toml:"openai_base_url" mapstructure:"openai_base_url"`
	OpenAIToken             string   `toml:"openai_token" mapstructure:"openai_token"`
	AnthropicBaseURL        string   `toml:"anthropic_base_url" mapstructure:"anthropic_base_url"`
	AnthropicToken          string   `toml:"anthropic_token" mapstructure:"anthropic_token"`
	GeminiBaseURL           string   `toml:"gemini_base_url" mapstructure:"gemini_base_url"`
	GeminiToken             string   `toml:"gemini_token" mapstructure:"gemini_token"`
	PromptDirs              []string `toml:"prompt_dirs" mapstructure:"prompt_dirs"`
	MaxTokens               int      `toml:"max_tokens" mapstructure:"max_tokens"`             // Anthropic requires an explicit limit
	MaxImageSize            int      `toml:"max_image_size" mapstructure:"max_image_size"`     // Longest image side in pixels before downscaling
	RenderMarkdown          bool     `toml:"render_markdown" mapstructure:"render_markdown"`   // Render responses with glamour when stdout is a terminal
	ModelCacheHours         int      `toml:"model_cache_hours" mapstructure:"model_cache_hours"` // Freshness window for remote model lists
	SessionMessageThreshold int      `toml:"session_message_threshold" mapstructure:"session_message_threshold"` // 0 = disabled
	SessionRetentionDays    int      `toml:"session_retention_days" mapstructure:"session_retention_days"`       // Number of days to retain sessions (default: 30)

	credentials CredentialSource
}

// CredentialSource supplies API keys that are not present in the config file.
type CredentialSource interface {
	Get(provider string) (string, error)
}

// GetModel returns the model string
func (c *Config) GetModel() string {
	return c.Model
}

// GetProvider extracts provider name from the model string
func (c *Config) GetProvider() (string, error) {
	provider, _, err := nostack.ParseModelString(c.Model)
	return provider, err
}

// GetModelName extracts model name from the model string
func (c *Config) GetModelName() (string, error) {
	_, model, err := nostack.ParseModelString(c.Model)
	return model, err
}

// SetCredentials attaches a fallback source for provider tokens.
func (c *Config) SetCredentials(src CredentialSource) {
	c.credentials = src
}

// NewDefaultConfig returns a new Config with default values
func NewDefaultConfig(promptDir string) *Config {
	return &Config{
		Model:                   "", // empty: the catalog default ('nostack models default')
		OpenAIBaseURL:           "https://api.openai.com/v1",
		OpenAIToken:             "$OPENAI_API_KEY", // Default to env var
		AnthropicBaseURL:        "https://api.anthropic.com/v1",
		AnthropicToken:          "$ANTHROPIC_API_KEY",
		GeminiBaseURL:           "https://generativelanguage.googleapis.com/v1beta",
		GeminiToken:             "$GEMINI_API_KEY",
		PromptDirs:              []string{promptDir},
		MaxTokens:               8192,
		MaxImageSize:            2048,
		RenderMarkdown:          true,
		ModelCacheHours:         24,
		SessionMessageThreshold: 50, // Default threshold (0 = disabled)
		SessionRetentionDays:    30, // Default: delete sessions older than 30 days
	}
}

// LoadConfig loads configuration from viper
func LoadConfig() (*Config, error) {
	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Expand $VAR references in tokens and URLs
	for _, field := range []*string{
		&config.OpenAIBaseURL, &config.OpenAIToken,
		&config.AnthropicBaseURL, &config.AnthropicToken,
		&config.GeminiBaseURL, &config.GeminiToken,
	} {
		expanded, err := expandEnvVar(*field)
		if err != nil {
			return nil, err
		}
		*field = expanded
	}

	// Convert prompt directories to absolute paths
	for i, promptDir := range config.PromptDirs {
		absPath, err := ResolvePath(promptDir)
		if err != nil {
			return nil, fmt.Errorf("error resolving prompt directory path '%s': %w", promptDir, err)
		}
		config.PromptDirs[i] = absPath
	}

	return config, nil
}
