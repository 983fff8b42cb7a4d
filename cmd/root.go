/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"
	"path/filepath"
	"time"

	"github.com/longkey1/nostack/internal/nostack/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nostack",
	Short: "A terminal chat client for LLM APIs",
	Long: `nostack is a terminal chat client for OpenAI, Anthropic and Gemini models.
Responses stream in as rendered markdown, messages can carry images, and
conversations are kept as sessions that can be exported and imported.

Configuration is read from a TOML file and NOSTACK_* environment variables.
Preferences such as the theme and temperature live in a local settings database
(see 'nostack settings').`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/nostack/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// setupLogging writes human-readable logs to stderr; debug level with --verbose.
func setupLogging() {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	setupLogging()

	home, err := os.UserHomeDir()
	cobra.CheckErr(err)
	userConfigDir := filepath.Join(home, ".config", "nostack")

	// .env files only fill variables that are not already set
	loaded, err := config.LoadDotEnv(".env", filepath.Join(userConfigDir, ".env"))
	if err != nil {
		log.Warn().Err(err).Msg("failed to load .env file")
	}
	for _, path := range loaded {
		log.Debug().Str("path", path).Msg("loaded .env file")
	}

	viper.SetEnvPrefix("NOSTACK")
	viper.AutomaticEnv()

	// Later directories in the array take precedence over earlier ones
	defaultPromptDirs := []string{
		"/usr/share/nostack/prompts",
		"/usr/local/share/nostack/prompts",
		filepath.Join(userConfigDir, "prompts"),
	}
	defaultConfig := config.NewDefaultConfig(filepath.Join(userConfigDir, "prompts"))

	viper.SetDefault("model", defaultConfig.Model)
	viper.SetDefault("openai_base_url", defaultConfig.OpenAIBaseURL)
	viper.SetDefault("openai_token", defaultConfig.OpenAIToken)
	viper.SetDefault("anthropic_base_url", defaultConfig.AnthropicBaseURL)
	viper.SetDefault("anthropic_token", defaultConfig.AnthropicToken)
	viper.SetDefault("gemini_base_url", defaultConfig.GeminiBaseURL)
	viper.SetDefault("gemini_token", defaultConfig.GeminiToken)
	viper.SetDefault("prompt_dirs", defaultPromptDirs)
	viper.SetDefault("max_tokens", defaultConfig.MaxTokens)
	viper.SetDefault("max_image_size", defaultConfig.MaxImageSize)
	viper.SetDefault("render_markdown", defaultConfig.RenderMarkdown)
	viper.SetDefault("model_cache_hours", defaultConfig.ModelCacheHours)
	viper.SetDefault("session_message_threshold", defaultConfig.SessionMessageThreshold)
	viper.SetDefault("session_retention_days", defaultConfig.SessionRetentionDays)

	for _, key := range []string{
		"model",
		"openai_base_url", "openai_token",
		"anthropic_base_url", "anthropic_token",
		"gemini_base_url", "gemini_token",
		"max_tokens", "max_image_size", "render_markdown",
		"model_cache_hours", "session_message_threshold", "session_retention_days",
	} {
		viper.BindEnv(key)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			log.Error().Err(err).Str("path", cfgFile).Msg("failed to read config file")
		}
	} else {
		// System-wide config first (lower priority)
		for _, path := range []string{"/etc/nostack", "/usr/local/etc/nostack"} {
			viper.AddConfigPath(path)
		}
		viper.SetConfigType("toml")
		viper.SetConfigName("config")

		systemConfigLoaded := false
		if err := viper.ReadInConfig(); err == nil {
			systemConfigLoaded = true
			log.Debug().Str("path", viper.ConfigFileUsed()).Msg("loaded system-wide config")
		}

		// User config (higher priority) is merged on top of the system config
		viper.AddConfigPath(userConfigDir)
		if systemConfigLoaded {
			if err := viper.MergeInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					log.Error().Err(err).Msg("failed to merge user config file")
				}
			} else {
				log.Debug().Str("path", viper.ConfigFileUsed()).Msg("merged user config")
			}
		} else if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				log.Error().Err(err).Msg("failed to read config file")
			}
		}
	}

	log.Debug().
		Str("config_file", viper.ConfigFileUsed()).
		Str("model", viper.GetString("model")).
		Str("openai_base_url", viper.GetString("openai_base_url")).
		Str("anthropic_base_url", viper.GetString("anthropic_base_url")).
		Str("gemini_base_url", viper.GetString("gemini_base_url")).
		Strs("prompt_dirs", viper.GetStringSlice("prompt_dirs")).
		Msg("configuration loaded")
}
