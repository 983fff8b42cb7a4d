package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Providers lists the provider names the client knows how to talk to.
var Providers = []string{"openai", "anthropic", "gemini"}

// expandEnvVar expands environment variable references in the given value
// Supports both $VAR and ${VAR} syntax
// Returns the expanded value. If the environment variable is not set, returns empty string.
func expandEnvVar(value string) (string, error) {
	if !strings.HasPrefix(value, "$") {
		return value, nil
	}

	var envVarName string
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		envVarName = value[2 : len(value)-1]
	} else {
		envVarName = strings.TrimPrefix(value, "$")
	}
	if envVarName == "" {
		return "", fmt.Errorf("empty environment variable reference: %q", value)
	}

	return os.Getenv(envVarName), nil
}

// GetBaseURL returns the base URL for the specified provider
// Environment variables are already expanded during LoadConfig()
func (c *Config) GetBaseURL(provider string) (string, error) {
	var baseURLValue string
	switch provider {
	case "openai":
		baseURLValue = c.OpenAIBaseURL
	case "anthropic":
		baseURLValue = c.AnthropicBaseURL
	case "gemini":
		baseURLValue = c.GeminiBaseURL
	default:
		return "", fmt.Errorf("unsupported provider: %s", provider)
	}

	if baseURLValue == "" {
		return "", fmt.Errorf("%s base URL is not configured. Set it in config file (%s_base_url) or environment variable (NOSTACK_%s_BASE_URL)", provider, provider, strings.ToUpper(provider))
	}

	return strings.TrimSuffix(baseURLValue, "/"), nil
}

// GetToken returns the token for the specified provider.
// The config value wins; a saved key from the credential source is the fallback.
func (c *Config) GetToken(provider string) (string, error) {
	var tokenValue string
	switch provider {
	case "openai":
		tokenValue = c.OpenAIToken
	case "anthropic":
		tokenValue = c.AnthropicToken
	case "gemini":
		tokenValue = c.GeminiToken
	default:
		return "", fmt.Errorf("unsupported provider: %s", provider)
	}

	if tokenValue == "" && c.credentials != nil {
		saved, err := c.credentials.Get(provider)
		if err == nil {
			tokenValue = saved
		}
	}

	if tokenValue == "" {
		return "", fmt.Errorf("%s API key is required. Set it in config file (%s_token), environment variable (NOSTACK_%s_TOKEN) or run 'nostack keys set %s'", provider, provider, strings.ToUpper(provider), provider)
	}

	return tokenValue, nil
}

// HasToken reports whether a token is available for the provider.
func (c *Config) HasToken(provider string) bool {
	_, err := c.GetToken(provider)
	return err == nil
}

// Snapshot returns a copy of c with the tokens of providers looked up
// now. The copy never consults the credential source, so it can be
// shared by goroutines while the keyring is only read here, one
// provider at a time.
func (c *Config) Snapshot(providers ...string) *Config {
	cp := *c
	cp.credentials = nil
	for _, provider := range providers {
		token, err := c.GetToken(provider)
		if err != nil {
			continue
		}
		switch provider {
		case "openai":
			cp.OpenAIToken = token
		case "anthropic":
			cp.AnthropicToken = token
		case "gemini":
			cp.GeminiToken = token
		}
	}
	return &cp
}

// ResolvePath converts a relative path to absolute path if needed
func ResolvePath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}

	configDir, err := configFileDir()
	if err != nil {
		return "", err
	}
	if configDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("error getting current working directory: %w", err)
		}
		return filepath.Join(cwd, path), nil
	}

	return filepath.Join(configDir, path), nil
}

// GetDataDir returns the directory holding sessions and the settings database.
// If a config file is used, data lives next to it.
// Otherwise, defaults to $HOME/.config/nostack
func GetDataDir() (string, error) {
	configDir, err := configFileDir()
	if err != nil {
		return "", err
	}
	if configDir != "" {
		return configDir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".config", "nostack"), nil
}

// configFileDir returns the absolute directory of the config file in use,
// or an empty string when no config file was loaded.
func configFileDir() (string, error) {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		return "", nil
	}

	configDir := filepath.Dir(configFile)
	if !filepath.IsAbs(configDir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current working directory: %w", err)
		}
		configDir = filepath.Join(cwd, configDir)
	}
	return configDir, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set.
// Missing files are skipped.
func LoadDotEnv(paths ...string) ([]string, error) {
	var loaded []string
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return loaded, fmt.Errorf("checking %s: %w", path, err)
		}
		if err := godotenv.Load(path); err != nil {
			return loaded, fmt.Errorf("loading %s: %w", path, err)
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}
