package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCredentials map[string]string

func (f fakeCredentials) Get(provider string) (string, error) {
	if v, ok := f[provider]; ok {
		return v, nil
	}
	return "", errors.New("not found")
}

func TestExpandEnvVar(t *testing.T) {
	t.Setenv("NOSTACK_TEST_VALUE", "secret")

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain value", "sk-123", "sk-123", false},
		{"dollar form", "$NOSTACK_TEST_VALUE", "secret", false},
		{"brace form", "${NOSTACK_TEST_VALUE}", "secret", false},
		{"unset variable", "$NOSTACK_TEST_UNSET", "", false},
		{"empty reference", "$", "", true},
		{"empty string", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandEnvVar(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetToken(t *testing.T) {
	cfg := NewDefaultConfig("/tmp/prompts")
	cfg.OpenAIToken = "sk-config"
	cfg.AnthropicToken = ""
	cfg.GeminiToken = ""

	token, err := cfg.GetToken("openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-config", token)

	_, err = cfg.GetToken("anthropic")
	assert.ErrorContains(t, err, "anthropic API key is required")

	cfg.SetCredentials(fakeCredentials{"anthropic": "sk-ant-saved", "openai": "sk-saved"})

	token, err = cfg.GetToken("anthropic")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-saved", token)

	// The config value takes precedence over a saved key.
	token, err = cfg.GetToken("openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-config", token)

	assert.False(t, cfg.HasToken("gemini"))
	assert.True(t, cfg.HasToken("anthropic"))

	_, err = cfg.GetToken("mistral")
	assert.ErrorContains(t, err, "unsupported provider")
}

func TestSnapshot(t *testing.T) {
	cfg := NewDefaultConfig("/tmp/prompts")
	cfg.OpenAIToken = "sk-config"
	cfg.AnthropicToken = ""
	cfg.GeminiToken = ""
	cfg.SetCredentials(fakeCredentials{"anthropic": "sk-ant-saved"})

	snap := cfg.Snapshot(Providers...)
	assert.Equal(t, "sk-config", snap.OpenAIToken)
	assert.Equal(t, "sk-ant-saved", snap.AnthropicToken)
	assert.Empty(t, snap.GeminiToken)
	assert.Nil(t, snap.credentials)

	// Keys saved after the snapshot are not seen by it.
	cfg.SetCredentials(fakeCredentials{"anthropic": "sk-ant-saved", "gemini": "g-saved"})
	assert.False(t, snap.HasToken("gemini"))
	assert.True(t, cfg.HasToken("gemini"))

	// The original is untouched.
	assert.Empty(t, cfg.AnthropicToken)
}

func TestGetBaseURL(t *testing.T) {
	cfg := NewDefaultConfig("/tmp/prompts")
	cfg.OpenAIBaseURL = "http://localhost:8080/v1/"

	url, err := cfg.GetBaseURL("openai")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/v1", url)

	url, err = cfg.GetBaseURL("anthropic")
	require.NoError(t, err)
	assert.Equal(t, "https://api.anthropic.com/v1", url)

	cfg.GeminiBaseURL = ""
	_, err = cfg.GetBaseURL("gemini")
	assert.ErrorContains(t, err, "NOSTACK_GEMINI_BASE_URL")
}

func TestGetProviderAndModelName(t *testing.T) {
	cfg := &Config{Model: "anthropic:claude-sonnet-4-0"}

	provider, err := cfg.GetProvider()
	require.NoError(t, err)
	assert.Equal(t, "anthropic", provider)

	name, err := cfg.GetModelName()
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-0", name)

	cfg.Model = "broken"
	_, err = cfg.GetProvider()
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("NOSTACK_DOTENV_TEST=from-file\n"), 0600))

	t.Setenv("NOSTACK_DOTENV_TEST", "")
	os.Unsetenv("NOSTACK_DOTENV_TEST")

	loaded, err := LoadDotEnv(filepath.Join(dir, "missing.env"), envFile)
	require.NoError(t, err)
	assert.Equal(t, []string{envFile}, loaded)
	assert.Equal(t, "from-file", os.Getenv("NOSTACK_DOTENV_TEST"))
}
