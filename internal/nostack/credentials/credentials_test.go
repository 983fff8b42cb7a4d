package credentials

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreEnabled(t *testing.T) {
	store := New(keyring.NewArrayKeyring(nil), true)

	_, err := store.Get("openai")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set("openai", "  sk-test-1234567890  "))
	require.NoError(t, store.Set("anthropic", "sk-ant-1"))

	key, err := store.Get("openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-test-1234567890", key)

	providers, err := store.Providers()
	require.NoError(t, err)
	assert.Equal(t, []string{"anthropic", "openai"}, providers)

	require.NoError(t, store.Delete("openai"))
	_, err = store.Get("openai")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.DeleteAll())
	providers, err = store.Providers()
	require.NoError(t, err)
	assert.Empty(t, providers)
}

func TestStoreValidation(t *testing.T) {
	store := New(keyring.NewArrayKeyring(nil), true)

	assert.ErrorContains(t, store.Set("mistral", "k"), "unsupported provider")
	assert.ErrorContains(t, store.Set("openai", "   "), "empty")
	assert.ErrorContains(t, store.Delete("mistral"), "unsupported provider")
}

func TestStoreDisabled(t *testing.T) {
	ring := keyring.NewArrayKeyring([]keyring.Item{
		{Key: "openaiApiKey", Data: []byte("sk-old")},
	})
	store := New(ring, false)
	assert.False(t, store.Enabled())

	_, err := store.Get("openai")
	assert.ErrorIs(t, err, ErrDisabled)
	assert.ErrorIs(t, store.Set("openai", "sk-new"), ErrDisabled)

	// Turning the setting off clears what was saved before.
	require.NoError(t, store.DeleteAll())
	keys, err := ring.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestProvidersIgnoresForeignKeys(t *testing.T) {
	ring := keyring.NewArrayKeyring([]keyring.Item{
		{Key: "geminiApiKey", Data: []byte("g")},
		{Key: "somethingElse", Data: []byte("x")},
		{Key: "mistralApiKey", Data: []byte("m")},
	})
	providers, err := New(ring, true).Providers()
	require.NoError(t, err)
	assert.Equal(t, []string{"gemini"}, providers)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "sk-t****7890", Mask("sk-test-1234567890"))
	assert.Equal(t, "*****", Mask("short"))
	assert.Equal(t, "", Mask(""))
}
