package settings

import (
	"path/filepath"
	"testing"

	"github.com/longkey1/nostack/internal/nostack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "data", DatabaseName))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreGetSetDelete(t *testing.T) {
	store := openTestStore(t)

	_, ok, err := store.Get("theme")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set("theme", "dark"))
	require.NoError(t, store.Set("theme", "light"))

	v, ok, err := store.Get("theme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "light", v)

	require.NoError(t, store.Set("hue", "120"))
	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"hue", "theme"}, keys)

	require.NoError(t, store.Delete("theme"))
	require.NoError(t, store.Delete("theme"))
	_, ok, err = store.Get("theme")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreJSON(t *testing.T) {
	store := openTestStore(t)

	type entry struct {
		ID     string `json:"id"`
		Hidden bool   `json:"hidden"`
	}

	var got []entry
	ok, err := store.GetJSON(KeyModelSettings, &got)
	require.NoError(t, err)
	assert.False(t, ok)

	want := []entry{{ID: "gpt-4.1", Hidden: true}}
	require.NoError(t, store.SetJSON(KeyModelSettings, want))

	ok, err = store.GetJSON(KeyModelSettings, &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	require.NoError(t, store.Set(KeyModelSettings, "not json"))
	_, err = store.GetJSON(KeyModelSettings, &got)
	assert.Error(t, err)
}

func TestStorePersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), DatabaseName)

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Set("theme", "dark"))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	v, ok, err := store.Get("theme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dark", v)
}

func TestLoadDefaults(t *testing.T) {
	store := openTestStore(t)

	s, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "light", s.Theme)
	assert.Equal(t, 230, s.Hue)
	assert.Equal(t, 5, s.Saturation)
	assert.Equal(t, 1.0, s.Temperature)
	assert.Equal(t, nostack.DefaultSystemPrompt, s.SystemPrompt)
	assert.False(t, s.SaveAPIKey)
	assert.False(t, s.NotWarnedAPIKey)
}

func TestUpdate(t *testing.T) {
	store := openTestStore(t)

	tests := []struct {
		key     string
		value   string
		stored  string
		wantErr bool
	}{
		{KeyTheme, "dark", "dark", false},
		{KeyTheme, "solarized", "", true},
		{KeyHue, "360", "360", false},
		{KeyHue, "361", "", true},
		{KeySaturation, " 40 ", "40", false},
		{KeyTemperature, "0.7", "0.7", false},
		{KeyTemperature, "2.5", "", true},
		{KeySystemPrompt, "  Answer in French.  ", "Answer in French.", false},
		{KeySaveAPIKey, "true", "1", false},
		{KeySaveAPIKey, "maybe", "", true},
		{"font", "serif", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			err := store.Update(tt.key, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			v, _, err := store.Get(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.stored, v)
		})
	}

	s, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "dark", s.Theme)
	assert.Equal(t, 360, s.Hue)
	assert.Equal(t, 40, s.Saturation)
	assert.Equal(t, 0.7, s.Temperature)
	assert.Equal(t, "Answer in French.", s.SystemPrompt)
	assert.True(t, s.SaveAPIKey)
}

func TestLoadIgnoresBrokenValues(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Set(KeyHue, "blue"))
	require.NoError(t, store.Set(KeySystemPrompt, ""))
	require.NoError(t, store.SetBool(KeyNotWarnedAPIKey, true))

	s, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 230, s.Hue)
	assert.Equal(t, nostack.DefaultSystemPrompt, s.SystemPrompt)
	assert.True(t, s.NotWarnedAPIKey)
}
