package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/longkey1/nostack/internal/nostack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory JSONStore.
type memStore map[string]string

func (s memStore) GetJSON(key string, v any) (bool, error) {
	raw, ok := s[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal([]byte(raw), v)
}

func (s memStore) SetJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s[key] = string(data)
	return nil
}

func loadCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load()
	require.NoError(t, err)
	return c
}

func TestLoad(t *testing.T) {
	c := loadCatalog(t)

	assert.NotEmpty(t, c.Models())
	assert.Equal(t, []string{"openai", "anthropic", "gemini"}, c.Providers())

	def := c.Default()
	require.NotNil(t, def)
	assert.Equal(t, DefaultModelID, def.ID)
	assert.Equal(t, "openai:gpt-4.1", def.String())

	for _, m := range c.Models() {
		assert.NotEmpty(t, m.Name, m.ID)
		assert.NotEmpty(t, m.Color, m.ID)
	}
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte(`[{"id": "a", "provider": "openai"}, {"id": "a", "provider": "openai"}]`))
	assert.ErrorContains(t, err, "duplicate")

	_, err = Parse([]byte(`[{"id": "a"}]`))
	assert.ErrorContains(t, err, "without id or provider")

	_, err = Parse([]byte(`{`))
	assert.Error(t, err)

	c, err := Parse([]byte(`[{"id": "x", "provider": "openai"}]`))
	require.NoError(t, err)
	assert.Equal(t, "standard", c.Models()[0].Type)
	assert.Equal(t, "x", c.Models()[0].Name)
	assert.Equal(t, "x", c.Default().ID)
}

func TestModelTemperature(t *testing.T) {
	c := loadCatalog(t)

	gpt := c.FindByID("gpt-4.1")
	require.NotNil(t, gpt)
	temp := gpt.Temperature(0.7)
	require.NotNil(t, temp)
	assert.Equal(t, 0.7, *temp)
	assert.Nil(t, gpt.Temperature(0))

	o3 := c.FindByID("o3")
	require.NotNil(t, o3)
	assert.True(t, o3.HasFlag(FlagTemperatureUnsupported))
	assert.Nil(t, o3.Temperature(1.0))
	assert.True(t, o3.HasCapability(CapabilityVision))
}

func TestResolve(t *testing.T) {
	c := loadCatalog(t)

	tests := []struct {
		input    string
		wantID   string
		provider string
		wantErr  bool
	}{
		{"gpt-4.1", "gpt-4.1", "openai", false},
		{"anthropic:claude-sonnet-4-0", "claude-sonnet-4-0", "anthropic", false},
		{"openai:gpt-5-preview", "gpt-5-preview", "openai", false},
		{"haiku", "claude-3-5-haiku-latest", "anthropic", false},
		{"Gemini 2.5 Pro", "gemini-2.5-pro", "gemini", false},
		{"", "", "", true},
		{"zzzzzz", "", "", true},
		{":broken", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			m, err := c.Resolve(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, m.ID)
			assert.Equal(t, tt.provider, m.Provider)
		})
	}
}

func TestSetDefaultAndHidden(t *testing.T) {
	c := loadCatalog(t)

	require.NoError(t, c.SetDefault("claude-sonnet-4-0"))
	assert.Equal(t, "claude-sonnet-4-0", c.Default().ID)

	defaults := 0
	for _, m := range c.Models() {
		if m.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)

	require.NoError(t, c.SetHidden("gpt-4o", true))
	assert.True(t, c.FindByID("gpt-4o").Hidden)

	assert.Error(t, c.SetDefault("nope"))
	assert.Error(t, c.SetHidden("nope", true))
}

func TestSettingsRoundTrip(t *testing.T) {
	store := memStore{}

	c := loadCatalog(t)
	require.NoError(t, c.SetDefault("o3"))
	require.NoError(t, c.SetHidden("gpt-4.1", true))
	require.NoError(t, c.SaveSettings(store))

	fresh := loadCatalog(t)
	require.NoError(t, fresh.LoadSettings(store))
	assert.Equal(t, "o3", fresh.Default().ID)
	assert.True(t, fresh.FindByID("gpt-4.1").Hidden)

	// Unknown entries are ignored.
	store[SettingsKey] = `[{"id": "retired-model", "hidden": true, "isDefaultModel": true}]`
	other := loadCatalog(t)
	require.NoError(t, other.LoadSettings(store))
	assert.Equal(t, DefaultModelID, other.Default().ID)
}

func TestSelect(t *testing.T) {
	c := loadCatalog(t)
	gpt := c.FindByID("gpt-4.1")
	claude := c.FindByID("claude-sonnet-4-0")

	keys := func(providers ...string) func(string) bool {
		return func(p string) bool {
			for _, k := range providers {
				if k == p {
					return true
				}
			}
			return false
		}
	}

	m, err := c.Select(gpt, keys("openai"))
	require.NoError(t, err)
	assert.Same(t, gpt, m)

	m, err = c.Select(gpt, keys("anthropic"))
	require.NoError(t, err)
	assert.Same(t, claude, m)

	m, err = c.Select(nil, keys("openai", "anthropic"))
	require.NoError(t, err)
	assert.Same(t, gpt, m)

	// Hidden models are skipped.
	require.NoError(t, c.SetHidden("claude-sonnet-4-0", true))
	m, err = c.Select(nil, keys("anthropic"))
	require.NoError(t, err)
	assert.Equal(t, "claude-opus-4-1", m.ID)

	_, err = c.Select(gpt, keys())
	assert.ErrorIs(t, err, ErrNoKey)
}

func TestRemoteCache(t *testing.T) {
	store := memStore{}
	cache := NewRemoteCache(store, time.Hour)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	calls := 0
	list := []nostack.ModelInfo{{ID: "gpt-4.1"}}
	fetch := func(ctx context.Context) ([]nostack.ModelInfo, error) {
		calls++
		return list, nil
	}
	failing := func(ctx context.Context) ([]nostack.ModelInfo, error) {
		calls++
		return nil, errors.New("offline")
	}
	ctx := context.Background()

	// Missing entry is fetched.
	models, stale, err := cache.Models(ctx, "openai", fetch)
	require.NoError(t, err)
	assert.False(t, stale)
	assert.Equal(t, list, models)
	assert.Equal(t, 1, calls)

	// Fresh entry is served without a request.
	_, _, err = cache.Models(ctx, "openai", failing)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	// Stale entry falls back to the cached list when the refresh fails.
	now = now.Add(2 * time.Hour)
	models, stale, err = cache.Models(ctx, "openai", failing)
	require.NoError(t, err)
	assert.True(t, stale)
	assert.Equal(t, list, models)
	assert.Equal(t, 2, calls)

	// Without a cached copy the error surfaces.
	_, _, err = cache.Models(ctx, "anthropic", failing)
	assert.ErrorContains(t, err, "offline")

	// Refresh always fetches.
	list = []nostack.ModelInfo{{ID: "gpt-4.1"}, {ID: "o3"}}
	models, err = cache.Refresh(ctx, "openai", fetch)
	require.NoError(t, err)
	assert.Len(t, models, 2)
}
