package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/longkey1/nostack/internal/nostack"
	"github.com/longkey1/nostack/internal/nostack/catalog"
	"github.com/longkey1/nostack/internal/nostack/config"
	"github.com/longkey1/nostack/internal/nostack/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serialRing is a keyring that must not be read concurrently, like the
// encrypted file backend. reads is updated without a lock so overlapping
// calls also show up under -race.
type serialRing struct {
	keyring.Keyring
	active  int32
	overlap int32
	reads   int
}

func (r *serialRing) Get(key string) (keyring.Item, error) {
	if atomic.AddInt32(&r.active, 1) > 1 {
		atomic.StoreInt32(&r.overlap, 1)
	}
	defer atomic.AddInt32(&r.active, -1)

	r.reads++
	time.Sleep(5 * time.Millisecond)
	return r.Keyring.Get(key)
}

// lockedStore is a goroutine-safe in-memory catalog.JSONStore.
type lockedStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (s *lockedStore) GetJSON(key string, v any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

func (s *lockedStore) SetJSON(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = raw
	return nil
}

func TestRemoteListingReadsKeyringSerially(t *testing.T) {
	ring := &serialRing{Keyring: keyring.NewArrayKeyring([]keyring.Item{
		{Key: "openaiApiKey", Data: []byte("sk-openai")},
		{Key: "anthropicApiKey", Data: []byte("sk-ant")},
	})}

	cfg := config.NewDefaultConfig("/tmp/prompts")
	cfg.OpenAIToken = ""
	cfg.AnthropicToken = ""
	cfg.GeminiToken = ""
	cfg.SetCredentials(credentials.New(ring, true))

	// Fetchers look the token up on every call, as the providers do.
	build := func(c *config.Config, name string) (catalog.FetchFunc, error) {
		return func(ctx context.Context) ([]nostack.ModelInfo, error) {
			token, err := c.GetToken(name)
			if err != nil {
				return nil, err
			}
			return []nostack.ModelInfo{{ID: name + "-model", Description: token}}, nil
		}, nil
	}

	providers := []string{"openai", "anthropic", "gemini"}
	sources := remoteSources(cfg, providers, build)
	readsBefore := ring.reads

	cache := catalog.NewRemoteCache(&lockedStore{data: map[string][]byte{}}, time.Hour)
	results := fetchRemoteModels(context.Background(), cache, sources, false)

	assert.Zero(t, atomic.LoadInt32(&ring.overlap))
	assert.Equal(t, readsBefore, ring.reads, "fetching must not read the keyring")

	require.Len(t, results, 3)
	require.NoError(t, results[0].err)
	assert.Equal(t, "sk-openai", results[0].models[0].Description)
	require.NoError(t, results[1].err)
	assert.Equal(t, "sk-ant", results[1].models[0].Description)
	assert.ErrorContains(t, results[2].err, "no API key configured")
}

func TestFetchRemoteModelsErrors(t *testing.T) {
	empty := func(ctx context.Context) ([]nostack.ModelInfo, error) { return nil, nil }
	failing := func(ctx context.Context) ([]nostack.ModelInfo, error) { return nil, errors.New("offline") }

	sources := []remoteSource{
		{name: "openai", fetch: empty},
		{name: "anthropic", fetch: failing},
		{name: "gemini", err: errors.New("unsupported provider")},
	}
	cache := catalog.NewRemoteCache(&lockedStore{data: map[string][]byte{}}, time.Hour)
	results := fetchRemoteModels(context.Background(), cache, sources, true)

	assert.ErrorContains(t, results[0].err, "no models returned")
	assert.ErrorContains(t, results[1].err, "offline")
	assert.ErrorContains(t, results[2].err, "unsupported provider")
}
