// Package credentials stores provider API keys in the OS keyring.
// Keys are only read or written while the saveApiKey setting is on;
// turning it off removes every stored key.
package credentials

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/99designs/keyring"
	"github.com/longkey1/nostack/internal/nostack/config"
	"github.com/rs/zerolog/log"
)

// ServiceName is the keyring service the keys are filed under.
const ServiceName = "nostack"

var (
	// ErrDisabled is returned when saving keys is turned off.
	ErrDisabled = errors.New("saving API keys is turned off (enable it with 'nostack settings set saveApiKey true')")
	// ErrNotFound is returned when no key is stored for a provider.
	ErrNotFound = errors.New("no saved API key")
)

// Store reads and writes API keys.
type Store struct {
	ring    keyring.Keyring
	enabled bool
}

// New wraps an open keyring.
func New(ring keyring.Keyring, enabled bool) *Store {
	return &Store{ring: ring, enabled: enabled}
}

// Open opens the OS keyring. When no system keyring is available the
// encrypted file backend under the data directory is used.
func Open(enabled bool) (*Store, error) {
	dataDir, err := config.GetDataDir()
	if err != nil {
		return nil, err
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:      ServiceName,
		FileDir:          filepath.Join(dataDir, "keys"),
		FilePasswordFunc: keyring.TerminalPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return New(ring, enabled), nil
}

// Enabled reports whether keys are saved.
func (s *Store) Enabled() bool {
	return s.enabled
}

func itemKey(provider string) string {
	return provider + "ApiKey"
}

func validProvider(provider string) error {
	for _, p := range config.Providers {
		if p == provider {
			return nil
		}
	}
	return fmt.Errorf("unsupported provider: %s", provider)
}

// Get returns the saved key for provider.
func (s *Store) Get(provider string) (string, error) {
	if !s.enabled {
		return "", ErrDisabled
	}
	item, err := s.ring.Get(itemKey(provider))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("%w for %s", ErrNotFound, provider)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s key: %w", provider, err)
	}
	return string(item.Data), nil
}

// Set saves the key for provider.
func (s *Store) Set(provider, key string) error {
	if err := validProvider(provider); err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("API key is empty")
	}
	if !s.enabled {
		return ErrDisabled
	}

	err := s.ring.Set(keyring.Item{
		Key:         itemKey(provider),
		Data:        []byte(key),
		Label:       provider + " API key",
		Description: "API key for " + provider + " used by nostack",
	})
	if err != nil {
		return fmt.Errorf("failed to save %s key: %w", provider, err)
	}
	log.Debug().Str("provider", provider).Msg("API key saved")
	return nil
}

// Delete removes the key for provider.
func (s *Store) Delete(provider string) error {
	if err := validProvider(provider); err != nil {
		return err
	}
	err := s.ring.Remove(itemKey(provider))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("%w for %s", ErrNotFound, provider)
	}
	if err != nil {
		return fmt.Errorf("failed to delete %s key: %w", provider, err)
	}
	return nil
}

// DeleteAll removes every saved key.
func (s *Store) DeleteAll() error {
	for _, provider := range config.Providers {
		err := s.ring.Remove(itemKey(provider))
		if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
			return fmt.Errorf("failed to delete %s key: %w", provider, err)
		}
	}
	return nil
}

// Providers returns the providers that have a saved key.
func (s *Store) Providers() ([]string, error) {
	keys, err := s.ring.Keys()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	var providers []string
	for _, k := range keys {
		provider, ok := strings.CutSuffix(k, "ApiKey")
		if ok && validProvider(provider) == nil {
			providers = append(providers, provider)
		}
	}
	sort.Strings(providers)
	return providers, nil
}

// Mask shortens a key for display.
func Mask(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", 4) + key[len(key)-4:]
}
