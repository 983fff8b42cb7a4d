// Package catalog holds the static list of selectable models together
// with the user's per-model preferences (hidden, default) and the
// rule for picking a usable model when some providers have no API key.
package catalog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/longkey1/nostack/internal/nostack"
	"github.com/sahilm/fuzzy"
)

//go:embed known_models.json
var knownModels []byte

// DefaultModelID is the default model before the user picks one.
const DefaultModelID = "gpt-4.1"

// Model flags and capabilities.
const (
	FlagTemperatureUnsupported = "temperature_unsupported"
	CapabilityVision           = "vision"
)

// ErrNoKey is returned by Select when no provider has an API key.
var ErrNoKey = errors.New("no API key configured for any provider")

// Model is one selectable model.
type Model struct {
	ID           string   `json:"id"`
	Provider     string   `json:"provider"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Color        string   `json:"color"`
	Type         string   `json:"type"`
	Capabilities []string `json:"capabilities"`
	Flags        []string `json:"flags"`
	Hidden       bool     `json:"hidden"`

	IsDefault bool `json:"-"`
}

// String returns the "provider:model" form.
func (m *Model) String() string {
	return nostack.FormatModelString(m.Provider, m.ID)
}

// HasFlag reports whether the model carries flag.
func (m *Model) HasFlag(flag string) bool {
	for _, f := range m.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// HasCapability reports whether the model lists capability.
func (m *Model) HasCapability(capability string) bool {
	for _, c := range m.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// Temperature returns the temperature to send to this model, or nil when
// it should be left out (unsupported by the model, or zero).
func (m *Model) Temperature(t float64) *float64 {
	if t == 0 || m.HasFlag(FlagTemperatureUnsupported) {
		return nil
	}
	return &t
}

// Catalog is the ordered list of known models.
type Catalog struct {
	models []*Model
}

// Load returns the catalog of built-in models.
func Load() (*Catalog, error) {
	return Parse(knownModels)
}

// Parse builds a catalog from a JSON model list.
func Parse(data []byte) (*Catalog, error) {
	var models []*Model
	if err := json.Unmarshal(data, &models); err != nil {
		return nil, fmt.Errorf("failed to parse model list: %w", err)
	}

	seen := make(map[string]bool)
	for _, m := range models {
		if m.ID == "" || m.Provider == "" {
			return nil, fmt.Errorf("model entry without id or provider: %+v", *m)
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("duplicate model id: %s", m.ID)
		}
		seen[m.ID] = true
		if m.Type == "" {
			m.Type = "standard"
		}
		if m.Name == "" {
			m.Name = m.ID
		}
		m.IsDefault = m.ID == DefaultModelID
	}
	return &Catalog{models: models}, nil
}

// Models returns every model in catalog order.
func (c *Catalog) Models() []*Model {
	return c.models
}

// Providers returns the provider names in catalog order.
func (c *Catalog) Providers() []string {
	var providers []string
	seen := make(map[string]bool)
	for _, m := range c.models {
		if !seen[m.Provider] {
			seen[m.Provider] = true
			providers = append(providers, m.Provider)
		}
	}
	return providers
}

// ByProvider returns the models of one provider.
func (c *Catalog) ByProvider(provider string) []*Model {
	var out []*Model
	for _, m := range c.models {
		if m.Provider == provider {
			out = append(out, m)
		}
	}
	return out
}

// FindByID returns the model with the given id, or nil.
func (c *Catalog) FindByID(id string) *Model {
	for _, m := range c.models {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// Default returns the default model, or the first one when none is marked.
func (c *Catalog) Default() *Model {
	for _, m := range c.models {
		if m.IsDefault {
			return m
		}
	}
	if len(c.models) > 0 {
		return c.models[0]
	}
	return nil
}

// Resolve finds a model from user input. Accepted forms are
// "provider:model", a catalog id, or a fuzzy fragment of an id or name.
// A "provider:model" pair for a model outside the catalog yields an
// ad-hoc entry so newly released models can be used right away.
func (c *Catalog) Resolve(query string) (*Model, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("model is empty")
	}

	if strings.Contains(query, ":") {
		provider, id, err := nostack.ParseModelString(query)
		if err != nil {
			return nil, err
		}
		if m := c.FindByID(id); m != nil && m.Provider == provider {
			return m, nil
		}
		return &Model{ID: id, Provider: provider, Name: id, Type: "standard"}, nil
	}

	if m := c.FindByID(query); m != nil {
		return m, nil
	}

	ids := make([]string, len(c.models))
	names := make([]string, len(c.models))
	for i, m := range c.models {
		ids[i] = m.ID
		names[i] = m.Name
	}
	if matches := fuzzy.Find(query, ids); len(matches) > 0 {
		return c.models[matches[0].Index], nil
	}
	if matches := fuzzy.Find(query, names); len(matches) > 0 {
		return c.models[matches[0].Index], nil
	}
	return nil, fmt.Errorf("unknown model: %s (run 'nostack models' to list models)", query)
}

// SetDefault marks id as the only default model.
func (c *Catalog) SetDefault(id string) error {
	target := c.FindByID(id)
	if target == nil {
		return fmt.Errorf("unknown model: %s", id)
	}
	for _, m := range c.models {
		m.IsDefault = m == target
	}
	return nil
}

// SetHidden hides or shows a model in listings.
func (c *Catalog) SetHidden(id string, hidden bool) error {
	m := c.FindByID(id)
	if m == nil {
		return fmt.Errorf("unknown model: %s", id)
	}
	m.Hidden = hidden
	return nil
}

// Select returns the model to use given the current one and the
// providers that have a key. The current model stays when its provider
// has a key; otherwise the first visible model whose provider has a key
// is picked. ErrNoKey is returned when no provider has a key.
func (c *Catalog) Select(current *Model, hasKey func(provider string) bool) (*Model, error) {
	if current != nil && hasKey(current.Provider) {
		return current, nil
	}
	for _, m := range c.models {
		if m.Hidden || !hasKey(m.Provider) {
			continue
		}
		return m, nil
	}
	return nil, ErrNoKey
}
