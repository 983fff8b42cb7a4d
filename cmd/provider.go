package cmd

import (
	"fmt"

	"github.com/longkey1/nostack/internal/anthropic"
	"github.com/longkey1/nostack/internal/gemini"
	"github.com/longkey1/nostack/internal/nostack"
	"github.com/longkey1/nostack/internal/nostack/config"
	"github.com/longkey1/nostack/internal/openai"
)

// newProvider creates the provider that serves the named vendor
func newProvider(cfg *config.Config, provider string) (nostack.Provider, error) {
	var p nostack.Provider
	switch provider {
	case openai.ProviderName:
		p = openai.NewProvider(cfg)
	case anthropic.ProviderName:
		p = anthropic.NewProvider(cfg)
	case gemini.ProviderName:
		p = gemini.NewProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
	p.SetDebug(verbose)
	return p, nil
}
