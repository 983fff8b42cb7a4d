// Package nostack provides the core abstractions shared by the chat client:
// messages and their parts, the streaming Provider interface that every
// vendor implementation (openai, anthropic, gemini) satisfies, and the
// "provider:model" string helpers.
package nostack

import (
	"context"
	"fmt"
	"strings"
)

// DefaultSystemPrompt is used when neither the session nor the settings
// carry a system prompt.
const DefaultSystemPrompt = "A helpful assistant."

// ModelInfo represents information about an available model from a provider.
type ModelInfo struct {
	ID          string // Model identifier (e.g., "gpt-4.1", "claude-sonnet-4-0")
	Description string // Human-readable description of the model
	IsDefault   bool   // Whether this is the default model for the provider
}

// StreamRequest is a provider-agnostic streaming chat request.
type StreamRequest struct {
	Model       string    // Model name without provider prefix
	System      string    // System prompt (may be empty)
	Messages    []Message // Conversation history, already stripped of error messages
	Temperature *float64  // nil means "use the provider default"
	MaxTokens   int       // Anthropic only; 0 means "use the provider default"
}

// DeltaFunc receives each piece of text as it arrives from the provider.
// Returning an error stops the stream.
type DeltaFunc func(delta string) error

// Provider defines the interface for LLM providers.
// All provider implementations (openai, anthropic, gemini) must implement this interface.
//
// Example usage:
//
//	provider := openai.NewProvider(cfg)
//	text, err := provider.Stream(ctx, req, func(delta string) error {
//		fmt.Print(delta)
//		return nil
//	})
type Provider interface {
	// Stream sends the conversation and calls fn for every text delta.
	// It returns the full response text. Canceling ctx aborts the request.
	Stream(ctx context.Context, req StreamRequest, fn DeltaFunc) (string, error)

	// ListModels returns a list of available models for the provider.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// SetDebug enables or disables debug output.
	SetDebug(enabled bool)
}

// ParseModelString parses a model string in "provider:model" format.
// Returns (provider, model, error).
//
// Example:
//
//	provider, model, err := ParseModelString("openai:gpt-4.1")
//	// provider = "openai", model = "gpt-4.1"
func ParseModelString(modelStr string) (string, string, error) {
	parts := strings.SplitN(modelStr, ":", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid model format: %s (expected format: provider:model, e.g., openai:gpt-4.1)", modelStr)
	}

	provider := strings.TrimSpace(parts[0])
	model := strings.TrimSpace(parts[1])

	if provider == "" || model == "" {
		return "", "", fmt.Errorf("provider and model cannot be empty")
	}

	return provider, model, nil
}

// FormatModelString formats provider and model into "provider:model" format.
func FormatModelString(provider, model string) string {
	return fmt.Sprintf("%s:%s", provider, model)
}
