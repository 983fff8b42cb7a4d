package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/longkey1/nostack/internal/nostack"
	"github.com/longkey1/nostack/internal/sse"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

const (
	ProviderName     = "anthropic"
	DefaultBaseURL   = "https://api.anthropic.com/v1"
	DefaultModel     = "claude-sonnet-4-0"
	AnthropicVersion = "2023-06-01"
	DefaultMaxTokens = 8192
)

// MessagesAPIRequest represents the request body for Anthropic's Messages API
type MessagesAPIRequest struct {
	Model       string         `json:"model"`
	MaxTokens   int            `json:"max_tokens"`
	System      string         `json:"system,omitempty"` // System prompt (optional)
	Messages    []MessageInput `json:"messages"`
	Stream      bool           `json:"stream"`
	Temperature *float64       `json:"temperature,omitempty"`
}

// MessageInput represents a message in the conversation
type MessageInput struct {
	Role    string    `json:"role"`    // "user" or "assistant"
	Content []Content `json:"content"` // Array of content blocks
}

// Content represents a text or image content block
type Content struct {
	Type   string       `json:"type"` // "text" or "image"
	Text   string       `json:"text,omitempty"`
	Source *ImageSource `json:"source,omitempty"`
}

// ImageSource carries an inline base64 image
type ImageSource struct {
	Type      string `json:"type"` // always "base64"
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// Config defines the configuration interface for Anthropic provider
type Config interface {
	GetBaseURL(provider string) (string, error)
	GetToken(provider string) (string, error)
}

// Provider implements the nostack.Provider interface for Anthropic
type Provider struct {
	config Config
	client *http.Client
	debug  bool
}

// NewProvider creates a new Anthropic provider instance
func NewProvider(config Config) *Provider {
	return &Provider{
		config: config,
		client: &http.Client{},
	}
}

// SetHTTPClient replaces the HTTP client used for requests
func (p *Provider) SetHTTPClient(client *http.Client) {
	p.client = client
}

// SetDebug enables or disables debug mode
func (p *Provider) SetDebug(enabled bool) {
	p.debug = enabled
}

// BuildRequest converts a provider-agnostic request into the Messages API format.
// Temperature is halved: the client works on a 0-2 scale, Anthropic on 0-1.
func BuildRequest(req nostack.StreamRequest) MessagesAPIRequest {
	messages := make([]MessageInput, 0, len(req.Messages))
	for _, msg := range req.Messages {
		content := make([]Content, 0, len(msg.Parts))
		for _, part := range msg.Parts {
			switch part.Type {
			case nostack.PartText:
				content = append(content, Content{Type: "text", Text: part.Content})
			case nostack.PartImage:
				mediaType, data, ok := nostack.ParseDataURL(part.Content)
				if !ok {
					continue
				}
				content = append(content, Content{
					Type:   "image",
					Source: &ImageSource{Type: "base64", MediaType: mediaType, Data: data},
				})
			}
		}
		messages = append(messages, MessageInput{Role: string(msg.Role), Content: content})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	var temperature *float64
	if req.Temperature != nil {
		t := *req.Temperature / 2
		temperature = &t
	}

	return MessagesAPIRequest{
		Model:       req.Model,
		MaxTokens:   maxTokens,
		System:      req.System,
		Messages:    messages,
		Stream:      true,
		Temperature: temperature,
	}
}

// ParseLine parses one line of a Messages API stream
func ParseLine(line string) (sse.Chunk, bool) {
	if event, ok := sse.Event(line); ok {
		if event == "message_stop" {
			return sse.Chunk{Done: true}, true
		}
		return sse.Chunk{}, false
	}

	payload, ok := sse.Data(line)
	if !ok || !gjson.Valid(payload) {
		return sse.Chunk{}, false
	}

	switch gjson.Get(payload, "type").String() {
	case "content_block_delta":
		if gjson.Get(payload, "delta.type").String() != "text_delta" {
			return sse.Chunk{}, false
		}
		return sse.Chunk{Content: gjson.Get(payload, "delta.text").String()}, true
	case "error":
		msg := gjson.Get(payload, "error.message").String()
		if msg == "" {
			msg = "unknown stream error"
		}
		return sse.Chunk{Err: errors.New(msg)}, true
	}
	return sse.Chunk{}, false
}

// Stream sends the conversation to the Messages API and streams the reply
func (p *Provider) Stream(ctx context.Context, req nostack.StreamRequest, fn nostack.DeltaFunc) (string, error) {
	// Get token and base URL for Anthropic
	token, err := p.config.GetToken(ProviderName)
	if err != nil {
		return "", err
	}
	baseURL, err := p.config.GetBaseURL(ProviderName)
	if err != nil {
		return "", fmt.Errorf("failed to get base URL: %w", err)
	}

	// Convert request body to JSON
	jsonData, err := json.Marshal(BuildRequest(req))
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	// Create HTTP request
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/messages", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}

	// Set headers
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("x-api-key", token)
	httpReq.Header.Set("anthropic-version", AnthropicVersion)

	if p.debug {
		log.Debug().Str("provider", ProviderName).Str("model", req.Model).Int("messages", len(req.Messages)).Msg("sending request")
	}

	// Send request
	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	// Check for error response
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if p.debug {
			log.Debug().Int("status", resp.StatusCode).Str("body", string(body)).Msg("API error")
		}
		return "", nostack.NewAPIError(resp.StatusCode, body)
	}

	return sse.Decode(ctx, resp.Body, ParseLine, fn)
}

// ListModels returns the list of models from the API
func (p *Provider) ListModels(ctx context.Context) ([]nostack.ModelInfo, error) {
	token, err := p.config.GetToken(ProviderName)
	if err != nil {
		return nil, err
	}
	baseURL, err := p.config.GetBaseURL(ProviderName)
	if err != nil {
		return nil, fmt.Errorf("failed to get base URL: %w", err)
	}

	// The SDK adds the /v1 prefix itself
	client := sdk.NewClient(
		option.WithBaseURL(strings.TrimSuffix(baseURL, "/v1")+"/"),
		option.WithAPIKey(token),
		option.WithHTTPClient(p.client),
		option.WithMaxRetries(0),
	)

	page, err := client.Models.List(ctx, sdk.ModelListParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to list Anthropic models: %w", err)
	}

	models := make([]nostack.ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		description := m.DisplayName
		if !m.CreatedAt.IsZero() {
			description = fmt.Sprintf("%s (%s)", m.DisplayName, m.CreatedAt.Format("2006-01-02"))
		}
		models = append(models, nostack.ModelInfo{
			ID:          m.ID,
			Description: description,
			IsDefault:   m.ID == DefaultModel,
		})
	}

	// Sort models by ID (descending order)
	sort.Slice(models, func(i, j int) bool {
		return models[i].ID > models[j].ID
	})

	return models, nil
}
