package openai

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
	"time"

	"github.com/longkey1/nostack/internal/nostack"
	"github.com/longkey1/nostack/internal/sse"
	sdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

const (
	ProviderName   = "openai"
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4.1"
)

// ChatRequest represents the request body for the Chat Completions API
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature *float64      `json:"temperature,omitempty"`
}

// ChatMessage is one message of a Chat Completions request. System
// messages carry plain text, conversation messages a list of parts.
type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ContentPart is a text or image_url item of a message
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL references an image by URL; data URLs are accepted
type ImageURL struct {
	URL string `json:"url"`
}

// Config defines the configuration interface for OpenAI provider
type Config interface {
	GetBaseURL(provider string) (string, error)
	GetToken(provider string) (string, error)
}

// Provider implements the nostack.Provider interface for OpenAI
type Provider struct {
	config Config
	client *http.Client
	debug  bool
}

// NewProvider creates a new OpenAI provider instance
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

// BuildRequest converts a provider-agnostic request into the Chat Completions format
func BuildRequest(req nostack.StreamRequest) ChatRequest {
	messages := make([]ChatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: req.System})
	}

	for _, msg := range req.Messages {
		parts := make([]ContentPart, 0, len(msg.Parts))
		for _, part := range msg.Parts {
			switch part.Type {
			case nostack.PartText:
				parts = append(parts, ContentPart{Type: "text", Text: part.Content})
			case nostack.PartImage:
				parts = append(parts, ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: part.Content}})
			}
		}
		messages = append(messages, ChatMessage{Role: string(msg.Role), Content: parts})
	}

	return ChatRequest{
		Model:       req.Model,
		Messages:    messages,
		Stream:      true,
		Temperature: req.Temperature,
	}
}

// ParseLine parses one line of a Chat Completions stream
func ParseLine(line string) (sse.Chunk, bool) {
	payload, ok := sse.Data(line)
	if !ok {
		return sse.Chunk{}, false
	}
	if payload == "[DONE]" {
		return sse.Chunk{Done: true}, true
	}
	if !gjson.Valid(payload) {
		return sse.Chunk{}, false
	}

	if msg := gjson.Get(payload, "error.message"); msg.Exists() {
		return sse.Chunk{Err: errors.New(msg.String())}, true
	}

	content := gjson.Get(payload, "choices.0.delta.content").String()
	if content == "" {
		return sse.Chunk{}, false
	}
	return sse.Chunk{Content: content}, true
}

// Stream sends the conversation to the Chat Completions API and streams the reply
func (p *Provider) Stream(ctx context.Context, req nostack.StreamRequest, fn nostack.DeltaFunc) (string, error) {
	// Get token and base URL for OpenAI
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
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}

	// Set headers
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+token)

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

// ListModels returns the chat models available to the API key
func (p *Provider) ListModels(ctx context.Context) ([]nostack.ModelInfo, error) {
	token, err := p.config.GetToken(ProviderName)
	if err != nil {
		return nil, err
	}
	baseURL, err := p.config.GetBaseURL(ProviderName)
	if err != nil {
		return nil, fmt.Errorf("failed to get base URL: %w", err)
	}

	client := sdk.NewClient(
		option.WithBaseURL(baseURL+"/"),
		option.WithAPIKey(token),
		option.WithHTTPClient(p.client),
		option.WithMaxRetries(0),
	)

	page, err := client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list OpenAI models: %w", err)
	}

	models := make([]nostack.ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		if !isChatModel(m.ID) {
			continue
		}
		description := m.OwnedBy
		if m.Created > 0 {
			description = fmt.Sprintf("%s, released %s", m.OwnedBy, time.Unix(m.Created, 0).UTC().Format("2006-01-02"))
		}
		models = append(models, nostack.ModelInfo{
			ID:          m.ID,
			Description: description,
			IsDefault:   m.ID == DefaultModel,
		})
	}

	sort.Slice(models, func(i, j int) bool {
		return models[i].ID < models[j].ID
	})

	return models, nil
}

// Embedding, audio and image models are listed by the same endpoint
var nonChatMarkers = []string{"embedding", "whisper", "tts", "dall-e", "moderation", "davinci", "babbage", "transcribe", "realtime", "image"}

func isChatModel(id string) bool {
	for _, marker := range nonChatMarkers {
		if strings.Contains(id, marker) {
			return false
		}
	}
	return true
}
