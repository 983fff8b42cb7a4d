package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/longkey1/nostack/internal/nostack"
	"github.com/longkey1/nostack/internal/sse"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

const (
	ProviderName   = "gemini"
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.5-flash"
)

// ModelsAPIResponse represents the response from Gemini's models endpoint
type ModelsAPIResponse struct {
	Models []GeminiModelData `json:"models"`
}

// GeminiModelData represents a single model in the API response
type GeminiModelData struct {
	Name                       string   `json:"name"`
	DisplayName                string   `json:"displayName"`
	Description                string   `json:"description"`
	SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
}

// GeminiRequest represents the request body for Gemini's generate content API
type GeminiRequest struct {
	Contents          []GeminiContent          `json:"contents"`
	SystemInstruction *GeminiSystemInstruction `json:"system_instruction,omitempty"`
	GenerationConfig  *GenerationConfig        `json:"generationConfig,omitempty"`
}

// GeminiSystemInstruction represents system instruction for Gemini
type GeminiSystemInstruction struct {
	Parts []GeminiPart `json:"parts"`
}

// GeminiContent represents a content item in the Gemini request format
type GeminiContent struct {
	Role  string       `json:"role,omitempty"` // "user" or "model"
	Parts []GeminiPart `json:"parts"`
}

// GeminiPart is either text or an inline image
type GeminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inline_data,omitempty"`
}

// InlineData carries base64 encoded bytes
type InlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// GenerationConfig holds sampling parameters
type GenerationConfig struct {
	Temperature *float64 `json:"temperature,omitempty"`
}

// Config defines the configuration interface for Gemini provider
type Config interface {
	GetBaseURL(provider string) (string, error)
	GetToken(provider string) (string, error)
}

// Provider implements the nostack.Provider interface for Gemini
type Provider struct {
	config Config
	client *http.Client
	debug  bool
}

// NewProvider creates a new Gemini provider instance
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

// BuildRequest converts a provider-agnostic request into the Gemini format
func BuildRequest(req nostack.StreamRequest) GeminiRequest {
	contents := make([]GeminiContent, 0, len(req.Messages))
	for _, msg := range req.Messages {
		role := string(msg.Role)
		// Gemini uses "model" instead of "assistant"
		if msg.Role == nostack.RoleAssistant {
			role = "model"
		}

		parts := make([]GeminiPart, 0, len(msg.Parts))
		for _, part := range msg.Parts {
			switch part.Type {
			case nostack.PartText:
				parts = append(parts, GeminiPart{Text: part.Content})
			case nostack.PartImage:
				mediaType, data, ok := nostack.ParseDataURL(part.Content)
				if !ok {
					continue
				}
				parts = append(parts, GeminiPart{InlineData: &InlineData{MimeType: mediaType, Data: data}})
			}
		}
		contents = append(contents, GeminiContent{Role: role, Parts: parts})
	}

	out := GeminiRequest{Contents: contents}

	// Add system instruction if provided
	if req.System != "" {
		out.SystemInstruction = &GeminiSystemInstruction{
			Parts: []GeminiPart{{Text: req.System}},
		}
	}
	if req.Temperature != nil {
		out.GenerationConfig = &GenerationConfig{Temperature: req.Temperature}
	}
	return out
}

// ParseLine parses one line of a streamGenerateContent SSE stream.
// The stream has no terminator; it ends at EOF.
func ParseLine(line string) (sse.Chunk, bool) {
	payload, ok := sse.Data(line)
	if !ok || !gjson.Valid(payload) {
		return sse.Chunk{}, false
	}

	if msg := gjson.Get(payload, "error.message"); msg.Exists() {
		return sse.Chunk{Err: errors.New(msg.String())}, true
	}

	var text strings.Builder
	for _, t := range gjson.Get(payload, "candidates.0.content.parts.#.text").Array() {
		text.WriteString(t.String())
	}
	if text.Len() == 0 {
		return sse.Chunk{}, false
	}
	return sse.Chunk{Content: text.String()}, true
}

// Stream sends the conversation to Gemini and streams the reply
func (p *Provider) Stream(ctx context.Context, req nostack.StreamRequest, fn nostack.DeltaFunc) (string, error) {
	// Get token and base URL for Gemini
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

	endpoint := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", baseURL, url.PathEscape(req.Model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}

	// Set headers
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", token)

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

// ListModels returns the list of supported models from the API
func (p *Provider) ListModels(ctx context.Context) ([]nostack.ModelInfo, error) {
	// Get token for Gemini
	token, err := p.config.GetToken(ProviderName)
	if err != nil {
		return nil, err
	}

	// Get base URL for Gemini
	baseURL, err := p.config.GetBaseURL(ProviderName)
	if err != nil {
		return nil, fmt.Errorf("failed to get base URL: %w", err)
	}

	// Create HTTP request
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/models?pageSize=1000", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", token)

	// Send request
	resp, err := p.client.Do(req)
	if err != nil {
		if p.debug {
			return nil, fmt.Errorf("failed to connect to API: %w", err)
		}
		return nil, fmt.Errorf("failed to connect to API. Use --verbose for details")
	}
	defer resp.Body.Close()

	// Read response body
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// Check for error response
	if resp.StatusCode != http.StatusOK {
		return nil, nostack.NewAPIError(resp.StatusCode, body)
	}

	// Parse response
	var result ModelsAPIResponse
	if err := json.Unmarshal(body, &result); err != nil {
		if p.debug {
			return nil, fmt.Errorf("failed to parse API response: %w\nRaw response: %s", err, string(body))
		}
		return nil, fmt.Errorf("failed to parse API response. Use --verbose for details")
	}

	models := make([]nostack.ModelInfo, 0, len(result.Models))
	for _, model := range result.Models {
		// Only include models that support streaming generation
		if !contains(model.SupportedGenerationMethods, "generateContent") {
			continue
		}

		// Extract model ID from name (remove "models/" prefix)
		id := strings.TrimPrefix(model.Name, "models/")

		description := model.Description
		if description == "" {
			description = model.DisplayName
		}

		models = append(models, nostack.ModelInfo{
			ID:          id,
			Description: description,
			IsDefault:   id == DefaultModel,
		})
	}

	// Sort models by ID (descending order)
	sort.Slice(models, func(i, j int) bool {
		return models[i].ID > models[j].ID
	})

	return models, nil
}

// contains checks if a string slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
