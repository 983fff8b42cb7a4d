package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/longkey1/nostack/internal/nostack"
	"github.com/longkey1/nostack/internal/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type testConfig struct {
	baseURL string
	token   string
}

func (c testConfig) GetBaseURL(provider string) (string, error) {
	return c.baseURL, nil
}

func (c testConfig) GetToken(provider string) (string, error) {
	if c.token == "" {
		return "", errors.New("openai API key is required")
	}
	return c.token, nil
}

func userMessage(parts ...nostack.Part) nostack.Message {
	return nostack.Message{Role: nostack.RoleUser, Parts: parts}
}

func TestBuildRequest(t *testing.T) {
	temp := 0.5
	req := BuildRequest(nostack.StreamRequest{
		Model:       "gpt-4.1",
		System:      "Be brief.",
		Temperature: &temp,
		Messages: []nostack.Message{
			userMessage(
				nostack.Part{Type: nostack.PartText, Content: "What is this?"},
				nostack.Part{Type: nostack.PartImage, Content: "data:image/png;base64,AAAA"},
			),
		},
	})

	data, err := json.Marshal(req)
	require.NoError(t, err)
	body := string(data)

	assert.Equal(t, "gpt-4.1", gjson.Get(body, "model").String())
	assert.True(t, gjson.Get(body, "stream").Bool())
	assert.Equal(t, 0.5, gjson.Get(body, "temperature").Float())
	assert.Equal(t, "system", gjson.Get(body, "messages.0.role").String())
	assert.Equal(t, "Be brief.", gjson.Get(body, "messages.0.content").String())
	assert.Equal(t, "user", gjson.Get(body, "messages.1.role").String())
	assert.Equal(t, "text", gjson.Get(body, "messages.1.content.0.type").String())
	assert.Equal(t, "What is this?", gjson.Get(body, "messages.1.content.0.text").String())
	assert.Equal(t, "image_url", gjson.Get(body, "messages.1.content.1.type").String())
	assert.Equal(t, "data:image/png;base64,AAAA", gjson.Get(body, "messages.1.content.1.image_url.url").String())
}

func TestBuildRequestOmitsTemperatureAndSystem(t *testing.T) {
	data, err := json.Marshal(BuildRequest(nostack.StreamRequest{
		Model:    "o3",
		Messages: []nostack.Message{userMessage(nostack.Part{Type: nostack.PartText, Content: "hi"})},
	}))
	require.NoError(t, err)

	assert.False(t, gjson.GetBytes(data, "temperature").Exists())
	assert.Equal(t, "user", gjson.GetBytes(data, "messages.0.role").String())
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    sse.Chunk
		wantOK  bool
		wantErr string
	}{
		{"content", `data: {"choices":[{"delta":{"content":"Hel"}}]}`, sse.Chunk{Content: "Hel"}, true, ""},
		{"done", `data: [DONE]`, sse.Chunk{Done: true}, true, ""},
		{"role only", `data: {"choices":[{"delta":{"role":"assistant"}}]}`, sse.Chunk{}, false, ""},
		{"comment", `: keep-alive`, sse.Chunk{}, false, ""},
		{"not data", `event: ping`, sse.Chunk{}, false, ""},
		{"bad json", `data: {"choices":`, sse.Chunk{}, false, ""},
		{"error", `data: {"error":{"message":"rate limited"}}`, sse.Chunk{}, true, "rate limited"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLine(tt.line)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantErr != "" {
				require.Error(t, got.Err)
				assert.Equal(t, tt.wantErr, got.Err.Error())
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStream(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, word := range []string{"Hello", ", ", "world"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", word)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	p := NewProvider(testConfig{baseURL: server.URL + "/v1", token: "sk-test"})

	var deltas []string
	text, err := p.Stream(context.Background(), nostack.StreamRequest{
		Model:    "gpt-4.1",
		Messages: []nostack.Message{userMessage(nostack.Part{Type: nostack.PartText, Content: "hi"})},
	}, func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "Hello, world", text)
	assert.Equal(t, []string{"Hello", ", ", "world"}, deltas)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, "gpt-4.1", gjson.GetBytes(gotBody, "model").String())
}

func TestStreamHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided"}}`)
	}))
	defer server.Close()

	p := NewProvider(testConfig{baseURL: server.URL, token: "sk-bad"})
	_, err := p.Stream(context.Background(), nostack.StreamRequest{Model: "gpt-4.1"}, nil)

	var apiErr *nostack.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "401: Incorrect API key provided", err.Error())
}

func TestStreamMissingKey(t *testing.T) {
	p := NewProvider(testConfig{baseURL: "http://127.0.0.1:0"})
	_, err := p.Stream(context.Background(), nostack.StreamRequest{Model: "gpt-4.1"}, nil)
	assert.ErrorContains(t, err, "API key is required")
}

func TestStreamErrorKeepsPartial(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"error\":{\"message\":\"server overloaded\"}}\n\n")
	}))
	defer server.Close()

	p := NewProvider(testConfig{baseURL: server.URL, token: "sk-test"})
	text, err := p.Stream(context.Background(), nostack.StreamRequest{Model: "gpt-4.1"}, nil)

	assert.Equal(t, "partial", text)
	var streamErr *sse.StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.Equal(t, "partial", streamErr.Partial)
	assert.ErrorContains(t, err, "server overloaded")
}

func TestStreamCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"first\"}}]}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	p := NewProvider(testConfig{baseURL: server.URL, token: "sk-test"})
	text, err := p.Stream(ctx, nostack.StreamRequest{Model: "gpt-4.1"}, func(delta string) error {
		cancel()
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "first", text)
}

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[
			{"id":"gpt-4o","object":"model","created":1715367049,"owned_by":"system"},
			{"id":"text-embedding-3-small","object":"model","created":1705948997,"owned_by":"system"},
			{"id":"gpt-4.1","object":"model","created":1744316542,"owned_by":"system"}
		]}`)
	}))
	defer server.Close()

	p := NewProvider(testConfig{baseURL: server.URL + "/v1", token: "sk-test"})
	models, err := p.ListModels(context.Background())
	require.NoError(t, err)

	require.Len(t, models, 2)
	assert.Equal(t, "gpt-4.1", models[0].ID)
	assert.True(t, models[0].IsDefault)
	assert.Equal(t, "gpt-4o", models[1].ID)
	assert.True(t, strings.HasPrefix(models[1].Description, "system, released "))
}
