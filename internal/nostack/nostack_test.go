package nostack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseModelString(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantProvider string
		wantModel    string
		wantErr      bool
	}{
		{
			name:         "valid openai model",
			input:        "openai:gpt-4.1",
			wantProvider: "openai",
			wantModel:    "gpt-4.1",
		},
		{
			name:         "valid anthropic model",
			input:        "anthropic:claude-sonnet-4-0",
			wantProvider: "anthropic",
			wantModel:    "claude-sonnet-4-0",
		},
		{
			name:         "model with colon",
			input:        "openai:o1:2024-12-17",
			wantProvider: "openai",
			wantModel:    "o1:2024-12-17",
		},
		{
			name:         "with whitespace",
			input:        " openai : gpt-4.1 ",
			wantProvider: "openai",
			wantModel:    "gpt-4.1",
		},
		{
			name:    "missing colon",
			input:   "openai-gpt-4",
			wantErr: true,
		},
		{
			name:    "empty provider",
			input:   ":gpt-4",
			wantErr: true,
		},
		{
			name:    "empty model",
			input:   "openai:",
			wantErr: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, model, err := ParseModelString(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseModelString() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if provider != tt.wantProvider {
				t.Errorf("ParseModelString() provider = %v, want %v", provider, tt.wantProvider)
			}
			if model != tt.wantModel {
				t.Errorf("ParseModelString() model = %v, want %v", model, tt.wantModel)
			}
		})
	}
}

func TestParseDataURL(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantMedia string
		wantData  string
		wantOK    bool
	}{
		{"png", "data:image/png;base64,iVBORw0KGgo=", "image/png", "iVBORw0KGgo=", true},
		{"jpeg", "data:image/jpeg;base64,/9j/4AAQ", "image/jpeg", "/9j/4AAQ", true},
		{"not an image", "data:text/plain;base64,aGVsbG8=", "", "", false},
		{"not base64", "data:image/png,rawbytes", "", "", false},
		{"no comma", "data:image/png;base64", "", "", false},
		{"empty", "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			media, data, ok := ParseDataURL(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantMedia, media)
			assert.Equal(t, tt.wantData, data)
		})
	}
}

func TestMessageTextAndImages(t *testing.T) {
	msg := Message{
		Role: RoleUser,
		Parts: []Part{
			{Type: PartText, Content: "first"},
			{Type: PartImage, Content: FormatDataURL("image/png", "AAAA")},
			{Type: PartText, Content: ""},
			{Type: PartText, Content: "second"},
		},
	}

	assert.Equal(t, "first\n\nsecond", msg.Text())
	images := msg.Images()
	if assert.Len(t, images, 1) {
		assert.Equal(t, "data:image/png;base64,AAAA", images[0].Content)
	}
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleAssistant.Valid())
	assert.True(t, RoleError.Valid())
	assert.False(t, RoleSystem.Valid())
	assert.False(t, Role("robot").Valid())
}
