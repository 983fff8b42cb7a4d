package nostack

import (
	"regexp"
	"strings"
	"time"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleError     Role = "error"
	RoleSystem    Role = "system"
)

// Valid reports whether r can appear in a stored conversation.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleError:
		return true
	}
	return false
}

// PartType is the kind of content a Part carries.
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
)

// Part is a single content item within one message.
// Image parts hold a base64 data URL.
type Part struct {
	Type    PartType `json:"type"`
	Content string   `json:"content"`
}

// Message represents a single message in a conversation.
type Message struct {
	ID        int       `json:"id"`
	Role      Role      `json:"role"`
	Parts     []Part    `json:"parts"`
	Timestamp time.Time `json:"timestamp"`
	Model     string    `json:"model,omitempty"` // "provider:model" that produced an assistant message
}

// Text returns the concatenated text parts of the message.
func (m *Message) Text() string {
	var texts []string
	for _, p := range m.Parts {
		if p.Type == PartText && p.Content != "" {
			texts = append(texts, p.Content)
		}
	}
	return strings.Join(texts, "\n\n")
}

// Images returns the image parts of the message.
func (m *Message) Images() []Part {
	var images []Part
	for _, p := range m.Parts {
		if p.Type == PartImage {
			images = append(images, p)
		}
	}
	return images
}

var dataURLPattern = regexp.MustCompile(`data:(image/[a-zA-Z]+);base64`)

// ParseDataURL splits an image data URL into its media type and base64 payload.
func ParseDataURL(s string) (mediaType, data string, ok bool) {
	header, payload, found := strings.Cut(s, ",")
	if !found {
		return "", "", false
	}
	m := dataURLPattern.FindStringSubmatch(header)
	if m == nil {
		return "", "", false
	}
	return m[1], payload, true
}

// FormatDataURL builds a base64 data URL.
func FormatDataURL(mediaType, data string) string {
	return "data:" + mediaType + ";base64," + data
}
