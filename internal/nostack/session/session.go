package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/longkey1/nostack/internal/nostack"
)

// Session represents a conversation session
type Session struct {
	ID           string            `json:"id"`                    // UUID v4 (e.g., "550e8400-e29b-41d4-a716-446655440000")
	ParentID     string            `json:"parent_id"`             // Parent session ID (for summarized sessions)
	Name         string            `json:"name"`                  // Optional session name (empty by default)
	TemplateName string            `json:"template_name"`         // Prompt template name (reference info, can be empty)
	SystemPrompt string            `json:"system_prompt"`         // System prompt snapshot (can be empty)
	Model        string            `json:"model"`                 // "provider:model"
	Temperature  *float64          `json:"temperature,omitempty"` // nil = settings default
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Messages     []nostack.Message `json:"messages"`
	NextID       int               `json:"next_id"`
}

// NewSession creates a new session for the given "provider:model" string
func NewSession(model string) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.New().String(),
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []nostack.Message{},
	}
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now()
}

// AddMessage appends an empty message with the given role and returns it.
func (s *Session) AddMessage(role nostack.Role) *nostack.Message {
	s.Messages = append(s.Messages, nostack.Message{
		ID:        s.NextID,
		Role:      role,
		Parts:     []nostack.Part{},
		Timestamp: time.Now(),
	})
	s.NextID++
	s.touch()
	return &s.Messages[len(s.Messages)-1]
}

// AddTextMessage appends a message holding a single text part.
func (s *Session) AddTextMessage(role nostack.Role, text string) *nostack.Message {
	msg := s.AddMessage(role)
	msg.Parts = append(msg.Parts, nostack.Part{Type: nostack.PartText, Content: text})
	return msg
}

// AddPart appends a part to the message with the given ID.
func (s *Session) AddPart(id int, partType nostack.PartType, content string) error {
	msg := s.Find(id)
	if msg == nil {
		return fmt.Errorf("message %d not found", id)
	}
	msg.Parts = append(msg.Parts, nostack.Part{Type: partType, Content: content})
	s.touch()
	return nil
}

// Find returns the message with the given ID, or nil.
func (s *Session) Find(id int) *nostack.Message {
	if i := s.indexOf(id); i >= 0 {
		return &s.Messages[i]
	}
	return nil
}

func (s *Session) indexOf(id int) int {
	for i := range s.Messages {
		if s.Messages[i].ID == id {
			return i
		}
	}
	return -1
}

// LastMessage returns the last message, or nil for an empty session.
func (s *Session) LastMessage() *nostack.Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// AppendUserInput adds a prompt and its images. When the conversation
// already ends with a user message (for example after a failed response)
// the input joins that message so roles keep alternating.
func (s *Session) AppendUserInput(text string, images []string) *nostack.Message {
	msg := s.LastMessage()
	if msg == nil || msg.Role != nostack.RoleUser {
		msg = s.AddMessage(nostack.RoleUser)
	}
	if text != "" {
		msg.Parts = append(msg.Parts, nostack.Part{Type: nostack.PartText, Content: text})
	}
	for _, img := range images {
		msg.Parts = append(msg.Parts, nostack.Part{Type: nostack.PartImage, Content: img})
	}
	s.touch()
	return msg
}

// RemoveMessage deletes the message with the given ID. If the messages
// on either side of the gap share a role they are merged into one.
func (s *Session) RemoveMessage(id int) error {
	index := s.indexOf(id)
	if index < 0 {
		return fmt.Errorf("message %d not found", id)
	}
	s.Messages = append(s.Messages[:index], s.Messages[index+1:]...)

	if index > 0 && index < len(s.Messages) {
		prev := &s.Messages[index-1]
		next := s.Messages[index]
		if prev.Role == next.Role {
			prev.Parts = append(prev.Parts, next.Parts...)
			s.Messages = append(s.Messages[:index], s.Messages[index+1:]...)
		}
	}
	s.touch()
	return nil
}

// RemoveMessagesAfter drops every message that follows the given ID.
func (s *Session) RemoveMessagesAfter(id int) error {
	index := s.indexOf(id)
	if index < 0 {
		return fmt.Errorf("message %d not found", id)
	}
	s.Messages = s.Messages[:index+1]
	s.touch()
	return nil
}

// RemoveFrom drops the message with the given ID and everything after it.
func (s *Session) RemoveFrom(id int) error {
	index := s.indexOf(id)
	if index < 0 {
		return fmt.Errorf("message %d not found", id)
	}
	s.Messages = s.Messages[:index]
	s.touch()
	return nil
}

// RemovePart deletes one part of a message. A message left without parts
// is removed as well.
func (s *Session) RemovePart(id, partIndex int) error {
	msg := s.Find(id)
	if msg == nil {
		return fmt.Errorf("message %d not found", id)
	}
	if partIndex < 0 || partIndex >= len(msg.Parts) {
		return fmt.Errorf("message %d has no part %d", id, partIndex)
	}
	msg.Parts = append(msg.Parts[:partIndex], msg.Parts[partIndex+1:]...)
	if len(msg.Parts) == 0 {
		return s.RemoveMessage(id)
	}
	s.touch()
	return nil
}

// EditText replaces the content of a text part.
func (s *Session) EditText(id, partIndex int, text string) error {
	msg := s.Find(id)
	if msg == nil {
		return fmt.Errorf("message %d not found", id)
	}
	if partIndex < 0 || partIndex >= len(msg.Parts) {
		return fmt.Errorf("message %d has no part %d", id, partIndex)
	}
	if msg.Parts[partIndex].Type != nostack.PartText {
		return fmt.Errorf("part %d of message %d is not text", partIndex, id)
	}
	msg.Parts[partIndex].Content = text
	s.touch()
	return nil
}

// ClearErrors removes all error messages.
func (s *Session) ClearErrors() {
	kept := s.Messages[:0]
	for _, m := range s.Messages {
		if m.Role != nostack.RoleError {
			kept = append(kept, m)
		}
	}
	s.Messages = kept
}

// APIMessages returns the history to send to a provider: error messages
// and empty text parts are dropped, as are messages left without parts.
func (s *Session) APIMessages() []nostack.Message {
	var out []nostack.Message
	for _, m := range s.Messages {
		if m.Role != nostack.RoleUser && m.Role != nostack.RoleAssistant {
			continue
		}
		parts := make([]nostack.Part, 0, len(m.Parts))
		for _, p := range m.Parts {
			if p.Type == nostack.PartText && p.Content == "" {
				continue
			}
			parts = append(parts, p)
		}
		if len(parts) == 0 {
			continue
		}
		m.Parts = parts
		out = append(out, m)
	}
	return out
}

// GetShortID returns the shortened session ID (first 8 characters)
func (s *Session) GetShortID() string {
	if len(s.ID) >= 8 {
		return s.ID[:8]
	}
	return s.ID
}

// GetDisplayName returns the display name for the session
// If name is set, returns the name. Otherwise, returns the short ID.
func (s *Session) GetDisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.GetShortID()
}

// MessageCount returns the number of messages in the session
func (s *Session) MessageCount() int {
	return len(s.Messages)
}
