package session

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/longkey1/nostack/internal/nostack"
)

// Export is the portable conversation format: the messages and the
// system prompt they were produced under.
type Export struct {
	Messages []ExportMessage `json:"messages"`
	System   string          `json:"system"`
}

// ExportMessage is one message of an Export.
type ExportMessage struct {
	Role      nostack.Role   `json:"role"`
	Parts     []nostack.Part `json:"parts"`
	Timestamp time.Time      `json:"timestamp"`
	Model     string         `json:"model,omitempty"`
}

// ToExport converts the session into the export format. Error messages
// are not part of the conversation and are left out.
func (s *Session) ToExport() *Export {
	exp := &Export{
		Messages: make([]ExportMessage, 0, len(s.Messages)),
		System:   s.SystemPrompt,
	}
	for _, m := range s.Messages {
		if m.Role == nostack.RoleError {
			continue
		}
		exp.Messages = append(exp.Messages, ExportMessage{
			Role:      m.Role,
			Parts:     m.Parts,
			Timestamp: m.Timestamp,
			Model:     m.Model,
		})
	}
	return exp
}

// WriteExport writes the session as indented JSON.
func (s *Session) WriteExport(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.ToExport()); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}

// ReadExport decodes and validates an export.
func ReadExport(r io.Reader) (*Export, error) {
	var exp Export
	if err := json.NewDecoder(r).Decode(&exp); err != nil {
		return nil, fmt.Errorf("failed to parse export: %w", err)
	}

	for i, m := range exp.Messages {
		if m.Role != nostack.RoleUser && m.Role != nostack.RoleAssistant {
			return nil, fmt.Errorf("message %d: unsupported role %q", i+1, m.Role)
		}
		if len(m.Parts) == 0 {
			return nil, fmt.Errorf("message %d: no parts", i+1)
		}
		for j, p := range m.Parts {
			switch p.Type {
			case nostack.PartText:
			case nostack.PartImage:
				if _, _, ok := nostack.ParseDataURL(p.Content); !ok {
					return nil, fmt.Errorf("message %d part %d: image is not a base64 data URL", i+1, j+1)
				}
			default:
				return nil, fmt.Errorf("message %d part %d: unsupported part type %q", i+1, j+1, p.Type)
			}
		}
	}
	return &exp, nil
}

// FromExport builds a new session from an export.
func FromExport(exp *Export, model string) *Session {
	sess := NewSession(model)
	sess.SystemPrompt = exp.System
	for _, m := range exp.Messages {
		msg := sess.AddMessage(m.Role)
		msg.Parts = append(msg.Parts, m.Parts...)
		msg.Model = m.Model
		if !m.Timestamp.IsZero() {
			msg.Timestamp = m.Timestamp
		}
	}
	return sess
}
