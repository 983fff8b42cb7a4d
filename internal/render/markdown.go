// Package render draws conversations in the terminal: markdown through
// glamour, message headers styled from the accent settings, and a live
// view that repaints a streaming response in place.
package render

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog/log"
)

// Markdown renders markdown for the terminal.
type Markdown struct {
	renderer *glamour.TermRenderer
}

// NewMarkdown returns a renderer for the given theme ("light", "dark",
// "system", or any glamour standard style name) wrapping at width.
func NewMarkdown(theme string, width int) (*Markdown, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	switch theme {
	case "", "system":
		opts = append(opts, glamour.WithAutoStyle())
	default:
		opts = append(opts, glamour.WithStandardStyle(theme))
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, err
	}
	return &Markdown{renderer: r}, nil
}

// Render renders s. The input is returned unchanged when rendering fails.
func (m *Markdown) Render(s string) string {
	if m == nil || m.renderer == nil {
		return s
	}
	out, err := m.renderer.Render(s)
	if err != nil {
		log.Debug().Err(err).Msg("markdown render failed")
		return s
	}
	return out
}

// StableBoundary returns the length of the prefix of s made of complete
// markdown blocks: everything up to and including the last blank line
// that is outside a fenced code block. Text after it may still change
// meaning as more content streams in.
func StableBoundary(s string) int {
	boundary := 0
	inFence := false
	pos := 0
	for {
		i := strings.IndexByte(s[pos:], '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSpace(s[pos : pos+i])
		next := pos + i + 1

		switch {
		case strings.HasPrefix(line, "```") || strings.HasPrefix(line, "~~~"):
			inFence = !inFence
		case line == "" && !inFence:
			boundary = next
		}
		pos = next
	}
	return boundary
}
