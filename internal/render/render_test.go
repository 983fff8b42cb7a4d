package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/longkey1/nostack/internal/nostack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStableBoundary(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"empty", "", 0},
		{"single paragraph", "hello world", 0},
		{"unterminated line", "hello\n", 0},
		{"one complete block", "hello\n\nworld", len("hello\n\n")},
		{"last blank line wins", "a\n\nb\n\nc", len("a\n\nb\n\n")},
		{"blank inside fence ignored", "```go\nx := 1\n\ny := 2\n", 0},
		{"after closed fence", "```\ncode\n```\n\nmore", len("```\ncode\n```\n\n")},
		{"tilde fence", "~~~\n\n~~~\n", 0},
		{"whitespace-only line counts as blank", "a\n   \nb", len("a\n   \n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StableBoundary(tt.input))
		})
	}
}

func TestLiveViewRaw(t *testing.T) {
	var buf bytes.Buffer
	v := NewLiveView(&buf, nil, 0)

	v.Begin()
	v.Update("Hel")
	v.Update("Hello")
	v.Update("Hello, world")
	v.Finish("Hello, world")

	assert.Equal(t, "Hello, world\n", buf.String())
}

func TestLiveViewRawKeepsTrailingNewline(t *testing.T) {
	var buf bytes.Buffer
	v := NewLiveView(&buf, nil, 0)

	v.Begin()
	v.Finish("done\n")
	assert.Equal(t, "done\n", buf.String())
}

func TestLiveViewRawEmpty(t *testing.T) {
	var buf bytes.Buffer
	v := NewLiveView(&buf, nil, 0)

	v.Begin()
	v.Finish("")
	assert.Empty(t, buf.String())
}

func TestLiveViewMarkdownRepaints(t *testing.T) {
	md, err := NewMarkdown("notty", 80)
	require.NoError(t, err)

	var buf bytes.Buffer
	v := NewLiveView(&buf, md, 0)

	v.Begin()
	assert.Equal(t, "…", buf.String())

	v.Update("First paragraph")
	v.Update("First paragraph\n\nSecond")
	v.Finish("First paragraph\n\nSecond paragraph")

	out := buf.String()
	assert.Contains(t, out, "First paragraph")
	assert.Contains(t, out, "Second paragraph")
	assert.Contains(t, out, "\x1b[J")
	assert.True(t, strings.HasPrefix(out, "…\r\x1b[J"))
}

func TestLiveViewAbortClearsIndicator(t *testing.T) {
	md, err := NewMarkdown("notty", 80)
	require.NoError(t, err)

	var buf bytes.Buffer
	v := NewLiveView(&buf, md, time.Hour)
	v.Begin()
	v.Abort()

	assert.Equal(t, "…\r\x1b[J", buf.String())
}

func TestMarkdownRenderNil(t *testing.T) {
	var md *Markdown
	assert.Equal(t, "**x**", md.Render("**x**"))
}

func TestAccentColor(t *testing.T) {
	light := AccentColor("light", 230, 5)
	dark := AccentColor("dark", 230, 5)

	_, _, ll := light.Hsl()
	_, _, dl := dark.Hsl()
	assert.Less(t, ll, dl)

	red := AccentColor("light", 0, 100)
	assert.Greater(t, red.R, red.G)
	assert.Greater(t, red.R, red.B)
}

func TestHeader(t *testing.T) {
	s := NewStyles("light", 230, 5)
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.Local)

	assert.Contains(t, s.Header(nostack.RoleUser, "", "", at), "You")
	assert.Contains(t, s.Header(nostack.RoleUser, "", "", at), "09:30")
	assert.Contains(t, s.Header(nostack.RoleAssistant, "GPT-4.1", "#10a37f", time.Time{}), "GPT-4.1")
	assert.NotContains(t, s.Header(nostack.RoleAssistant, "", "", time.Time{}), ":")
	assert.Contains(t, s.Header(nostack.RoleError, "", "", at), "Error")
}
