package render

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/longkey1/nostack/internal/nostack"
	"github.com/lucasb-eyer/go-colorful"
)

// Styles holds the lipgloss styles derived from the theme and accent.
type Styles struct {
	Accent lipgloss.Style
	Muted  lipgloss.Style
	Error  lipgloss.Style
	Bold   lipgloss.Style
}

// AccentColor returns the accent colour for a hue (0-360) and saturation
// (0-100). Dark themes get a lighter shade. Low saturations are lifted so
// the accent stays distinguishable from plain text.
func AccentColor(theme string, hue, saturation int) colorful.Color {
	l := 0.4
	if theme == "dark" {
		l = 0.7
	}
	s := 0.35 + 0.65*float64(clamp(saturation, 0, 100))/100
	return colorful.Hsl(float64(clamp(hue, 0, 360)), s, l).Clamped()
}

// NewStyles builds the styles for a theme and accent.
func NewStyles(theme string, hue, saturation int) Styles {
	accent := lipgloss.Color(AccentColor(theme, hue, saturation).Hex())
	return Styles{
		Accent: lipgloss.NewStyle().Foreground(accent).Bold(true),
		Muted:  lipgloss.NewStyle().Faint(true),
		Error:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Bold:   lipgloss.NewStyle().Bold(true),
	}
}

// Header returns the line printed above a message. label names the
// speaker; color, when set, overrides the accent for assistant messages.
func (s Styles) Header(role nostack.Role, label, color string, at time.Time) string {
	style := s.Accent
	switch role {
	case nostack.RoleUser:
		if label == "" {
			label = "You"
		}
	case nostack.RoleError:
		style = s.Error
		if label == "" {
			label = "Error"
		}
	default:
		if label == "" {
			label = "Assistant"
		}
		if color != "" {
			style = style.Foreground(lipgloss.Color(color))
		}
	}

	header := style.Render("● " + label)
	if !at.IsZero() {
		header = fmt.Sprintf("%s  %s", header, s.Muted.Render(at.Local().Format("15:04")))
	}
	return header
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
