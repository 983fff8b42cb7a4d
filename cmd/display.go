package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/longkey1/nostack/internal/nostack"
	"github.com/longkey1/nostack/internal/nostack/attach"
	"github.com/longkey1/nostack/internal/render"
	"github.com/mattn/go-runewidth"
)

// modelLabel returns the display name and colour of a "provider:model"
// string, falling back to the raw model id.
func (a *app) modelLabel(modelStr string) (string, string) {
	if modelStr == "" {
		return "", ""
	}
	_, id, err := nostack.ParseModelString(modelStr)
	if err != nil {
		return modelStr, ""
	}
	if m := a.catalog.FindByID(id); m != nil {
		return m.Name, m.Color
	}
	return id, ""
}

// printMessage writes one message: its header, then its text and images.
func (a *app) printMessage(w io.Writer, st render.Styles, msg *nostack.Message, withID bool) {
	label, color := "", ""
	if msg.Role == nostack.RoleAssistant {
		label, color = a.modelLabel(msg.Model)
	}
	header := st.Header(msg.Role, label, color, msg.Timestamp)
	if withID {
		header = st.Muted.Render(fmt.Sprintf("#%d", msg.ID)) + " " + header
	}
	fmt.Fprintln(w, header)

	for i, part := range msg.Parts {
		switch part.Type {
		case nostack.PartImage:
			fmt.Fprintln(w, st.Muted.Render(fmt.Sprintf("[image %d: %s]", i, attach.Describe(part.Content))))
		default:
			switch msg.Role {
			case nostack.RoleAssistant:
				fmt.Fprint(w, a.renderMarkdown(part.Content))
			case nostack.RoleError:
				fmt.Fprintln(w, st.Error.Render(part.Content))
			default:
				fmt.Fprintln(w, part.Content)
			}
		}
	}
	fmt.Fprintln(w)
}

// summaryLine shortens a message to one line for listings.
func summaryLine(msg *nostack.Message, width int) string {
	text := strings.Join(strings.Fields(msg.Text()), " ")
	if n := len(msg.Images()); n > 0 {
		text = fmt.Sprintf("[%d image(s)] %s", n, text)
	}
	return runewidth.Truncate(text, width, "…")
}
