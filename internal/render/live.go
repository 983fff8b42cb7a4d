package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultRepaintInterval bounds how often the live view repaints.
const DefaultRepaintInterval = 50 * time.Millisecond

// LiveView prints a streaming response. With a Markdown renderer it
// commits completed blocks once and repaints the trailing block in
// place; without one it writes raw deltas.
type LiveView struct {
	out     io.Writer
	md      *Markdown
	limiter *rate.Limiter

	written   int    // bytes of content already written (raw) or committed (markdown)
	tail      string // text currently painted below the committed blocks
	hasTail   bool
	indicator string
}

// NewLiveView returns a live view writing to out. md may be nil.
func NewLiveView(out io.Writer, md *Markdown, interval time.Duration) *LiveView {
	return &LiveView{
		out:       out,
		md:        md,
		limiter:   rate.NewLimiter(rate.Every(interval), 1),
		indicator: "…",
	}
}

// SetIndicator changes the placeholder painted before content arrives.
func (v *LiveView) SetIndicator(s string) {
	v.indicator = s
}

// Begin resets the view for a new response and paints the pending indicator.
func (v *LiveView) Begin() {
	v.written = 0
	v.tail = ""
	v.hasTail = false
	if v.md != nil && v.indicator != "" {
		v.paint(v.indicator)
	}
}

// Update shows content, the full response received so far.
func (v *LiveView) Update(content string) {
	if len(content) < v.written {
		// Content shrank; start over.
		v.written = 0
	}

	if v.md == nil {
		io.WriteString(v.out, content[v.written:])
		v.written = len(content)
		return
	}

	if boundary := StableBoundary(content); boundary > v.written {
		v.clear()
		v.commit(content[v.written:boundary])
		v.written = boundary
	}

	if v.limiter.Allow() {
		v.clear()
		if rest := content[v.written:]; strings.TrimSpace(rest) != "" {
			v.paint(v.md.Render(rest))
		}
	}
}

// Finish writes the complete response.
func (v *LiveView) Finish(content string) {
	if len(content) < v.written {
		v.written = 0
	}

	if v.md == nil {
		io.WriteString(v.out, content[v.written:])
		if content != "" && !strings.HasSuffix(content, "\n") {
			io.WriteString(v.out, "\n")
		}
		v.written = len(content)
		return
	}

	v.clear()
	v.commit(content[v.written:])
	v.written = len(content)
}

// Abort clears the pending indicator and anything not yet committed.
func (v *LiveView) Abort() {
	if v.md != nil {
		v.clear()
	}
}

func (v *LiveView) commit(block string) {
	if strings.TrimSpace(block) == "" {
		return
	}
	io.WriteString(v.out, v.md.Render(block))
}

func (v *LiveView) paint(s string) {
	io.WriteString(v.out, s)
	v.tail = s
	v.hasTail = true
}

// clear moves the cursor back over the painted tail and erases it.
func (v *LiveView) clear() {
	if !v.hasTail {
		return
	}
	io.WriteString(v.out, "\r")
	if n := strings.Count(v.tail, "\n"); n > 0 {
		fmt.Fprintf(v.out, "\x1b[%dA", n)
	}
	io.WriteString(v.out, "\x1b[J")
	v.tail = ""
	v.hasTail = false
}
