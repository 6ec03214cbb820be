package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// markdown caches one renderer for the current width. TermRenderer is not
// safe for concurrent use; the model only renders from the program loop.
type markdown struct {
	style string
	width int
	r     *glamour.TermRenderer
}

func newMarkdown(style string) *markdown {
	return &markdown{style: style}
}

func (md *markdown) render(text string, width int) string {
	if md.r == nil || md.width != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStylePath(md.style),
			glamour.WithWordWrap(width),
			glamour.WithPreservedNewLines(),
		)
		if err != nil {
			return text
		}
		md.r, md.width = r, width
	}

	out, err := md.r.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}
