package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/idilsaglam/itemwatch/internal/model"
)

const maxNameWidth = 80

// ItemLines renders one line per item in the given order: a bullet and the
// name, truncated to fit a panel.
func ItemLines(items []model.Item) []string {
	t := Current()
	out := make([]string, 0, len(items))
	for _, it := range items {
		name := it.Name
		if r := []rune(name); len(r) > maxNameWidth {
			name = string(r[:maxNameWidth-3]) + "..."
		}
		out = append(out, fmt.Sprintf("%s %s", C(t.Muted, t.Bullet), name))
	}
	return out
}

// Header is the first panel line: title and count.
func Header(title string, n int) string {
	t := Current()
	return fmt.Sprintf("%s  %s %d", C(t.Title, title), C(t.Accent, "Total"), n)
}

// Panel draws a framed box using the current theme.
func Panel(w io.Writer, lines []string) {
	t := Current()
	maxw := 0
	for _, ln := range lines {
		if lw := lipgloss.Width(ln); lw > maxw {
			maxw = lw
		}
	}
	pad := func(s string) string {
		if vis := lipgloss.Width(s); vis < maxw {
			s += strings.Repeat(" ", maxw-vis)
		}
		return s
	}
	fmt.Fprintln(w, t.CornerTL+strings.Repeat(t.H, maxw+2)+t.CornerTR)
	for _, ln := range lines {
		fmt.Fprintln(w, t.V+" "+pad(ln)+" "+t.V)
	}
	fmt.Fprintln(w, t.CornerBL+strings.Repeat(t.H, maxw+2)+t.CornerBR)
}
