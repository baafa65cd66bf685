package ui

import "strings"

// Theme bundles palette + symbols + box borders.
// All UI helpers pull from `current`.
type Theme struct {
	Title, Muted, Accent string
	Success, Error       string
	CornerTL, CornerTR   string
	CornerBL, CornerBR   string
	H, V                 string
	Bullet               string
}

var current Theme

func init() { SetTheme("classic") }

// SetTheme selects neon, mono or classic (the default for unknown names).
// Mono has no colors at all.
func SetTheme(name string) {
	switch strings.ToLower(name) {
	case "neon":
		current = Theme{
			Title: "\033[95m", // bright magenta
			Muted: fgGray, Accent: "\033[96m",
			Success: "\033[92m", Error: "\033[91m",
			CornerTL: "╭", CornerTR: "╮", CornerBL: "╰", CornerBR: "╯",
			H: "─", V: "│",
			Bullet: "◼",
		}
	case "mono":
		current = Theme{
			CornerTL: "+", CornerTR: "+", CornerBL: "+", CornerBR: "+",
			H: "-", V: "|",
			Bullet: "-",
		}
	default: // classic
		current = Theme{
			Title: bold, Muted: fgGray, Accent: fgBlue,
			Success: fgGreen, Error: fgRed,
			CornerTL: "┌", CornerTR: "┐", CornerBL: "└", CornerBR: "┘",
			H: "─", V: "│",
			Bullet: "•",
		}
	}
}

// Current exposes what renderers need.
func Current() Theme { return current }
