package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	selectedStyle = lipgloss.NewStyle().Bold(true).Reverse(true)
	helpStyle     = lipgloss.NewStyle().Faint(true)

	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
)

// frame borders the whole view. frameWidth and frameHeight are the cells
// the border and padding take.
func frame(inner string) string {
	return frameStyle.Render(inner)
}

const (
	frameWidth  = 4
	frameHeight = 2
)
