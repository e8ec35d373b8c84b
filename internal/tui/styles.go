// Package tui renders entity tables in the terminal: a static printer for
// one-shot listings and an interactive bubbletea browser.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#1F4E79")
	colorMuted   = lipgloss.Color("#8A8F98")
	colorBorder  = lipgloss.Color("#C9CED6")
)

// badgeColors maps catalog badge names to terminal colors.
var badgeColors = map[string]lipgloss.Color{
	"green":  lipgloss.Color("#2E7D32"),
	"yellow": lipgloss.Color("#F9A825"),
	"red":    lipgloss.Color("#C62828"),
	"blue":   lipgloss.Color("#1565C0"),
	"purple": lipgloss.Color("#6A1B9A"),
	"gray":   lipgloss.Color("#757575"),
}

// Styles groups the lipgloss styles used by the printer and the browser.
type Styles struct {
	Title   lipgloss.Style
	Header  lipgloss.Style
	Cell    lipgloss.Style
	Muted   lipgloss.Style
	Error   lipgloss.Style
	Search  lipgloss.Style
	Focused lipgloss.Style
}

// DefaultStyles returns the standard styles.
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(colorPrimary),
		Header:  lipgloss.NewStyle().Bold(true).Padding(0, 1),
		Cell:    lipgloss.NewStyle().Padding(0, 1),
		Muted:   lipgloss.NewStyle().Foreground(colorMuted),
		Error:   lipgloss.NewStyle().Foreground(badgeColors["red"]),
		Search:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorBorder).Padding(0, 1),
		Focused: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorPrimary).Padding(0, 1),
	}
}

// Badge renders a status value in its catalog color.
func (s Styles) Badge(text, color string) string {
	c, ok := badgeColors[color]
	if !ok {
		c = badgeColors["gray"]
	}
	return lipgloss.NewStyle().Foreground(c).Bold(true).Render(text)
}
