package presentation

import "github.com/charmbracelet/lipgloss"

// Terminal colors. Light and dark variants follow the terminal background.
var (
	MutedColor   = lipgloss.AdaptiveColor{Light: "#A0A0A0", Dark: "#696969"}
	AddedColor   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	RemovedColor = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"}
	HeaderColor  = lipgloss.AdaptiveColor{Light: "#5C5CFF", Dark: "#8A8AFF"}
)

var (
	MutedStyle   = lipgloss.NewStyle().Foreground(MutedColor)
	AddedStyle   = lipgloss.NewStyle().Foreground(AddedColor)
	RemovedStyle = lipgloss.NewStyle().Foreground(RemovedColor)
	HeaderStyle  = lipgloss.NewStyle().Foreground(HeaderColor).Bold(true)
)

// Header renders a section title.
func Header(title string) string { return HeaderStyle.Render(title) }

// Muted renders secondary text.
func Muted(text string) string { return MutedStyle.Render(text) }
