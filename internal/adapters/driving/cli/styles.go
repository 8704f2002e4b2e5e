package cli

import "github.com/charmbracelet/lipgloss"

// Styles for human-facing command output. They degrade to plain text
// when stdout is not a terminal.
var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	hintStyle    = lipgloss.NewStyle().Faint(true)
)
