// Package ui provides the visual styling for sift's command output.
package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	ColorPrimary = lipgloss.Color("#5F87FF") // blue
	ColorSuccess = lipgloss.Color("#8BC34A") // green
	ColorWarning = lipgloss.Color("#FFC107") // yellow
	ColorError   = lipgloss.Color("#E53935") // red
	ColorMuted   = lipgloss.Color("#808080") // gray
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true)

	SuccessStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	WarningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorError)
	MutedStyle   = lipgloss.NewStyle().Foreground(ColorMuted)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted).
			Padding(0, 1)
)

// Success renders a checkmark line.
func Success(format string, args ...interface{}) string {
	return SuccessStyle.Render("✓ " + fmt.Sprintf(format, args...))
}

// Warn renders a warning line.
func Warn(format string, args ...interface{}) string {
	return WarningStyle.Render("! " + fmt.Sprintf(format, args...))
}

// Fail renders an error line.
func Fail(format string, args ...interface{}) string {
	return ErrorStyle.Render("✗ " + fmt.Sprintf(format, args...))
}

// Muted renders secondary detail text.
func Muted(format string, args ...interface{}) string {
	return MutedStyle.Render(fmt.Sprintf(format, args...))
}

// StatusIcon maps a phase status to its list marker.
func StatusIcon(status string) string {
	switch status {
	case "pending":
		return MutedStyle.Render("○")
	case "captured":
		return WarningStyle.Render("◍")
	case "transcribed":
		return WarningStyle.Render("◉")
	case "extracted":
		return SuccessStyle.Render("◉")
	case "complete":
		return SuccessStyle.Render("●")
	default:
		return "?"
	}
}
