// Package ui holds the lipgloss styles used by the CLI's tables and the
// Bubbletea run dashboard.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Jayphen/habisnooze/internal/snooze"
	"github.com/Jayphen/habisnooze/internal/types"
)

// Color palette
var (
	ColorCyan    = lipgloss.Color("86")
	ColorGreen   = lipgloss.Color("78")
	ColorYellow  = lipgloss.Color("221")
	ColorRed     = lipgloss.Color("196")
	ColorGray    = lipgloss.Color("245")
	ColorDimGray = lipgloss.Color("239")
)

// Common styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorCyan)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorGray)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(ColorCyan).
			Bold(true)

	// Help key style
	HelpKeyStyle = lipgloss.NewStyle().
			Foreground(ColorCyan)

	StatusMsgStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Italic(true)
)

// Status indicators
const (
	IndicatorSnooze  = "●"
	IndicatorSkip    = "○"
	IndicatorOK      = "✓"
	IndicatorFailed  = "✗"
	IndicatorPartial = "◐"
	IndicatorSkipped = "…"
)

// RunStatus renders a run status with its indicator and color.
func RunStatus(status types.RunStatus) string {
	switch status {
	case types.RunCompleted:
		return SuccessStyle.Render(IndicatorOK + " " + string(status))
	case types.RunPartial:
		return WarningStyle.Render(IndicatorPartial + " " + string(status))
	case types.RunNoTasks, types.RunSkipped:
		return DimStyle.Render(IndicatorSkipped + " " + string(status))
	default:
		return ErrorStyle.Render(IndicatorFailed + " " + string(status))
	}
}

// Decision renders an eligibility decision: green for a snooze, gray with
// the reason otherwise.
func Decision(d snooze.Decision) string {
	if d.Eligible {
		return SuccessStyle.Render(IndicatorSnooze + " snooze")
	}
	return DimStyle.Render(IndicatorSkip + " " + string(d.Reason))
}

// Truncate shortens s to width runes, marking the cut with "...".
func Truncate(s string, width int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if width <= 3 || len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}

// Pad right-pads s to width visible cells, ignoring ANSI styling.
func Pad(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
