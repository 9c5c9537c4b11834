package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Jayphen/habisnooze/internal/types"
)

// View renders the UI.
func (m Dashboard) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	if m.confirmRun {
		b.WriteString(m.renderConfirmDialog())
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString(ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	} else {
		b.WriteString(m.renderRunList())
		b.WriteString("\n")
		b.WriteString(m.renderRunDetail())
	}

	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())

	return lipgloss.NewStyle().Padding(1).Render(b.String())
}

// renderHeader renders the application header.
func (m Dashboard) renderHeader() string {
	title := TitleStyle.Render("habisnooze")
	version := ""
	if m.version != "" {
		version = " " + DimStyle.Render(m.version)
	}
	subtitle := DimStyle.Render("Snooze runs")

	line := title + version + "\n" + subtitle
	if m.running {
		line += "  " + m.spinner.View() + " running"
	} else if m.lockOwner != "" {
		line += "  " + WarningStyle.Render("run in progress on "+m.lockOwner)
	}
	return line
}

// renderConfirmDialog renders the run confirmation dialog.
func (m Dashboard) renderConfirmDialog() string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorYellow).
		Padding(1, 2).
		Foreground(ColorYellow)

	return style.Render("Snooze eligible dailies now? (y/n)")
}

// renderRunList renders the recorded runs, newest first.
func (m Dashboard) renderRunList() string {
	if m.loading && len(m.runs) == 0 {
		return m.spinner.View() + " Loading runs..."
	}

	if len(m.runs) == 0 {
		style := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorGray).
			Padding(1, 2).
			Foreground(ColorGray)
		return style.Render("No runs recorded yet")
	}

	var b strings.Builder

	headers := fmt.Sprintf(" %-3s%-12s%-16s%-10s%-10s%s",
		"", "STARTED", "STATUS", "SNOOZED", "FAILED", "TOOK")
	b.WriteString(DimStyle.Bold(true).Render(headers))
	b.WriteString("\n")

	for i := range m.runs {
		b.WriteString(m.renderRunRow(i))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Dashboard) renderRunRow(index int) string {
	run := m.runs[index]

	cursor := "   "
	if index == m.selectedIndex {
		cursor = SelectedStyle.Render(" > ")
	}

	took := "-"
	if d := run.Duration(); d > 0 {
		took = d.Round(time.Millisecond).String()
	}

	return cursor +
		Pad(formatAge(run.StartedAt), 12) +
		Pad(RunStatus(run.Status), 16) +
		Pad(fmt.Sprintf("%d/%d", run.Created, run.Eligible), 10) +
		Pad(fmt.Sprintf("%d", run.Failed), 10) +
		DimStyle.Render(took)
}

// renderRunDetail renders the selected run's snoozed and failed dailies.
func (m Dashboard) renderRunDetail() string {
	run := m.selectedRun()
	if run == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderDetailRow("Run", run.RunID))
	b.WriteString(m.renderDetailRow("Started", run.StartedAt.Local().Format(time.DateTime)))
	if !run.ReferenceDate.IsZero() {
		b.WriteString(m.renderDetailRow("Reference", run.ReferenceDate.Format(time.DateOnly)))
		b.WriteString(m.renderDetailRow("Due", run.DueDate.Format(time.DateOnly)))
	}
	b.WriteString(m.renderDetailRow("Dailies", fmt.Sprintf("%d fetched, %d eligible", run.Fetched, run.Eligible)))
	if run.Error != "" {
		b.WriteString(m.renderDetailRow("Error", ErrorStyle.Render(run.Error)))
	}

	for _, t := range run.Snoozed {
		b.WriteString("  " + SuccessStyle.Render(IndicatorOK) + " " + Truncate(t.Text, 60) + "\n")
	}
	for _, t := range run.Failures {
		b.WriteString("  " + ErrorStyle.Render(IndicatorFailed) + " " + Truncate(t.Text, 40) + " " + DimStyle.Render(Truncate(t.Error, 60)) + "\n")
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorGray).
		Padding(0, 1)

	return style.Render(strings.TrimRight(b.String(), "\n"))
}

// renderDetailRow renders a label: value row in the detail panel.
func (m Dashboard) renderDetailRow(label, value string) string {
	labelStyle := DimStyle.Width(12)
	return labelStyle.Render(label) + value + "\n"
}

// renderStatusBar renders the bottom status bar.
func (m Dashboard) renderStatusBar() string {
	counts := DimStyle.Render(fmt.Sprintf("%d runs", len(m.runs)))
	if failed := countFailed(m.runs); failed > 0 {
		counts += DimStyle.Render(", ") + ErrorStyle.Render(fmt.Sprintf("%d failed", failed))
	}

	help := []string{
		HelpKeyStyle.Render("↑↓/jk") + " nav",
		HelpKeyStyle.Render("r") + " refresh",
	}
	if m.trigger != nil {
		help = append(help, HelpKeyStyle.Render("x")+" run now")
	}
	help = append(help, HelpKeyStyle.Render("q")+" quit")
	helpLine := DimStyle.Render(strings.Join(help, "  "))

	sep := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), true, false, false, false).
		BorderForeground(ColorGray).
		PaddingTop(1)

	// Calculate spacing using visible width, not byte length
	spacing := 30 - lipgloss.Width(counts)
	if spacing < 2 {
		spacing = 2
	}

	var b strings.Builder
	if m.statusMessage != "" && !m.confirmRun {
		b.WriteString(StatusMsgStyle.Render(m.statusMessage))
		b.WriteString("\n")
	}
	b.WriteString(counts)
	b.WriteString(strings.Repeat(" ", spacing))
	b.WriteString(helpLine)

	return sep.Render(b.String())
}

// countFailed counts runs that did not end cleanly.
func countFailed(runs []types.RunSummary) int {
	n := 0
	for _, r := range runs {
		switch r.Status {
		case types.RunCompleted, types.RunNoTasks, types.RunSkipped:
		default:
			n++
		}
	}
	return n
}

// formatAge formats a time as a human-readable age string.
func formatAge(t time.Time) string {
	d := time.Since(t)

	if d < time.Minute {
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(d.Hours()/24))
}
