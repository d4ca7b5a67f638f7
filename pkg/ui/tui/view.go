package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"pinback/pkg/models"
)

const (
	maxActiveShown   = 8
	maxFailuresShown = 5
	maxLogsShown     = 10
)

func (m *Model) View() string {
	m.mu.RLock()
	width, height, showHelp := m.width, m.height, m.showHelp
	m.mu.RUnlock()

	if width == 0 || height == 0 {
		return "Initializing..."
	}

	s := m.Snapshot()
	colWidth := (width - 4) / 2

	sections := []string{
		headerStyle.Width(width).Render(fmt.Sprintf("pinback  %s  %s", s.Username, s.Phase)),
		m.renderProgress(s, width),
		lipgloss.JoinHorizontal(
			lipgloss.Top,
			lipgloss.JoinVertical(lipgloss.Left,
				renderCounts(s, colWidth),
				renderActive(s, colWidth, m.spinner.View()),
			),
			"  ",
			lipgloss.JoinVertical(lipgloss.Left,
				renderFailures(s, colWidth),
				renderLogs(s, colWidth),
			),
		),
	}

	if showHelp {
		sections = append(sections, helpStyle.Render("q quit   ctrl+l clear log   ? toggle help"))
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderProgress(s Stats, width int) string {
	var line string
	switch s.Phase {
	case PhaseLogin:
		line = m.spinner.View() + " signing in to pinboard"
	case PhaseCrawl:
		line = fmt.Sprintf("%s page %d, %d cached links so far", m.spinner.View(), s.Pages, s.Entries)
	default:
		line = fmt.Sprintf("%s %d/%d", m.bar.ViewAs(s.Percent()), s.Done, s.Total)
	}
	if s.Summary != "" {
		line += "\n" + valueStyle.Render(s.Summary)
	}
	return panelStyle.Width(width - 2).Render(line)
}

func renderCounts(s Stats, width int) string {
	rows := []string{titleStyle.Render("Jobs")}
	for _, state := range []models.JobState{
		models.JobSucceeded,
		models.JobSkippedExisting,
		models.JobFailed,
		models.JobTimedOut,
	} {
		rows = append(rows, fmt.Sprintf("%s %s",
			stateStyle(state).Render(fmt.Sprintf("%-17s", state)),
			valueStyle.Render(fmt.Sprintf("%d", s.Counts[state])),
		))
	}
	rows = append(rows, fmt.Sprintf("%s %s",
		labelStyle.Render(fmt.Sprintf("%-17s", "elapsed")),
		valueStyle.Render(formatDuration(s.Elapsed)),
	))
	return panelStyle.Width(width).Render(strings.Join(rows, "\n"))
}

func renderActive(s Stats, width int, spin string) string {
	rows := []string{titleStyle.Render(fmt.Sprintf("Active (%d)", len(s.Active)))}
	if len(s.Active) == 0 {
		rows = append(rows, dimStyle.Render("idle"))
	}
	for i, job := range s.Active {
		if i == maxActiveShown {
			rows = append(rows, dimStyle.Render(fmt.Sprintf("... and %d more", len(s.Active)-maxActiveShown)))
			break
		}
		rows = append(rows, fmt.Sprintf("%s %s %s",
			spin,
			truncate(job.BookmarkID, width-16),
			dimStyle.Render(formatDuration(time.Since(job.Started))),
		))
	}
	return panelStyle.Width(width).Render(strings.Join(rows, "\n"))
}

func renderFailures(s Stats, width int) string {
	rows := []string{titleStyle.Render(fmt.Sprintf("Failures (%d)", len(s.Failures)))}
	if len(s.Failures) == 0 {
		rows = append(rows, dimStyle.Render("none"))
	}
	start := len(s.Failures) - maxFailuresShown
	if start < 0 {
		start = 0
	}
	for _, job := range s.Failures[start:] {
		rows = append(rows, truncate(
			stateStyle(job.State).Render(job.Entry.BookmarkID())+" "+job.Reason,
			width-4,
		))
	}
	return panelStyle.Width(width).Render(strings.Join(rows, "\n"))
}

func renderLogs(s Stats, width int) string {
	rows := []string{titleStyle.Render("Log")}
	start := len(s.Logs) - maxLogsShown
	if start < 0 {
		start = 0
	}
	for _, log := range s.Logs[start:] {
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("%-7s", log.Level))
		rows = append(rows, fmt.Sprintf("%s %s %s",
			logTimestampStyle.Render(log.Time.Format("15:04:05")),
			level,
			truncate(log.Message, width-22),
		))
	}
	if len(s.Logs) == 0 {
		rows = append(rows, dimStyle.Render("No logs yet..."))
	}
	return panelStyle.Width(width).Render(strings.Join(rows, "\n"))
}

func truncate(s string, max int) string {
	if max < 4 || lipgloss.Width(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
