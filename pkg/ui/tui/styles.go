package tui

import (
	"github.com/charmbracelet/lipgloss"

	"pinback/pkg/models"
)

var (
	pinBlue    = lipgloss.Color("#3C6EB4")
	paperWhite = lipgloss.Color("#F4F4EE")
	inkGrey    = lipgloss.Color("#8A8A8A")
	okGreen    = lipgloss.Color("#4CAF50")
	warnAmber  = lipgloss.Color("#FFB300")
	failRed    = lipgloss.Color("#E53935")

	headerStyle = lipgloss.NewStyle().
			Foreground(paperWhite).
			Background(pinBlue).
			Bold(true).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(pinBlue).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Foreground(pinBlue).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(inkGrey)

	valueStyle = lipgloss.NewStyle().
			Foreground(paperWhite).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(inkGrey).
			Faint(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(inkGrey).
			Padding(1, 0, 0, 1)

	logTimestampStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666"))
)

// levelColor picks the colour a log level is rendered in
func levelColor(level string) lipgloss.Color {
	switch level {
	case "ERROR":
		return failRed
	case "WARN":
		return warnAmber
	case "SUCCESS":
		return okGreen
	default:
		return pinBlue
	}
}

// stateStyle renders a job state label
func stateStyle(state models.JobState) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch state {
	case models.JobSucceeded:
		return base.Foreground(okGreen)
	case models.JobSkippedExisting:
		return base.Foreground(inkGrey)
	case models.JobTimedOut:
		return base.Foreground(warnAmber)
	case models.JobFailed:
		return base.Foreground(failRed)
	default:
		return base.Foreground(pinBlue)
	}
}
