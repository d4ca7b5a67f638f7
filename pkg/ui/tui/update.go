package tui

import (
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"pinback/pkg/models"
)

// PhaseMsg moves the run to a new stage
type PhaseMsg struct {
	Phase Phase
}

// CrawlProgressMsg is sent after each index page
type CrawlProgressMsg struct {
	Page  int
	Total int
}

// ArchiveStartMsg is sent once the job count is known
type ArchiveStartMsg struct {
	Total int
}

// JobStartMsg is sent when a worker begins fetching
type JobStartMsg struct {
	Job models.DownloadJob
}

// JobResultMsg is sent when a job reaches a terminal state
type JobResultMsg struct {
	Job models.DownloadJob
}

// DoneMsg ends the run
type DoneMsg struct {
	Summary string
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg is sent periodically to refresh elapsed times
type TickMsg time.Time

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.mu.Lock()
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = msg.Width - 20
		if m.bar.Width < 10 {
			m.bar.Width = 10
		}
		m.mu.Unlock()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		return m, tickCmd()

	case PhaseMsg:
		m.SetPhase(msg.Phase)
		return m, nil

	case CrawlProgressMsg:
		m.CrawledPage(msg.Page, msg.Total)
		return m, nil

	case ArchiveStartMsg:
		m.StartArchive(msg.Total)
		m.AddLogMessage("INFO", "Archiving "+strconv.Itoa(msg.Total)+" cached pages")
		return m, nil

	case JobStartMsg:
		m.StartJob(msg.Job)
		return m, nil

	case JobResultMsg:
		m.FinishJob(msg.Job)
		id := msg.Job.Entry.BookmarkID()
		switch msg.Job.State {
		case models.JobFailed, models.JobTimedOut:
			m.AddLogMessage("ERROR", id+": "+msg.Job.Reason)
		case models.JobSucceeded:
			m.AddLogMessage("SUCCESS", "Archived "+id)
		}
		return m, nil

	case DoneMsg:
		m.Finish(msg.Summary)
		m.AddLogMessage("SUCCESS", msg.Summary)
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit

	case "?":
		m.mu.Lock()
		m.showHelp = !m.showHelp
		m.mu.Unlock()
		return m, nil

	case "ctrl+l":
		m.mu.Lock()
		m.logMessages = nil
		m.mu.Unlock()
		return m, nil
	}

	return m, nil
}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
