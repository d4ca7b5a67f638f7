package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"pinback/pkg/models"
)

// TUI runs the full-screen progress view of a backup
type TUI struct {
	program *tea.Program
	model   *Model
}

// NewTUI creates a TUI for username's run with the given worker count
func NewTUI(username string, concurrency int, opts ...tea.ProgramOption) *TUI {
	model := NewModel(username, concurrency)
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	return &TUI{
		program: tea.NewProgram(model, opts...),
		model:   model,
	}
}

// Start runs the program until the user quits or Stop is called
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

// Stop quits the program
func (t *TUI) Stop() {
	t.program.Quit()
}

// Send sends a message to the program
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

// Model exposes the underlying model
func (t *TUI) Model() *Model {
	return t.model
}

func (t *TUI) LoggingIn() {
	t.Send(PhaseMsg{Phase: PhaseLogin})
}

func (t *TUI) CrawledPage(page, pageEntries, total int) {
	t.Send(CrawlProgressMsg{Page: page, Total: total})
}

func (t *TUI) ArchiveStarted(total int) {
	t.Send(ArchiveStartMsg{Total: total})
}

func (t *TUI) JobStarted(job models.DownloadJob) {
	t.Send(JobStartMsg{Job: job})
}

func (t *TUI) JobFinished(job models.DownloadJob) {
	t.Send(JobResultMsg{Job: job})
}

func (t *TUI) Finished(report *models.Report) {
	t.Send(DoneMsg{Summary: report.String()})
}

// Log sends a log message to the TUI
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (t *TUI) LogInfo(format string, args ...interface{})    { t.Log("INFO", format, args...) }
func (t *TUI) LogSuccess(format string, args ...interface{}) { t.Log("SUCCESS", format, args...) }
func (t *TUI) LogWarning(format string, args ...interface{}) { t.Log("WARN", format, args...) }
func (t *TUI) LogError(format string, args ...interface{})   { t.Log("ERROR", format, args...) }
