package tui

import (
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pinback/pkg/models"
)

// Phase is the stage of a backup run
type Phase int

const (
	PhaseLogin Phase = iota
	PhaseCrawl
	PhaseArchive
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseLogin:
		return "logging in"
	case PhaseCrawl:
		return "crawling index"
	case PhaseArchive:
		return "archiving"
	default:
		return "done"
	}
}

// ActiveJob is a job a worker is currently fetching
type ActiveJob struct {
	BookmarkID string
	URL        string
	Started    time.Time
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// Model is the bubbletea model for a backup run
type Model struct {
	spinner spinner.Model
	bar     progress.Model

	username    string
	concurrency int
	phase       Phase

	pages   int
	entries int

	total    int
	active   map[string]ActiveJob
	counts   map[models.JobState]int
	failures []models.DownloadJob
	started  time.Time
	summary  string

	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int

	mu sync.RWMutex
}

// NewModel creates a model for a run with the given worker count
func NewModel(username string, concurrency int) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(pinBlue)

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40

	return &Model{
		spinner:        s,
		bar:            bar,
		username:       username,
		concurrency:    concurrency,
		active:         make(map[string]ActiveJob),
		counts:         make(map[models.JobState]int),
		started:        time.Now(),
		maxLogMessages: 50,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// SetPhase moves the run to a new stage
func (m *Model) SetPhase(p Phase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phase = p
}

// CrawledPage records one more index page
func (m *Model) CrawledPage(page, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.phase = PhaseCrawl
	m.pages = page
	m.entries = total
}

// StartArchive records how many jobs the run will dispatch
func (m *Model) StartArchive(total int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.phase = PhaseArchive
	m.total = total
}

// StartJob marks a bookmark as being fetched
func (m *Model) StartJob(job models.DownloadJob) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := job.Entry.BookmarkID()
	m.active[id] = ActiveJob{BookmarkID: id, URL: job.URL, Started: time.Now()}
}

// FinishJob records a job's terminal state
func (m *Model) FinishJob(job models.DownloadJob) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.active, job.Entry.BookmarkID())
	m.counts[job.State]++
	if job.State == models.JobFailed || job.State == models.JobTimedOut {
		m.failures = append(m.failures, job)
	}
}

// Finish ends the run with a one-line summary
func (m *Model) Finish(summary string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.phase = PhaseDone
	m.summary = summary
	m.active = make(map[string]ActiveJob)
}

// AddLogMessage appends to the log tail
func (m *Model) AddLogMessage(level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   levelColor(level),
	})
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// Stats is a consistent copy of the model's counters
type Stats struct {
	Username string
	Phase    Phase
	Pages    int
	Entries  int
	Total    int
	Done     int
	Counts   map[models.JobState]int
	Active   []ActiveJob
	Failures []models.DownloadJob
	Elapsed  time.Duration
	Summary  string
	Logs     []LogMessage
}

// Percent is the share of jobs in a terminal state
func (s Stats) Percent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Done) / float64(s.Total)
}

// Snapshot copies the counters under the read lock
func (m *Model) Snapshot() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{
		Username: m.username,
		Phase:    m.phase,
		Pages:    m.pages,
		Entries:  m.entries,
		Total:    m.total,
		Counts:   make(map[models.JobState]int, len(m.counts)),
		Failures: append([]models.DownloadJob(nil), m.failures...),
		Elapsed:  time.Since(m.started),
		Summary:  m.summary,
		Logs:     append([]LogMessage(nil), m.logMessages...),
	}
	for state, n := range m.counts {
		s.Counts[state] = n
		s.Done += n
	}
	for _, job := range m.active {
		s.Active = append(s.Active, job)
	}
	sort.Slice(s.Active, func(i, j int) bool {
		return s.Active[i].Started.Before(s.Active[j].Started)
	})
	return s
}
