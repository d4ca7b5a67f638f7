package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"pinback/pkg/models"
)

// ProgressDisplay prints a single updating progress line to a terminal.
// With verbose set it prints one line per finished job instead.
type ProgressDisplay struct {
	mu       sync.Mutex
	out      io.Writer
	username string
	total    int
	done     int
	active   int
	failed   int
	skipped  int
	started  time.Time
	verbose  bool
}

// NewProgressDisplay creates a display writing to stdout
func NewProgressDisplay(username string, verbose bool) *ProgressDisplay {
	return NewProgressDisplayTo(os.Stdout, username, verbose)
}

// NewProgressDisplayTo creates a display writing to out
func NewProgressDisplayTo(out io.Writer, username string, verbose bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:      out,
		username: username,
		started:  time.Now(),
		verbose:  verbose,
	}
}

func (p *ProgressDisplay) LoggingIn() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s signing in as %s\n", Magenta("→"), Cyan(p.username))
}

func (p *ProgressDisplay) CrawledPage(page, pageEntries, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.verbose {
		fmt.Fprintf(p.out, "%s page %d: %d cached links (%d total)\n", Magenta("→"), page, pageEntries, total)
		return
	}
	p.rewrite(fmt.Sprintf("%s crawling index: page %d, %d cached links", Magenta("→"), page, total))
}

func (p *ProgressDisplay) ArchiveStarted(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.started = time.Now()
	fmt.Fprintf(p.out, "\n%s archiving %d cached pages\n", Magenta("→"), total)
}

func (p *ProgressDisplay) JobStarted(job models.DownloadJob) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active++
	if !p.verbose {
		p.printProgress()
	}
}

func (p *ProgressDisplay) JobFinished(job models.DownloadJob) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	switch job.State {
	case models.JobSkippedExisting:
		p.skipped++
	case models.JobFailed, models.JobTimedOut:
		p.failed++
		p.active--
	default:
		p.active--
	}
	if p.active < 0 {
		p.active = 0
	}

	if p.verbose {
		p.printJob(job)
		return
	}
	p.printProgress()
}

// Finished prints the run summary and every failed job
func (p *ProgressDisplay) Finished(report *models.Report) {
	p.mu.Lock()
	defer p.mu.Unlock()

	mark := Green("✓")
	if report.HasFailures() {
		mark = Red("✗")
	}
	fmt.Fprintf(p.out, "\n\n%s %s in %s\n", mark, report.String(), formatDuration(report.Duration))

	for _, job := range report.Failed() {
		fmt.Fprintf(p.out, "  %s %s %s\n", Dim("•"), Red(job.Entry.BookmarkID()), job.Reason)
	}
}

func (p *ProgressDisplay) LogInfo(format string, args ...interface{}) {
	p.line(Cyan("ℹ"), format, args...)
}

func (p *ProgressDisplay) LogSuccess(format string, args ...interface{}) {
	p.line(Green("✓"), format, args...)
}

func (p *ProgressDisplay) LogWarning(format string, args ...interface{}) {
	p.line(Yellow("⚠"), format, args...)
}

func (p *ProgressDisplay) LogError(format string, args ...interface{}) {
	p.line(Red("✗"), format, args...)
}

func (p *ProgressDisplay) line(mark, format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "\n%s %s\n", mark, fmt.Sprintf(format, args...))
}

func (p *ProgressDisplay) printJob(job models.DownloadJob) {
	switch job.State {
	case models.JobSucceeded:
		fmt.Fprintf(p.out, "%s %s %s\n", Green("✓"), job.Entry.BookmarkID(), Dim(formatDuration(job.Duration)))
	case models.JobSkippedExisting:
		fmt.Fprintf(p.out, "%s %s %s\n", Dim("="), job.Entry.BookmarkID(), Dim("already archived"))
	default:
		fmt.Fprintf(p.out, "%s %s %s\n", Red("✗"), job.Entry.BookmarkID(), job.Reason)
	}
}

// printProgress redraws the progress line
func (p *ProgressDisplay) printProgress() {
	const barWidth = 20

	filled := 0
	if p.total > 0 {
		filled = p.done * barWidth / p.total
	}
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("%s [%s] %d/%d • %d active • %s",
		Cyan(p.username), bar, p.done, p.total, p.active, p.eta())
	if p.skipped > 0 {
		line += fmt.Sprintf(" • %d skipped", p.skipped)
	}
	if p.failed > 0 {
		line += " • " + Red(fmt.Sprintf("%d failed", p.failed))
	}
	p.rewrite(line)
}

func (p *ProgressDisplay) rewrite(line string) {
	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 100), line)
}

// eta estimates time remaining from the average job duration so far
func (p *ProgressDisplay) eta() string {
	if p.done == 0 || p.total == 0 {
		return "calculating..."
	}
	perJob := time.Since(p.started) / time.Duration(p.done)
	return formatDuration(perJob * time.Duration(p.total-p.done))
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
