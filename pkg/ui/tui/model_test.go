package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinback/pkg/models"
)

func finished(id string, state models.JobState, reason string) models.DownloadJob {
	job := models.NewDownloadJob(models.NewCacheEntry("/cached/"+id+"/"), "https://pinboard.in/cached/"+id+"/", "out/"+id)
	_ = job.Finish(state, reason)
	return *job
}

func TestModelTracksJobs(t *testing.T) {
	m := NewModel("maciej", 4)

	m.Update(ArchiveStartMsg{Total: 4})
	started := *models.NewDownloadJob(models.NewCacheEntry("/cached/a/"), "u", "d")
	m.Update(JobStartMsg{Job: started})

	s := m.Snapshot()
	assert.Equal(t, PhaseArchive, s.Phase)
	require.Len(t, s.Active, 1)
	assert.Equal(t, "a", s.Active[0].BookmarkID)

	m.Update(JobResultMsg{Job: finished("a", models.JobSucceeded, "")})
	m.Update(JobResultMsg{Job: finished("b", models.JobSkippedExisting, "")})
	m.Update(JobResultMsg{Job: finished("c", models.JobTimedOut, "archive timed out after 1m0s")})
	m.Update(JobResultMsg{Job: finished("d", models.JobFailed, "wget exited with status 4")})

	s = m.Snapshot()
	assert.Empty(t, s.Active)
	assert.Equal(t, 4, s.Done)
	assert.Equal(t, 1.0, s.Percent())
	assert.Equal(t, 1, s.Counts[models.JobSucceeded])
	assert.Equal(t, 1, s.Counts[models.JobSkippedExisting])
	require.Len(t, s.Failures, 2)
	assert.Equal(t, "c", s.Failures[0].Entry.BookmarkID())
}

func TestModelCrawlProgress(t *testing.T) {
	m := NewModel("maciej", 1)
	m.Update(PhaseMsg{Phase: PhaseLogin})
	assert.Equal(t, PhaseLogin, m.Snapshot().Phase)

	m.Update(CrawlProgressMsg{Page: 3, Total: 412})
	s := m.Snapshot()
	assert.Equal(t, PhaseCrawl, s.Phase)
	assert.Equal(t, 3, s.Pages)
	assert.Equal(t, 412, s.Entries)
	assert.Equal(t, 0.0, s.Percent())
}

func TestModelLogTailIsBounded(t *testing.T) {
	m := NewModel("maciej", 1)
	for i := 0; i < 80; i++ {
		m.Update(LogMsg{Level: "INFO", Message: "line"})
	}
	assert.Len(t, m.Snapshot().Logs, 50)

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	assert.Empty(t, m.Snapshot().Logs)
}

func TestModelQuitKey(t *testing.T) {
	m := NewModel("maciej", 1)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestViewRendersCounts(t *testing.T) {
	m := NewModel("maciej", 2)
	assert.Equal(t, "Initializing...", m.View())

	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m.Update(ArchiveStartMsg{Total: 2})
	m.Update(JobResultMsg{Job: finished("a", models.JobFailed, "wget exited with status 4")})
	m.Update(DoneMsg{Summary: "2 jobs: 0 succeeded, 0 skipped, 1 failed, 0 timed out"})

	view := m.View()
	assert.Contains(t, view, "maciej")
	assert.Contains(t, view, "Failures (1)")
	assert.Contains(t, view, "status 4")
	assert.Contains(t, view, "1 failed")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "00:05", formatDuration(5_000_000_000))
	assert.Equal(t, "01:01:01", formatDuration(3661_000_000_000))
	assert.Equal(t, "00:00", formatDuration(-1))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "x", truncate("x", 2))
}

