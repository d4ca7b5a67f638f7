package ui

import "pinback/pkg/models"

// Observer follows a backup run. ProgressDisplay and tui.TUI implement it.
type Observer interface {
	LoggingIn()
	CrawledPage(page, pageEntries, total int)
	ArchiveStarted(total int)
	JobStarted(job models.DownloadJob)
	JobFinished(job models.DownloadJob)
	Finished(report *models.Report)
	LogInfo(format string, args ...interface{})
	LogSuccess(format string, args ...interface{})
	LogWarning(format string, args ...interface{})
	LogError(format string, args ...interface{})
}

// Silent is an Observer that ignores everything
type Silent struct{}

func (Silent) LoggingIn()                         {}
func (Silent) CrawledPage(int, int, int)          {}
func (Silent) ArchiveStarted(int)                 {}
func (Silent) JobStarted(models.DownloadJob)      {}
func (Silent) JobFinished(models.DownloadJob)     {}
func (Silent) Finished(*models.Report)            {}
func (Silent) LogInfo(string, ...interface{})     {}
func (Silent) LogSuccess(string, ...interface{})  {}
func (Silent) LogWarning(string, ...interface{})  {}
func (Silent) LogError(string, ...interface{})    {}
