package downloader

import (
	"context"
	"fmt"
	"time"

	"pinback/pkg/logger"
	"pinback/pkg/models"
	"pinback/pkg/pinboard"
	"pinback/pkg/storage"
)

// Dispatcher fans cache entries out to a Fetcher
type Dispatcher struct {
	Fetcher    Fetcher
	Credential Credential
	BaseURL    string
	JobTimeout time.Duration
	Logger     logger.Logger

	// OnStart and OnResult, if set, observe job progress. OnResult is
	// called from a single goroutine.
	OnStart  func(job models.DownloadJob)
	OnResult func(job models.DownloadJob)
}

// Dispatch archives every entry into outputDirectory/<bookmarkId> using at
// most concurrency simultaneous fetches. Jobs are independent: one job
// failing or timing out does not affect the others. The returned report
// holds every job in completion order.
func (d *Dispatcher) Dispatch(ctx context.Context, entries []models.CacheEntry, outputDirectory string, concurrency int) (*models.Report, error) {
	log := d.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	baseURL := d.BaseURL
	if baseURL == "" {
		baseURL = pinboard.BaseURL
	}

	store, err := storage.NewManager(outputDirectory)
	if err != nil {
		return nil, err
	}

	report := models.NewReport()
	pool := NewWorkerPool(concurrency, d.Fetcher, store, d.Credential, d.JobTimeout, log)
	pool.OnStart = d.OnStart

	logger.LogComponentStart(log, "dispatcher", map[string]interface{}{
		"jobs":        len(entries),
		"concurrency": concurrency,
		"output_dir":  outputDirectory,
	})

	pool.Start(ctx)

	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for job := range pool.Results() {
			report.Add(job)
			if d.OnResult != nil {
				d.OnResult(job)
			}
		}
	}()

	var unsubmitted []*models.DownloadJob
	for i, entry := range entries {
		job := models.NewDownloadJob(entry, pinboard.CacheURL(baseURL, entry.CacheID), store.EntryDir(entry.BookmarkID()))
		if err := pool.Submit(job); err != nil {
			for _, rest := range entries[i:] {
				unsubmitted = append(unsubmitted, models.NewDownloadJob(rest, pinboard.CacheURL(baseURL, rest.CacheID), store.EntryDir(rest.BookmarkID())))
			}
			log.WithError(err).WithField("remaining", len(entries)-i).Warn("Stopped submitting archive jobs")
			break
		}
	}

	pool.Stop()
	<-collected

	for _, job := range unsubmitted {
		job.Finish(models.JobFailed, fmt.Sprintf("not started: %v", ctx.Err()))
		report.Add(*job)
		if d.OnResult != nil {
			d.OnResult(*job)
		}
	}

	report.Duration = time.Since(report.Started)
	logger.LogMetrics(log, "archive", map[string]interface{}{
		"total":            report.Total(),
		"succeeded":        report.Count(models.JobSucceeded),
		"skipped_existing": report.Count(models.JobSkippedExisting),
		"failed":           report.Count(models.JobFailed),
		"timed_out":        report.Count(models.JobTimedOut),
		"duration":         report.Duration,
	})
	logger.LogComponentStop(log, "dispatcher", "all jobs finished")

	return report, nil
}
