package downloader

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"pinback/pkg/logger"
	"pinback/pkg/models"
)

// DefaultJobTimeout bounds a single archive job
const DefaultJobTimeout = 60 * time.Second

// Storage decides where a bookmark goes and whether it is already there
type Storage interface {
	EntryDir(bookmarkID string) string
	IsArchived(bookmarkID string) bool
	Discard(bookmarkID string) error
}

// WorkerPool runs archive jobs on a fixed number of workers
type WorkerPool struct {
	numWorkers  int
	jobTimeout  time.Duration
	jobQueue    chan *models.DownloadJob
	resultQueue chan models.DownloadJob
	group       *errgroup.Group
	ctx         context.Context
	cancel      context.CancelFunc
	fetcher     Fetcher
	storage     Storage
	credential  Credential
	logger      logger.Logger
	active      int32

	// OnStart, if set, is called when a worker hands a job to the fetcher
	OnStart func(job models.DownloadJob)
}

// NewWorkerPool creates a pool. Call Start before Submit.
func NewWorkerPool(
	numWorkers int,
	fetcher Fetcher,
	store Storage,
	cred Credential,
	jobTimeout time.Duration,
	log logger.Logger,
) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if jobTimeout <= 0 {
		jobTimeout = DefaultJobTimeout
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobTimeout:  jobTimeout,
		jobQueue:    make(chan *models.DownloadJob, numWorkers*2),
		resultQueue: make(chan models.DownloadJob, numWorkers),
		fetcher:     fetcher,
		storage:     store,
		credential:  cred,
		logger:      log,
	}
}

// Start launches the workers. Cancelling ctx aborts in-flight jobs.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.ctx, wp.cancel = context.WithCancel(ctx)
	wp.group = &errgroup.Group{}

	wp.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
		"job_timeout": wp.jobTimeout,
	})

	for i := 0; i < wp.numWorkers; i++ {
		id := i
		wp.group.Go(func() error {
			wp.worker(id)
			return nil
		})
	}
}

// Stop waits for every submitted job to finish, then closes Results
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	_ = wp.group.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Debug("Worker pool stopped")
}

// Submit queues a job. It fails once the pool's context is done.
func (wp *WorkerPool) Submit(job *models.DownloadJob) error {
	if err := wp.ctx.Err(); err != nil {
		return fmt.Errorf("worker pool is shutting down: %w", err)
	}
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", wp.ctx.Err())
	}
}

// Results delivers each job once it reaches a terminal state
func (wp *WorkerPool) Results() <-chan models.DownloadJob {
	return wp.resultQueue
}

// ActiveJobs is the number of fetches currently running
func (wp *WorkerPool) ActiveJobs() int {
	return int(atomic.LoadInt32(&wp.active))
}

// QueueSize returns the number of jobs waiting for a worker
func (wp *WorkerPool) QueueSize() int {
	return len(wp.jobQueue)
}

func (wp *WorkerPool) worker(id int) {
	for job := range wp.jobQueue {
		wp.processJob(job, id)
		wp.resultQueue <- *job
	}
}

// processJob drives one job to a terminal state
func (wp *WorkerPool) processJob(job *models.DownloadJob, workerID int) {
	start := time.Now()
	bookmarkID := job.Entry.BookmarkID()

	defer func() {
		job.Duration = time.Since(start)
		var err error
		if job.State == models.JobFailed || job.State == models.JobTimedOut {
			err = fmt.Errorf("%s", job.Reason)
		}
		logger.LogArchiveJob(wp.logger, bookmarkID, string(job.State), job.Duration, err)
	}()

	// the id comes from scraped HTML and becomes a path
	if !models.ValidBookmarkID(bookmarkID) {
		job.Finish(models.JobFailed, "invalid cache id")
		return
	}

	if wp.storage.IsArchived(bookmarkID) {
		job.Finish(models.JobSkippedExisting, "")
		return
	}

	if err := wp.ctx.Err(); err != nil {
		job.Finish(models.JobFailed, fmt.Sprintf("not started: %v", err))
		return
	}

	jobCtx, cancel := context.WithTimeout(wp.ctx, wp.jobTimeout)
	defer cancel()

	atomic.AddInt32(&wp.active, 1)
	if wp.OnStart != nil {
		wp.OnStart(*job)
	}
	wp.logger.DebugWithFields("Worker processing job", map[string]interface{}{
		"worker_id":   workerID,
		"bookmark_id": bookmarkID,
	})

	out, err := wp.fetcher.Fetch(jobCtx, job.URL, job.Dir, wp.credential)
	atomic.AddInt32(&wp.active, -1)
	job.Log = out

	switch {
	case err == nil:
		job.Finish(models.JobSucceeded, "")
		return
	case wp.ctx.Err() == nil && jobCtx.Err() == context.DeadlineExceeded:
		job.Finish(models.JobTimedOut, fmt.Sprintf("archive timed out after %s", wp.jobTimeout))
	default:
		job.Finish(models.JobFailed, err.Error())
	}

	// a partial download must not count as archived on the next run
	if discardErr := wp.storage.Discard(bookmarkID); discardErr != nil {
		wp.logger.WithError(discardErr).WithField("bookmark_id", bookmarkID).Warn("Failed to remove partial archive")
	}
}
