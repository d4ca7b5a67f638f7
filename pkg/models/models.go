package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// CachedPrefix is the path prefix every cache identifier starts with
const CachedPrefix = "/cached/"

// CacheEntry identifies one archived snapshot on the service
type CacheEntry struct {
	CacheID string `json:"cache_id"`
}

// NewCacheEntry builds a CacheEntry from an href found on an index page
func NewCacheEntry(cacheID string) CacheEntry {
	return CacheEntry{CacheID: cacheID}
}

// BookmarkID is the cache identifier with the /cached/ prefix and any
// surrounding slashes removed. It names the entry's output directory.
func (e CacheEntry) BookmarkID() string {
	id := strings.TrimPrefix(e.CacheID, CachedPrefix)
	return strings.Trim(id, "/")
}

// ValidBookmarkID reports whether id can name a single directory directly
// under the output directory
func ValidBookmarkID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

// CrawlAccumulator collects cache entries across index pages. Entries are
// keyed by CacheID so repeats on later pages collapse.
type CrawlAccumulator struct {
	seen    map[string]struct{}
	entries []CacheEntry
}

func NewCrawlAccumulator() *CrawlAccumulator {
	return &CrawlAccumulator{seen: make(map[string]struct{})}
}

// Add records ids and returns how many were new
func (a *CrawlAccumulator) Add(ids ...string) int {
	added := 0
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := a.seen[id]; ok {
			continue
		}
		a.seen[id] = struct{}{}
		a.entries = append(a.entries, NewCacheEntry(id))
		added++
	}
	return added
}

func (a *CrawlAccumulator) Len() int {
	return len(a.entries)
}

// Entries returns the collected entries in first-seen order
func (a *CrawlAccumulator) Entries() []CacheEntry {
	out := make([]CacheEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// JobState is the lifecycle state of a DownloadJob
type JobState string

const (
	JobPending         JobState = "pending"
	JobSkippedExisting JobState = "skipped-existing"
	JobSucceeded       JobState = "succeeded"
	JobFailed          JobState = "failed"
	JobTimedOut        JobState = "timed-out"
)

// Terminal reports whether no further transition is allowed
func (s JobState) Terminal() bool {
	return s != JobPending && s != ""
}

// ErrStateAlreadySet is returned when a finished job is finished again
var ErrStateAlreadySet = errors.New("job already in a terminal state")

// DownloadJob is one cache entry scheduled for archiving
type DownloadJob struct {
	Entry    CacheEntry    `json:"entry"`
	URL      string        `json:"url"`
	Dir      string        `json:"dir"`
	State    JobState      `json:"state"`
	Reason   string        `json:"reason,omitempty"`
	Log      []byte        `json:"-"`
	Duration time.Duration `json:"duration"`
}

// NewDownloadJob creates a pending job
func NewDownloadJob(entry CacheEntry, url, dir string) *DownloadJob {
	return &DownloadJob{Entry: entry, URL: url, Dir: dir, State: JobPending}
}

// Finish moves the job into a terminal state. It may be called only once.
func (j *DownloadJob) Finish(state JobState, reason string) error {
	if j.State.Terminal() {
		return ErrStateAlreadySet
	}
	if !state.Terminal() {
		return fmt.Errorf("%q is not a terminal state", state)
	}
	j.State = state
	j.Reason = reason
	return nil
}

// Report aggregates the outcome of one dispatch
type Report struct {
	Jobs     []DownloadJob
	Counts   map[JobState]int
	Started  time.Time
	Duration time.Duration
}

func NewReport() *Report {
	return &Report{Counts: make(map[JobState]int), Started: time.Now()}
}

// Add records a finished job
func (r *Report) Add(job DownloadJob) {
	r.Jobs = append(r.Jobs, job)
	r.Counts[job.State]++
}

func (r *Report) Count(state JobState) int {
	return r.Counts[state]
}

func (r *Report) Total() int {
	return len(r.Jobs)
}

// HasFailures reports whether any job failed or timed out
func (r *Report) HasFailures() bool {
	return r.Counts[JobFailed] > 0 || r.Counts[JobTimedOut] > 0
}

// Failed returns the failed and timed-out jobs sorted by bookmark id
func (r *Report) Failed() []DownloadJob {
	var out []DownloadJob
	for _, j := range r.Jobs {
		if j.State == JobFailed || j.State == JobTimedOut {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].Entry.BookmarkID() < out[b].Entry.BookmarkID()
	})
	return out
}

func (r *Report) String() string {
	return fmt.Sprintf("%d jobs: %d succeeded, %d skipped, %d failed, %d timed out",
		r.Total(),
		r.Count(JobSucceeded),
		r.Count(JobSkippedExisting),
		r.Count(JobFailed),
		r.Count(JobTimedOut))
}
