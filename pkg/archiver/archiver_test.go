package archiver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinback/internal/downloader"
	"pinback/internal/pinboardtest"
	"pinback/pkg/checkpoint"
	"pinback/pkg/config"
	pberrors "pinback/pkg/errors"
	"pinback/pkg/logger"
	"pinback/pkg/models"
)

// cookieFetcher stands in for wget: it loads the cookie file the run
// wrote and downloads the page with it
type cookieFetcher struct {
	mu          sync.Mutex
	calls       int
	cookieFiles []string
	fail        map[string]bool
}

func (f *cookieFetcher) Fetch(ctx context.Context, url, dir string, cred downloader.Credential) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.cookieFiles = append(f.cookieFiles, cred.CookieFile)
	f.mu.Unlock()

	if f.fail[filepath.Base(dir)] {
		return []byte("ERROR 404"), errors.New("wget exited with status 8")
	}

	cookies, err := readCookieFile(cred.CookieFile)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return []byte("saved"), os.WriteFile(filepath.Join(dir, "index.html"), body, 0644)
}

func (f *cookieFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func readCookieFile(path string) ([]*http.Cookie, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var cookies []*http.Cookie
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			return nil, fmt.Errorf("malformed cookie line %q", line)
		}
		cookies = append(cookies, &http.Cookie{Name: fields[5], Value: fields[6]})
	}
	return cookies, scanner.Err()
}

type recordingObserver struct {
	mu       sync.Mutex
	loggedIn int
	pages    []int
	total    int
	started  int
	finished []models.JobState
	report   *models.Report
	errors   []string
}

func (r *recordingObserver) LoggingIn() { r.mu.Lock(); r.loggedIn++; r.mu.Unlock() }
func (r *recordingObserver) CrawledPage(page, _, _ int) {
	r.mu.Lock()
	r.pages = append(r.pages, page)
	r.mu.Unlock()
}
func (r *recordingObserver) ArchiveStarted(total int) { r.mu.Lock(); r.total = total; r.mu.Unlock() }
func (r *recordingObserver) JobStarted(models.DownloadJob) {
	r.mu.Lock()
	r.started++
	r.mu.Unlock()
}
func (r *recordingObserver) JobFinished(job models.DownloadJob) {
	r.mu.Lock()
	r.finished = append(r.finished, job.State)
	r.mu.Unlock()
}
func (r *recordingObserver) Finished(report *models.Report) { r.report = report }
func (r *recordingObserver) LogInfo(string, ...interface{})    {}
func (r *recordingObserver) LogSuccess(string, ...interface{}) {}
func (r *recordingObserver) LogWarning(string, ...interface{}) {}
func (r *recordingObserver) LogError(format string, args ...interface{}) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

type fixture struct {
	server      *pinboardtest.Server
	cfg         *config.Config
	fetcher     *cookieFetcher
	checkpoints *checkpoint.Manager
	observer    *recordingObserver
}

func newFixture(t *testing.T, pages ...pinboardtest.Page) *fixture {
	t.Helper()

	srv := pinboardtest.NewServer("maciej", "correct-horse", pages...)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.Pinboard.BaseURL = srv.URL()
	cfg.Pinboard.Username = "maciej"
	cfg.Pinboard.Password = "correct-horse"
	cfg.Pinboard.RequestTimeout = 5 * time.Second
	cfg.RateLimit.RequestsPerMinute = 0
	cfg.Output.BaseDirectory = t.TempDir()
	cfg.Archive.Concurrency = 2
	cfg.Archive.JobTimeout = 5 * time.Second

	cps, err := checkpoint.NewManagerAt(t.TempDir(), "maciej")
	require.NoError(t, err)

	return &fixture{
		server:      srv,
		cfg:         cfg,
		fetcher:     &cookieFetcher{},
		checkpoints: cps,
		observer:    &recordingObserver{},
	}
}

func (f *fixture) archiver(t *testing.T) *Archiver {
	t.Helper()
	a, err := New(f.cfg)
	require.NoError(t, err)
	a.SetFetcher(f.fetcher)
	a.SetCheckpointManager(f.checkpoints)
	a.SetObserver(f.observer)
	a.SetLogger(logger.NewNopLogger())
	return a
}

func TestRunArchivesThenRerunSkips(t *testing.T) {
	f := newFixture(t,
		pinboardtest.Page{CacheIDs: []string{"/cached/a/", "/cached/b/"}},
		pinboardtest.Page{CacheIDs: []string{"/cached/b/", "/cached/c/"}},
	)

	report, err := f.archiver(t).Run(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total())
	assert.Equal(t, 3, report.Count(models.JobSucceeded))
	assert.False(t, report.HasFailures())

	for _, id := range []string{"a", "b", "c"} {
		data, err := os.ReadFile(filepath.Join(f.cfg.Output.BaseDirectory, id, "index.html"))
		require.NoError(t, err)
		assert.Contains(t, string(data), "/cached/"+id+"/")
	}

	assert.Equal(t, 2, f.server.LoginHits(), "one login for the crawl, one for downloads")
	assert.Equal(t, 2, f.server.Sessions())
	assert.Equal(t, 2, f.server.IndexHits())
	assert.False(t, f.checkpoints.Exists(), "checkpoint removed after a clean run")

	report, err = f.archiver(t).Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Count(models.JobSkippedExisting))
	assert.Equal(t, 3, f.fetcher.Calls(), "existing directories are not fetched again")
	assert.Len(t, f.server.CachedPaths(), 3)
}

func TestRunCookieFileIsPerRun(t *testing.T) {
	f := newFixture(t, pinboardtest.Page{CacheIDs: []string{"/cached/a/", "/cached/b/"}})

	_, err := f.archiver(t).Run(context.Background(), false)
	require.NoError(t, err)

	require.Len(t, f.fetcher.cookieFiles, 2)
	assert.Equal(t, f.fetcher.cookieFiles[0], f.fetcher.cookieFiles[1], "every job shares the run's credential")
	assert.Equal(t, "pinboard-cookies.txt", filepath.Base(f.fetcher.cookieFiles[0]))
	assert.NoFileExists(t, f.fetcher.cookieFiles[0], "run directory removed when the run ends")
}

func TestRunWrongPasswordStopsBeforeCrawl(t *testing.T) {
	f := newFixture(t, pinboardtest.Page{CacheIDs: []string{"/cached/a/"}})
	f.cfg.Pinboard.Password = "wrong"

	report, err := f.archiver(t).Run(context.Background(), false)
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, pberrors.IsAuth(err))

	assert.Equal(t, 1, f.server.LoginHits())
	assert.Equal(t, 0, f.server.IndexHits())
	assert.Equal(t, 0, f.server.CachedHits())
	assert.Equal(t, 0, f.fetcher.Calls())
	assert.NotEmpty(t, f.observer.errors)
}

func TestRunMissingCredentials(t *testing.T) {
	f := newFixture(t)
	f.cfg.Pinboard.Password = ""

	_, err := f.archiver(t).Run(context.Background(), false)
	assert.True(t, pberrors.IsAuth(err))
	assert.Equal(t, 0, f.server.LoginHits())
}

func TestRunCrawlFailureIsFatal(t *testing.T) {
	f := newFixture(t,
		pinboardtest.Page{CacheIDs: []string{"/cached/a/"}},
		pinboardtest.Page{CacheIDs: []string{"/cached/b/"}},
	)
	f.server.FailIndexPage(2, http.StatusInternalServerError)

	_, err := f.archiver(t).Run(context.Background(), false)
	require.Error(t, err)
	assert.True(t, pberrors.IsFetch(err))

	assert.Equal(t, 1, f.server.LoginHits(), "no download session after a failed crawl")
	assert.Equal(t, 0, f.fetcher.Calls())
	assert.False(t, f.checkpoints.Exists(), "partial crawls are not checkpointed")
}

func TestRunResumeSkipsCrawl(t *testing.T) {
	f := newFixture(t, pinboardtest.Page{CacheIDs: []string{"/cached/ignored/"}})
	require.NoError(t, f.checkpoints.Save(checkpoint.New("maciej", []models.CacheEntry{
		models.NewCacheEntry("/cached/x/"),
		models.NewCacheEntry("/cached/y/"),
	})))

	report, err := f.archiver(t).Run(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 0, f.server.IndexHits())
	assert.Equal(t, 2, f.server.LoginHits(), "both logins still happen")
	assert.Equal(t, 2, report.Count(models.JobSucceeded))
	assert.DirExists(t, filepath.Join(f.cfg.Output.BaseDirectory, "x"))
	assert.NoDirExists(t, filepath.Join(f.cfg.Output.BaseDirectory, "ignored"))
}

func TestRunWithoutResumeRecrawls(t *testing.T) {
	f := newFixture(t, pinboardtest.Page{CacheIDs: []string{"/cached/fresh/"}})
	require.NoError(t, f.checkpoints.Save(checkpoint.New("maciej", []models.CacheEntry{
		models.NewCacheEntry("/cached/stale/"),
	})))

	report, err := f.archiver(t).Run(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, f.server.IndexHits())
	require.Equal(t, 1, report.Total())
	assert.Equal(t, "fresh", report.Jobs[0].Entry.BookmarkID())
}

func TestRunKeepsCheckpointWhenJobsFail(t *testing.T) {
	f := newFixture(t, pinboardtest.Page{CacheIDs: []string{"/cached/a/", "/cached/b/"}})
	f.fetcher.fail = map[string]bool{"b": true}

	report, err := f.archiver(t).Run(context.Background(), false)
	require.NoError(t, err)

	assert.True(t, report.HasFailures())
	assert.Equal(t, 1, report.Count(models.JobFailed))
	assert.True(t, f.checkpoints.Exists())

	cp, err := f.checkpoints.Load()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/cached/a/", "/cached/b/"}, cp.CacheIDs)
}

func TestRunReportsProgress(t *testing.T) {
	f := newFixture(t,
		pinboardtest.Page{CacheIDs: []string{"/cached/a/"}},
		pinboardtest.Page{},
		pinboardtest.Page{CacheIDs: []string{"/cached/b/"}},
	)
	require.NoError(t, os.Mkdir(filepath.Join(f.cfg.Output.BaseDirectory, "a"), 0755))

	report, err := f.archiver(t).Run(context.Background(), false)
	require.NoError(t, err)

	o := f.observer
	assert.Equal(t, 1, o.loggedIn)
	assert.Equal(t, []int{1, 2, 3}, o.pages)
	assert.Equal(t, 2, o.total)
	assert.Equal(t, 1, o.started)
	assert.ElementsMatch(t, []models.JobState{models.JobSkippedExisting, models.JobSucceeded}, o.finished)
	assert.Same(t, report, o.report)
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}
