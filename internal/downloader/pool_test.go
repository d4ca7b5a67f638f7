package downloader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinback/pkg/logger"
	"pinback/pkg/models"
)

// stubFetcher creates the destination directory and records calls
type stubFetcher struct {
	delay   time.Duration
	fail    map[string]error
	hang    map[string]bool
	calls   int32
	running int32
	peak    int32

	mu    sync.Mutex
	creds []Credential
}

func (s *stubFetcher) Fetch(ctx context.Context, url, dir string, cred Credential) ([]byte, error) {
	atomic.AddInt32(&s.calls, 1)
	n := atomic.AddInt32(&s.running, 1)
	defer atomic.AddInt32(&s.running, -1)
	for {
		p := atomic.LoadInt32(&s.peak)
		if n <= p || atomic.CompareAndSwapInt32(&s.peak, p, n) {
			break
		}
	}

	s.mu.Lock()
	s.creds = append(s.creds, cred)
	s.mu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	id := filepath.Base(dir)
	if s.hang[id] {
		<-ctx.Done()
		return []byte("partial"), ctx.Err()
	}

	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := s.fail[id]; err != nil {
		return []byte("wget: 404"), err
	}
	return []byte("ok"), os.WriteFile(filepath.Join(dir, "index.html"), []byte(url), 0644)
}

func entries(ids ...string) []models.CacheEntry {
	out := make([]models.CacheEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.NewCacheEntry("/cached/"+id+"/"))
	}
	return out
}

func newDispatcher(f Fetcher) *Dispatcher {
	return &Dispatcher{
		Fetcher:    f,
		Credential: Credential{CookieFile: "/tmp/run-1/pinboard-cookies.txt"},
		BaseURL:    "https://pinboard.in",
		JobTimeout: time.Second,
		Logger:     logger.NewNopLogger(),
	}
}

func TestDispatchThenRerunSkips(t *testing.T) {
	out := t.TempDir()
	f := &stubFetcher{delay: 5 * time.Millisecond}
	d := newDispatcher(f)

	report, err := d.Dispatch(context.Background(), entries("a", "b", "c"), out, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Count(models.JobSucceeded))
	assert.False(t, report.HasFailures())

	data, err := os.ReadFile(filepath.Join(out, "a", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "https://pinboard.in/cached/a/", string(data))

	report, err = d.Dispatch(context.Background(), entries("a", "b", "c"), out, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Count(models.JobSkippedExisting))
	assert.Equal(t, int32(3), atomic.LoadInt32(&f.calls), "fetcher must not run for existing directories")
}

func TestDispatchRespectsConcurrencyLimit(t *testing.T) {
	f := &stubFetcher{delay: 30 * time.Millisecond}
	ids := make([]string, 12)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}

	report, err := newDispatcher(f).Dispatch(context.Background(), entries(ids...), t.TempDir(), 3)
	require.NoError(t, err)

	assert.Equal(t, 12, report.Count(models.JobSucceeded))
	assert.LessOrEqual(t, atomic.LoadInt32(&f.peak), int32(3))
	assert.Greater(t, atomic.LoadInt32(&f.peak), int32(1))
}

func TestDispatchTimeoutIsolation(t *testing.T) {
	out := t.TempDir()
	f := &stubFetcher{delay: time.Millisecond, hang: map[string]bool{"slow": true}}
	d := newDispatcher(f)
	d.JobTimeout = 100 * time.Millisecond

	report, err := d.Dispatch(context.Background(), entries("a", "slow", "b"), out, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Count(models.JobSucceeded))
	assert.Equal(t, 1, report.Count(models.JobTimedOut))
	assert.True(t, report.HasFailures())

	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "slow", failed[0].Entry.BookmarkID())
	assert.Contains(t, failed[0].Reason, "timed out")
	assert.Equal(t, "partial", string(failed[0].Log))

	// the partial directory is removed so the next run retries it
	assert.NoDirExists(t, filepath.Join(out, "slow"))
}

func TestDispatchFailureIsPerJob(t *testing.T) {
	f := &stubFetcher{fail: map[string]error{"b": errors.New("wget exited with status 4")}}

	report, err := newDispatcher(f).Dispatch(context.Background(), entries("a", "b", "c"), t.TempDir(), 1)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Count(models.JobSucceeded))
	assert.Equal(t, 1, report.Count(models.JobFailed))
	assert.Equal(t, "wget exited with status 4", report.Failed()[0].Reason)
}

func TestDispatchPassesSharedCredential(t *testing.T) {
	f := &stubFetcher{}
	d := newDispatcher(f)

	_, err := d.Dispatch(context.Background(), entries("a", "b"), t.TempDir(), 2)
	require.NoError(t, err)

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.creds, 2)
	for _, c := range f.creds {
		assert.Equal(t, d.Credential, c)
	}
}

func TestDispatchCancelledContext(t *testing.T) {
	f := &stubFetcher{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := newDispatcher(f).Dispatch(ctx, entries("a", "b", "c"), t.TempDir(), 2)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total())
	assert.Equal(t, 3, report.Count(models.JobFailed))
	assert.Equal(t, int32(0), atomic.LoadInt32(&f.calls))
	for _, j := range report.Jobs {
		assert.True(t, strings.HasPrefix(j.Reason, "not started"))
	}
}

func TestDispatchObservers(t *testing.T) {
	d := newDispatcher(&stubFetcher{})
	var started int32
	var results []models.JobState
	d.OnStart = func(models.DownloadJob) { atomic.AddInt32(&started, 1) }
	d.OnResult = func(j models.DownloadJob) { results = append(results, j.State) }

	out := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(out, "a"), 0755))

	_, err := d.Dispatch(context.Background(), entries("a", "b"), out, 2)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&started))
	assert.ElementsMatch(t, []models.JobState{models.JobSkippedExisting, models.JobSucceeded}, results)
}

func TestDispatchEmpty(t *testing.T) {
	report, err := newDispatcher(&stubFetcher{}).Dispatch(context.Background(), nil, t.TempDir(), 4)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Total())
	assert.False(t, report.HasFailures())
}

func TestWorkerPoolSubmitAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewWorkerPool(1, &stubFetcher{}, nil, Credential{}, time.Second, logger.NewNopLogger())
	pool.Start(ctx)
	cancel()

	err := pool.Submit(models.NewDownloadJob(models.NewCacheEntry("/cached/a/"), "u", "d"))
	assert.ErrorIs(t, err, context.Canceled)
	pool.Stop()
}

func TestDispatchRejectsUnsafeCacheIDs(t *testing.T) {
	tests := []struct {
		name    string
		cacheID string
	}{
		{"empty", "/cached/"},
		{"parent escape", "/cached/../escaped/"},
		{"nested", "/cached/a/b/"},
		{"dot", "/cached/./"},
		{"backslash", `/cached/a\b/`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			out := filepath.Join(root, "out")
			f := &stubFetcher{fail: map[string]error{"b": errors.New("wget exited with status 4")}}
			d := newDispatcher(f)
			list := []models.CacheEntry{models.NewCacheEntry(tt.cacheID)}

			for run := 0; run < 2; run++ {
				report, err := d.Dispatch(context.Background(), list, out, 1)
				require.NoError(t, err)
				require.Len(t, report.Jobs, 1)
				assert.Equal(t, models.JobFailed, report.Jobs[0].State, "run %d", run)
				assert.Equal(t, "invalid cache id", report.Jobs[0].Reason)
			}

			assert.Equal(t, int32(0), atomic.LoadInt32(&f.calls))
			assert.NoDirExists(t, filepath.Join(root, "escaped"))
			assert.NoDirExists(t, filepath.Join(out, "a"))
		})
	}
}

func TestDispatchLogsThroughInjectedLogger(t *testing.T) {
	global := logger.NewTestLogger()
	logger.SetLogger(global)
	defer logger.SetLogger(nil)

	injected := logger.NewTestLogger()
	d := newDispatcher(&stubFetcher{fail: map[string]error{"b": errors.New("wget exited with status 4")}})
	d.Logger = injected

	_, err := d.Dispatch(context.Background(), entries("a", "b"), t.TempDir(), 2)
	require.NoError(t, err)

	assert.Empty(t, global.GetMessages())
	assert.True(t, injected.HasMessage("Component started"))
	assert.True(t, injected.HasMessage("Archive job finished"))
	assert.True(t, injected.HasMessage("archive summary"))
	assert.True(t, injected.HasError())
}
