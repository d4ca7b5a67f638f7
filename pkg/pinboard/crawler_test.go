package pinboard

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinback/internal/pinboardtest"
	pberrors "pinback/pkg/errors"
	"pinback/pkg/logger"
	"pinback/pkg/models"
)

func loggedInCrawler(t *testing.T, srv *pinboardtest.Server) *Crawler {
	t.Helper()
	client := newTestClient(t, srv.URL())
	_, err := NewAuthenticator(client).Login(context.Background(), srv.Username, srv.Password)
	require.NoError(t, err)
	return NewCrawler(client, nil, logger.NewNopLogger())
}

func cacheIDs(entries []models.CacheEntry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.CacheID)
	}
	return ids
}

func TestCrawlDeduplicatesAcrossPages(t *testing.T) {
	srv := pinboardtest.NewServer("alice", "pw",
		pinboardtest.Page{CacheIDs: []string{"/cached/a/", "/cached/b/"}},
		pinboardtest.Page{CacheIDs: []string{"/cached/b/", "/cached/c/"}},
	)
	defer srv.Close()

	entries, err := loggedInCrawler(t, srv).Crawl(context.Background(), "alice")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"/cached/a/", "/cached/b/", "/cached/c/"}, cacheIDs(entries))
	assert.Equal(t, 2, srv.IndexHits())
}

func TestCrawlStopsAfterLastPage(t *testing.T) {
	pages := []pinboardtest.Page{
		{CacheIDs: []string{"/cached/1/"}},
		{},
		{CacheIDs: []string{"/cached/3/"}},
		{CacheIDs: []string{"/cached/4/"}},
	}
	srv := pinboardtest.NewServer("alice", "pw", pages...)
	defer srv.Close()

	c := loggedInCrawler(t, srv)
	var progress []PageProgress
	c.OnPage = func(p PageProgress) { progress = append(progress, p) }

	entries, err := c.Crawl(context.Background(), "alice")
	require.NoError(t, err)

	assert.Len(t, entries, 3)
	assert.Equal(t, 4, srv.IndexHits())
	require.Len(t, progress, 4)
	assert.Equal(t, PageProgress{Page: 2, PageEntries: 0, Total: 1}, progress[1])
}

func TestCrawlEmptyAccount(t *testing.T) {
	srv := pinboardtest.NewServer("alice", "pw")
	defer srv.Close()

	entries, err := loggedInCrawler(t, srv).Crawl(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 1, srv.IndexHits())
}

func TestCrawlAbortsOnFailedPage(t *testing.T) {
	srv := pinboardtest.NewServer("alice", "pw",
		pinboardtest.Page{CacheIDs: []string{"/cached/a/"}},
		pinboardtest.Page{CacheIDs: []string{"/cached/b/"}},
		pinboardtest.Page{CacheIDs: []string{"/cached/c/"}},
	)
	defer srv.Close()
	srv.FailIndexPage(2, http.StatusInternalServerError)

	entries, err := loggedInCrawler(t, srv).Crawl(context.Background(), "alice")
	assert.Nil(t, entries)
	require.Error(t, err)
	assert.True(t, pberrors.IsFetch(err))

	var pe *pberrors.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusInternalServerError, pe.Code)
	assert.Equal(t, 2, srv.IndexHits())
}

func TestCrawlWithoutSessionFails(t *testing.T) {
	srv := pinboardtest.NewServer("alice", "pw", pinboardtest.Page{CacheIDs: []string{"/cached/a/"}})
	defer srv.Close()

	c := NewCrawler(newTestClient(t, srv.URL()), nil, logger.NewNopLogger())
	_, err := c.Crawl(context.Background(), "alice")
	assert.True(t, pberrors.IsFetch(err))
}

func TestCrawlHonorsCancelledContext(t *testing.T) {
	srv := pinboardtest.NewServer("alice", "pw", pinboardtest.Page{CacheIDs: []string{"/cached/a/"}})
	defer srv.Close()

	c := loggedInCrawler(t, srv)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Crawl(ctx, "alice")
	assert.True(t, pberrors.IsFetch(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, srv.IndexHits())
}

func TestUseSessionSharesLogin(t *testing.T) {
	srv := pinboardtest.NewServer("alice", "pw", pinboardtest.Page{CacheIDs: []string{"/cached/a/"}})
	defer srv.Close()

	token, err := NewAuthenticator(newTestClient(t, srv.URL())).Login(context.Background(), "alice", "pw")
	require.NoError(t, err)

	other := newTestClient(t, srv.URL())
	other.UseSession(token)

	entries, err := NewCrawler(other, nil, logger.NewNopLogger()).Crawl(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
