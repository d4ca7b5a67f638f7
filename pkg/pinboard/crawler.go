package pinboard

import (
	"context"
	"errors"

	pberrors "pinback/pkg/errors"
	"pinback/pkg/logger"
	"pinback/pkg/models"
	"pinback/pkg/ratelimit"
)

// PageProgress is reported after every index page
type PageProgress struct {
	Page        int
	PageEntries int
	Total       int
}

// Crawler walks a user's index pages from newest to oldest
type Crawler struct {
	client  *Client
	limiter ratelimit.Limiter
	logger  logger.Logger

	// OnPage, if set, is called after each page is processed
	OnPage func(PageProgress)
}

// NewCrawler creates a crawler that fetches through an authenticated client
func NewCrawler(client *Client, limiter ratelimit.Limiter, log logger.Logger) *Crawler {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Crawler{client: client, limiter: limiter, logger: log}
}

// Crawl collects every cache entry reachable from the user's first index
// page by following the "earlier" link until there is none. Pages are
// fetched one at a time. Any failed fetch aborts the crawl and nothing
// collected so far is returned.
func (c *Crawler) Crawl(ctx context.Context, username string) ([]models.CacheEntry, error) {
	acc := models.NewCrawlAccumulator()
	visited := make(map[string]bool)

	next := IndexPath(username)
	for page := 1; next != ""; page++ {
		u, err := c.client.ResolveURL(next)
		if err != nil {
			return nil, pberrors.NewFetchError(next, 0, err)
		}
		if visited[u.String()] {
			c.logger.WithFields(map[string]interface{}{
				"page": page,
				"path": next,
			}).Warn("next page link points at a page already crawled, stopping")
			break
		}
		visited[u.String()] = true

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, pberrors.NewFetchError(next, 0, err)
		}

		doc, err := c.client.GetPage(ctx, next)
		if err != nil {
			code := 0
			var pe *pberrors.Error
			if errors.As(err, &pe) {
				code = pe.Code
			}
			c.logger.WithError(err).WithField("page", page).Error("index page fetch failed")
			return nil, pberrors.NewFetchError(next, code, err)
		}

		links := ExtractPage(doc)
		acc.Add(links.CacheIDs...)

		logger.LogCrawlProgress(c.logger, username, page, len(links.CacheIDs), acc.Len())
		if c.OnPage != nil {
			c.OnPage(PageProgress{Page: page, PageEntries: len(links.CacheIDs), Total: acc.Len()})
		}

		next = links.Next
	}

	return acc.Entries(), nil
}
