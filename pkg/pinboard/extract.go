package pinboard

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageLinks is what one index page contributes to a crawl
type PageLinks struct {
	CacheIDs []string
	Next     string
}

// ExtractPage pulls the cache links and the next-page link out of an index
// page. Missing markup yields empty results rather than an error.
func ExtractPage(doc *goquery.Document) PageLinks {
	var links PageLinks

	doc.Find("a.cached").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && strings.TrimSpace(href) != "" {
			links.CacheIDs = append(links.CacheIDs, strings.TrimSpace(href))
		}
	})

	if href, ok := doc.Find("a#top_earlier").First().Attr("href"); ok {
		links.Next = strings.TrimSpace(href)
	}

	return links
}
