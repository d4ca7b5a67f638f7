package pinboard

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestExtractPage(t *testing.T) {
	doc := parse(t, `<html><body>
		<div class="bookmark">
			<a class="bookmark_title" href="https://example.com/">Example</a>
			<a class="cached" href="/cached/abc123/">cached</a>
		</div>
		<div class="bookmark">
			<a class="bookmark_title cached_title" href="https://example.org/">Org</a>
			<a class="cached" href="/cached/def456/">cached</a>
		</div>
		<a id="top_earlier" href="/u:alice/before:2/">earlier</a>
	</body></html>`)

	links := ExtractPage(doc)
	assert.Equal(t, []string{"/cached/abc123/", "/cached/def456/"}, links.CacheIDs)
	assert.Equal(t, "/u:alice/before:2/", links.Next)
}

func TestExtractPageMissingMarkup(t *testing.T) {
	links := ExtractPage(parse(t, `<html><body><p>nothing here</p></body></html>`))
	assert.Empty(t, links.CacheIDs)
	assert.Empty(t, links.Next)
}

func TestExtractPageSkipsEmptyHrefs(t *testing.T) {
	doc := parse(t, `<a class="cached">no href</a><a class="cached" href=" ">blank</a><a class="cached" href="/cached/x/">x</a>`)
	assert.Equal(t, []string{"/cached/x/"}, ExtractPage(doc).CacheIDs)
}

func TestExtractPageNextWithoutCacheLinks(t *testing.T) {
	links := ExtractPage(parse(t, `<a id="top_earlier" href="/u:alice/before:9/">earlier</a>`))
	assert.Empty(t, links.CacheIDs)
	assert.Equal(t, "/u:alice/before:9/", links.Next)
}

func TestEndpoints(t *testing.T) {
	assert.Equal(t, "/u:alice/?per_page=160", IndexPath("alice"))
	assert.Equal(t, "https://pinboard.in/cached/abc/", CacheURL(BaseURL, "/cached/abc/"))
	assert.Equal(t, "https://pinboard.in/cached/abc/", CacheURL(BaseURL+"/", "cached/abc/"))
	assert.Equal(t, "https://other.example/cached/x/", CacheURL(BaseURL, "https://other.example/cached/x/"))
}
