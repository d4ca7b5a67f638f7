package pinboard

import (
	"fmt"
	"strings"
)

const (
	// BaseURL is the Pinboard web site
	BaseURL = "https://pinboard.in"

	// APIBaseURL is the root of the v1 API
	APIBaseURL = "https://api.pinboard.in/v1"

	// AuthPath accepts the login form
	AuthPath = "/auth/"

	// WrongPasswordLocation is the redirect target of a rejected login
	WrongPasswordLocation = "?error=wrong+password"

	// PerPage is the number of bookmarks requested per index page
	PerPage = 160

	// CookieFileName is the name of the cookies.txt handed to wget
	CookieFileName = "pinboard-cookies.txt"
)

// IndexPath returns the path of the first index page for username
func IndexPath(username string) string {
	return fmt.Sprintf("/u:%s/?per_page=%d", username, PerPage)
}

// CacheURL joins a cache identifier onto baseURL
func CacheURL(baseURL, cacheID string) string {
	if strings.HasPrefix(cacheID, "http://") || strings.HasPrefix(cacheID, "https://") {
		return cacheID
	}
	if !strings.HasPrefix(cacheID, "/") {
		cacheID = "/" + cacheID
	}
	return strings.TrimRight(baseURL, "/") + cacheID
}
