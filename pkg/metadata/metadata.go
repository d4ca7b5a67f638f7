package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pberrors "pinback/pkg/errors"
	"pinback/pkg/logger"
)

// PostsAllPath is the API call returning every bookmark
const PostsAllPath = "/posts/all"

// Exporter downloads the raw bookmark export from the Pinboard API
type Exporter struct {
	httpClient *http.Client
	apiURL     string
	userAgent  string
	logger     logger.Logger
}

// NewExporter creates an exporter for the API rooted at apiURL
func NewExporter(apiURL string, timeout time.Duration, log logger.Logger) *Exporter {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Exporter{
		httpClient: &http.Client{Timeout: timeout},
		apiURL:     strings.TrimRight(apiURL, "/"),
		userAgent:  "pinback/1.0",
		logger:     log,
	}
}

// SetUserAgent overrides the User-Agent header
func (e *Exporter) SetUserAgent(ua string) {
	if ua != "" {
		e.userAgent = ua
	}
}

// Export fetches posts/all as JSON using basic auth. The body is returned
// exactly as received.
func (e *Exporter) Export(ctx context.Context, username, password string) ([]byte, error) {
	url := e.apiURL + PostsAllPath + "?format=json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(username, password)
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "application/json")

	e.logger.WithField("username", username).Info("Exporting bookmark metadata")

	start := time.Now()
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, pberrors.NewFetchError(PostsAllPath, 0, err)
	}
	defer resp.Body.Close()
	logger.LogRequest(e.logger, req.Method, e.apiURL+PostsAllPath, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		cause := &pberrors.Error{
			Type:    pberrors.TypeForStatusCode(resp.StatusCode),
			Message: fmt.Sprintf("error status code from the Pinboard API: %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
		return nil, pberrors.NewFetchError(PostsAllPath, resp.StatusCode, cause)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pberrors.NewFetchError(PostsAllPath, resp.StatusCode, fmt.Errorf("failed to read body: %w", err))
	}

	e.logger.WithFields(map[string]interface{}{
		"bytes":    len(body),
		"duration": time.Since(start),
	}).Debug("Metadata export received")

	return body, nil
}

// Post is the subset of an exported bookmark pinback reports on
type Post struct {
	Href        string `json:"href"`
	Description string `json:"description"`
	Hash        string `json:"hash"`
	Time        string `json:"time"`
	Tags        string `json:"tags"`
}

// Summarize counts the bookmarks in an export. The export itself is never
// rewritten; this only reads it for reporting.
func Summarize(data []byte) (int, error) {
	var posts []Post
	if err := json.Unmarshal(data, &posts); err != nil {
		return 0, &pberrors.Error{
			Type:    pberrors.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse export: %v", err),
			Err:     err,
		}
	}
	return len(posts), nil
}
