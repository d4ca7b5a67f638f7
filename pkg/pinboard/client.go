package pinboard

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"

	pberrors "pinback/pkg/errors"
	"pinback/pkg/logger"
)

// DefaultUserAgent is sent when the caller does not configure one
const DefaultUserAgent = "pinback/1.0 (+https://pinboard.in)"

// Client talks to the Pinboard web site. Each Client owns its own cookie
// jar, so two clients never share a session.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    *url.URL
	logger     logger.Logger
}

// NewClient creates a client rooted at baseURL
func NewClient(baseURL string, timeout time.Duration, log logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host required", baseURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		headers: map[string]string{
			"User-Agent":      DefaultUserAgent,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
		},
		baseURL: base,
		logger:  log,
	}, nil
}

// SetHeader sets a header sent with every request
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// BaseURL returns the site root this client talks to
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Host is the host name cookies are bound to
func (c *Client) Host() string {
	return c.baseURL.Hostname()
}

// ResolveURL resolves a path or href found on a page against the site root
func (c *Client) ResolveURL(ref string) (*url.URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid reference %q: %w", ref, err)
	}
	return c.baseURL.ResolveReference(u), nil
}

// UseSession loads the session cookies into the client's jar
func (c *Client) UseSession(token *SessionToken) {
	if token == nil {
		return
	}
	c.httpClient.Jar.SetCookies(c.baseURL, token.Cookies)
}

// doRequest sends req with the configured headers through hc
func (c *Client) doRequest(hc *http.Client, req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := hc.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &pberrors.Error{
			Type:    pberrors.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
			Err:     err,
		}
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})
	return resp, nil
}

// checkResponseStatus maps a non-2xx response onto a typed error
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	errType := pberrors.TypeForStatusCode(resp.StatusCode)
	c.logger.WarnWithFields("unexpected response status", map[string]interface{}{
		"status": resp.StatusCode,
		"url":    resp.Request.URL.String(),
		"type":   string(errType),
	})

	return &pberrors.Error{
		Type:    errType,
		Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
		Code:    resp.StatusCode,
	}
}

// GetPage fetches an HTML page and parses it
func (c *Client) GetPage(ctx context.Context, ref string) (*goquery.Document, error) {
	u, err := c.ResolveURL(ref)
	if err != nil {
		return nil, &pberrors.Error{Type: pberrors.ErrorTypeParsing, Message: err.Error(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &pberrors.Error{
			Type:    pberrors.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to create request: %v", err),
			Err:     err,
		}
	}

	resp, err := c.doRequest(c.httpClient, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &pberrors.Error{
			Type:    pberrors.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read page: %v", err),
			Code:    resp.StatusCode,
			Err:     err,
		}
	}
	return doc, nil
}
