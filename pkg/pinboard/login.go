package pinboard

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	pberrors "pinback/pkg/errors"
)

// Authenticator exchanges a username and password for a session
type Authenticator struct {
	client *Client
}

// NewAuthenticator returns an Authenticator that logs in through client.
// On success the session cookies are also stored in client's jar.
func NewAuthenticator(client *Client) *Authenticator {
	return &Authenticator{client: client}
}

// Login posts the credentials to the login form. Pinboard answers a good
// login with a redirect; the redirect is not followed. A missing Location
// header or a redirect back to the wrong-password page both fail with an
// auth error.
func (a *Authenticator) Login(ctx context.Context, username, password string) (*SessionToken, error) {
	if username == "" || password == "" {
		return nil, pberrors.NewAuthError("username and password are required", 0)
	}

	loginURL, err := a.client.ResolveURL(AuthPath)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	noRedirect := *a.client.httpClient
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	a.client.logger.WithField("username", username).Debug("logging in")

	resp, err := a.client.doRequest(&noRedirect, req)
	if err != nil {
		authErr := pberrors.NewAuthError(fmt.Sprintf("login request failed: %v", err), 0)
		authErr.Err = err
		return nil, authErr
	}
	defer resp.Body.Close()

	location := resp.Header.Get("Location")
	if location == "" || location == WrongPasswordLocation {
		a.client.logger.WithFields(map[string]interface{}{
			"username": username,
			"status":   resp.StatusCode,
		}).Warn("login rejected")
		return nil, pberrors.NewAuthError("error logging in to Pinboard", resp.StatusCode)
	}

	token := &SessionToken{
		Domain:  a.client.Host(),
		Cookies: resp.Cookies(),
	}

	a.client.logger.WithFields(map[string]interface{}{
		"username": username,
		"cookies":  len(token.Cookies),
	}).Info("logged in")

	return token, nil
}
