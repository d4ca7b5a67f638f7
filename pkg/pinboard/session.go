package pinboard

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// SessionToken is the cookie set returned by a successful login. It is
// valid for a single run and never refreshed.
type SessionToken struct {
	Domain  string
	Cookies []*http.Cookie
}

// Names lists the cookie names, for logging without values
func (t *SessionToken) Names() []string {
	names := make([]string, 0, len(t.Cookies))
	for _, c := range t.Cookies {
		names = append(names, c.Name)
	}
	return names
}

// WriteCookies writes the token in the Netscape cookies.txt format that
// wget --load-cookies reads.
func WriteCookies(w io.Writer, token *SessionToken) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# Netscape HTTP Cookie File")

	for _, c := range token.Cookies {
		domain := token.Domain
		includeSubdomains := "FALSE"
		if c.Domain != "" {
			domain = "." + strings.TrimPrefix(c.Domain, ".")
			includeSubdomains = "TRUE"
		}

		path := c.Path
		if path == "" {
			path = "/"
		}

		secure := "FALSE"
		if c.Secure {
			secure = "TRUE"
		}

		var expires int64
		if !c.Expires.IsZero() {
			expires = c.Expires.Unix()
		}

		fmt.Fprintf(bw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			domain, includeSubdomains, path, secure, expires, c.Name, c.Value)
	}

	return bw.Flush()
}

// WriteCookieFile writes the token to path, readable only by the owner
func WriteCookieFile(token *SessionToken, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to create cookie file: %w", err)
	}

	if err := WriteCookies(f, token); err != nil {
		f.Close()
		return fmt.Errorf("failed to write cookie file: %w", err)
	}
	return f.Close()
}
