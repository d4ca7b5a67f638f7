package pinboard

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinback/internal/pinboardtest"
	pberrors "pinback/pkg/errors"
	"pinback/pkg/logger"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(baseURL, 5*time.Second, logger.NewNopLogger())
	require.NoError(t, err)
	return c
}

func TestLoginSuccess(t *testing.T) {
	srv := pinboardtest.NewServer("alice", "s3cret")
	defer srv.Close()

	token, err := NewAuthenticator(newTestClient(t, srv.URL())).Login(context.Background(), "alice", "s3cret")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", token.Domain)
	assert.Equal(t, []string{pinboardtest.SessionCookie}, token.Names())
	assert.Equal(t, 1, srv.LoginHits())
	// the redirect to the index is not followed
	assert.Equal(t, 0, srv.IndexHits())
}

func TestLoginWrongPassword(t *testing.T) {
	srv := pinboardtest.NewServer("alice", "s3cret")
	defer srv.Close()

	token, err := NewAuthenticator(newTestClient(t, srv.URL())).Login(context.Background(), "alice", "nope")
	assert.Nil(t, token)
	require.Error(t, err)
	assert.True(t, pberrors.IsAuth(err))
}

func TestLoginMissingRedirect(t *testing.T) {
	srv := pinboardtest.NewServer("alice", "s3cret")
	defer srv.Close()
	srv.DropLoginRedirect()

	_, err := NewAuthenticator(newTestClient(t, srv.URL())).Login(context.Background(), "alice", "s3cret")
	assert.True(t, pberrors.IsAuth(err))
}

func TestLoginTransportFailure(t *testing.T) {
	srv := pinboardtest.NewServer("alice", "s3cret")
	url := srv.URL()
	srv.Close()

	_, err := NewAuthenticator(newTestClient(t, url)).Login(context.Background(), "alice", "s3cret")
	assert.True(t, pberrors.IsAuth(err))
}

func TestLoginRequiresCredentials(t *testing.T) {
	_, err := NewAuthenticator(newTestClient(t, BaseURL)).Login(context.Background(), "", "")
	assert.True(t, pberrors.IsAuth(err))
}

func TestLoginNeverLogsPassword(t *testing.T) {
	srv := pinboardtest.NewServer("alice", "s3cret")
	defer srv.Close()

	tl := logger.NewTestLogger()
	c, err := NewClient(srv.URL(), 5*time.Second, tl)
	require.NoError(t, err)

	_, err = NewAuthenticator(c).Login(context.Background(), "alice", "s3cret")
	require.NoError(t, err)

	for _, msg := range tl.GetMessages() {
		assert.NotContains(t, msg.Message, "s3cret")
		for _, v := range msg.Fields {
			if s, ok := v.(string); ok {
				assert.NotContains(t, s, "s3cret")
			}
		}
	}
}

func TestWriteCookies(t *testing.T) {
	token := &SessionToken{
		Domain: "pinboard.in",
		Cookies: []*http.Cookie{
			{Name: "login", Value: "alice:1"},
			{Name: "auth", Value: "xyz", Domain: "pinboard.in", Path: "/u:alice/", Secure: true, Expires: time.Unix(1700000000, 0)},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCookies(&buf, token))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "# Netscape HTTP Cookie File", lines[0])
	assert.Equal(t, "pinboard.in\tFALSE\t/\tFALSE\t0\tlogin\talice:1", lines[1])
	assert.Equal(t, ".pinboard.in\tTRUE\t/u:alice/\tTRUE\t1700000000\tauth\txyz", lines[2])
}

func TestWriteCookieFilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), CookieFileName)
	require.NoError(t, WriteCookieFile(&SessionToken{Domain: "pinboard.in"}, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
