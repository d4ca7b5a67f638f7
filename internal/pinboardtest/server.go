// Package pinboardtest provides an in-process fake of the parts of Pinboard
// pinback talks to: the login form, a paged bookmark index, cached
// snapshot pages and the posts/all API call.
package pinboardtest

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	// SessionCookie is the cookie the fake sets on a good login
	SessionCookie = "login"
	wrongPassword = "?error=wrong+password"
)

// Page is one index page
type Page struct {
	CacheIDs []string
	// NoNext suppresses the "earlier" link even if more pages follow
	NoNext bool
}

// Server is a fake Pinboard site backed by httptest
type Server struct {
	server *httptest.Server

	Username string
	Password string
	Metadata []byte

	mu          sync.Mutex
	pages       []Page
	failPages   map[int]int
	noRedirect  bool
	sessions    map[string]bool
	sessionSeq  int
	cachedPaths []string

	loginHits  int32
	indexHits  int32
	apiHits    int32
	cachedHits int32
}

// NewServer starts a fake site for one user. Call Close when done.
func NewServer(username, password string, pages ...Page) *Server {
	s := &Server{
		Username:  username,
		Password:  password,
		Metadata:  []byte(`[{"href":"https://example.com/","description":"Example","hash":"abc"}]`),
		pages:     pages,
		failPages: make(map[int]int),
		sessions:  make(map[string]bool),
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.route))
	return s
}

// URL is the site root
func (s *Server) URL() string { return s.server.URL }

// APIURL is the v1 API root
func (s *Server) APIURL() string { return s.server.URL + "/v1" }

func (s *Server) Close() { s.server.Close() }

// FailIndexPage makes the n-th index page (1-based) answer with status
func (s *Server) FailIndexPage(n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPages[n] = status
}

// DropLoginRedirect makes successful logins answer 200 without Location
func (s *Server) DropLoginRedirect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noRedirect = true
}

func (s *Server) LoginHits() int  { return int(atomic.LoadInt32(&s.loginHits)) }
func (s *Server) IndexHits() int  { return int(atomic.LoadInt32(&s.indexHits)) }
func (s *Server) APIHits() int    { return int(atomic.LoadInt32(&s.apiHits)) }
func (s *Server) CachedHits() int { return int(atomic.LoadInt32(&s.cachedHits)) }

// Sessions returns how many distinct sessions have been issued
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/auth/":
		s.handleLogin(w, r)
	case path == "/v1/posts/all":
		s.handleAPI(w, r)
	case strings.HasPrefix(path, "/cached/"):
		s.handleCached(w, r)
	case strings.HasPrefix(path, "/u:"+s.Username+"/"):
		s.handleIndex(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&s.loginHits, 1)
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if r.PostForm.Get("username") != s.Username || r.PostForm.Get("password") != s.Password {
		w.Header().Set("Location", wrongPassword)
		w.WriteHeader(http.StatusFound)
		return
	}

	s.mu.Lock()
	s.sessionSeq++
	session := fmt.Sprintf("%s:%d", s.Username, s.sessionSeq)
	s.sessions[session] = true
	noRedirect := s.noRedirect
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: session, Path: "/", HttpOnly: true})
	if noRedirect {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Header().Set("Location", "/u:"+s.Username+"/")
	w.WriteHeader(http.StatusFound)
}

func (s *Server) authenticated(r *http.Request) bool {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[c.Value]
}

// index pages live at /u:<user>/ and /u:<user>/before:<n>/
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&s.indexHits, 1)
	if !s.authenticated(r) {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	n := 1
	rest := strings.TrimPrefix(r.URL.Path, "/u:"+s.Username+"/")
	if strings.HasPrefix(rest, "before:") {
		v, err := strconv.Atoi(strings.Trim(strings.TrimPrefix(rest, "before:"), "/"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		n = v
	}

	s.mu.Lock()
	status, fail := s.failPages[n]
	var page Page
	exists := n >= 1 && n <= len(s.pages)
	if exists {
		page = s.pages[n-1]
	}
	last := n >= len(s.pages)
	s.mu.Unlock()

	if fail {
		w.WriteHeader(status)
		return
	}
	if !exists && n != 1 {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintln(w, `<html><body><div id="bookmarks">`)
	for i, id := range page.CacheIDs {
		fmt.Fprintf(w, `<div class="bookmark"><a class="bookmark_title" href="https://example.com/%d">Bookmark %d</a> <a class="cached" href="%s">cached</a></div>`+"\n",
			i, i, html.EscapeString(id))
	}
	fmt.Fprintln(w, `</div>`)
	if !last && !page.NoNext {
		fmt.Fprintf(w, `<a id="top_earlier" href="/u:%s/before:%d/">earlier</a>`+"\n", s.Username, n+1)
	}
	fmt.Fprintln(w, `</body></html>`)
}

func (s *Server) handleCached(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&s.cachedHits, 1)
	if !s.authenticated(r) {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	s.mu.Lock()
	s.cachedPaths = append(s.cachedPaths, r.URL.Path)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<html><body><h1>snapshot %s</h1></body></html>\n", html.EscapeString(r.URL.Path))
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&s.apiHits, 1)
	user, pass, ok := r.BasicAuth()
	if !ok || user != s.Username || pass != s.Password {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if r.URL.Query().Get("format") != "json" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(s.Metadata)
}

// CachedPaths lists the cached snapshot paths that were requested
func (s *Server) CachedPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.cachedPaths))
	copy(out, s.cachedPaths)
	return out
}
