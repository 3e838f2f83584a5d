package aopswiki

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testUsername   = "testuser"
	testPassword   = "correct horse battery staple"
	testLoginToken = "a1b2c3d4e5"
)

// testWiki is a minimal stand-in for the wiki: a token-based login form,
// cookie sessions, and a set of static pages that can be put behind the
// auth wall.
type testWiki struct {
	server *httptest.Server

	mu              sync.Mutex
	pages           map[string]string
	hits            map[string]int
	logins          int
	sessions        map[string]bool
	nextSession     int
	requireAuth     bool
	alwaysChallenge bool
	pageDelay       time.Duration
	onPage          func(path string)
}

func newTestWiki(t *testing.T) *testWiki {
	w := &testWiki{
		pages:    map[string]string{},
		hits:     map[string]int{},
		sessions: map[string]bool{},
	}
	w.server = httptest.NewServer(http.HandlerFunc(w.handle))
	t.Cleanup(w.server.Close)
	return w
}

func (w *testWiki) put(path, html string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pages[path] = html
}

func (w *testWiki) hitCount(path string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hits[path]
}

func (w *testWiki) loginCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.logins
}

func (w *testWiki) setRequireAuth(v bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.requireAuth = v
}

func (w *testWiki) setAlwaysChallenge(v bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.alwaysChallenge = v
}

// revoke invalidates every issued session so the next authenticated page
// request gets challenged again.
func (w *testWiki) revoke() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sessions = map[string]bool{}
}

const loginForm = `<html><body>
<form action="/Special:UserLogin" method="post">
<input type="hidden" name="wpLoginToken" value="` + testLoginToken + `">
<input name="wpName"><input name="wpPassword">
</form>
</body></html>`

const loggedInPage = `<html><body>
<a href="/Special:UserLogout">Log out</a>
</body></html>`

func (w *testWiki) handle(res http.ResponseWriter, req *http.Request) {
	if req.URL.Path == "/Special:UserLogin" {
		w.handleLogin(res, req)
		return
	}

	w.mu.Lock()
	w.hits[req.URL.Path]++
	page, ok := w.pages[req.URL.Path]
	challenge := w.alwaysChallenge || (w.requireAuth && !w.validSession(req))
	delay := w.pageDelay
	onPage := w.onPage
	w.mu.Unlock()

	if onPage != nil {
		onPage(req.URL.Path)
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	if challenge {
		fmt.Fprint(res, loginForm)
		return
	}
	if !ok {
		http.NotFound(res, req)
		return
	}
	fmt.Fprint(res, page)
}

func (w *testWiki) handleLogin(res http.ResponseWriter, req *http.Request) {
	if req.Method == http.MethodGet {
		fmt.Fprint(res, loginForm)
		return
	}

	err := req.ParseForm()
	if err != nil ||
		req.PostForm.Get("wpLoginToken") != testLoginToken ||
		req.PostForm.Get("wpName") != testUsername ||
		req.PostForm.Get("wpPassword") != testPassword {
		fmt.Fprint(res, loginForm)
		return
	}

	w.mu.Lock()
	w.logins++
	w.nextSession++
	session := fmt.Sprintf("sess-%d", w.nextSession)
	w.sessions[session] = true
	w.mu.Unlock()

	http.SetCookie(res, &http.Cookie{Name: "wikisession", Value: session, Path: "/"})
	fmt.Fprint(res, loggedInPage)
}

// caller must hold w.mu
func (w *testWiki) validSession(req *http.Request) bool {
	cookie, err := req.Cookie("wikisession")
	if err != nil {
		return false
	}
	return w.sessions[cookie.Value]
}

func newTestSession(t *testing.T, w *testWiki) *Session {
	session, err := NewSession(SessionOptions{
		Templates:   Templates{BaseUrl: w.server.URL},
		Credentials: Credentials{Username: testUsername, Password: testPassword},
		// tests hammer a local server, the politeness limit would only
		// slow them down
		RequestsPerSecond: 1000,
		Burst:             100,
	})
	require.NoError(t, err)
	return session
}

func wikiPage(inner string) string {
	return `<html><body><div id="mw-content-text"><div class="mw-parser-output">` +
		inner + `</div></div></body></html>`
}

func wikiHeading(title string) string {
	return `<h2><span class="mw-headline">` + title + `</span></h2>`
}
