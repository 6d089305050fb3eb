// Package browser holds end-to-end tests of the Playwright driver against a
// local fixture site. Every test skips when Playwright or its browsers are not
// installed (run `uicheck install` first).
package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kuitang/uicheck/internal/browser/pwdriver"
	"github.com/kuitang/uicheck/internal/session"
)

const (
	// CODING AGENT RULE: Always use these timeout constants for browser tests.
	// Never introduce a larger timeout value anywhere in tests/browser.
	browserMaxTimeout = 5 * time.Second
	browserPoll       = 50 * time.Millisecond
)

var (
	driverOnce sync.Once
	driver     *pwdriver.Driver
	driverErr  error
)

// sharedDriver launches headless Chromium once per test binary.
func sharedDriver(t *testing.T) *pwdriver.Driver {
	t.Helper()
	driverOnce.Do(func() {
		driver, driverErr = pwdriver.Launch(pwdriver.Options{
			Browser:           "chromium",
			Headless:          true,
			ActionTimeout:     browserMaxTimeout,
			NavigationTimeout: browserMaxTimeout,
		})
	})
	if driverErr != nil {
		t.Skip("Playwright not available:", driverErr)
	}
	return driver
}

// fixtureServer serves the pages in fixturePages.
func fixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for path, body := range fixturePages {
		mux.HandleFunc("GET "+path, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(body))
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// newSession opens a session on the fixture site.
func newSession(t *testing.T) *session.Session {
	t.Helper()
	d := sharedDriver(t)
	srv := fixtureServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), browserMaxTimeout)
	defer cancel()
	sess, err := session.New(ctx, d, session.Options{
		BaseURL:           srv.URL + "/",
		Timeout:           2 * time.Second,
		PollInterval:      browserPoll,
		NavigationTimeout: browserMaxTimeout,
		ViewportWidth:     1280,
		ViewportHeight:    720,
	})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 4*browserMaxTimeout)
	t.Cleanup(cancel)
	return ctx
}

var fixturePages = map[string]string{
	"/{$}": `<!doctype html>
<html>
<head><title>Fixture Home</title>
<style>
  body { margin: 0; height: 4000px; }
  header { position: fixed; top: 0; width: 100%; height: 54px; background: rgb(255, 255, 255); transition: none; }
  header.nav-up { top: -54px; }
  #late { color: rgb(38, 251, 235); }
  .hidden { display: none; }
  #far { position: absolute; top: 3000px; }
</style>
</head>
<body>
<header class="nav-down"><a href="/second.html">Second page</a></header>
<main style="padding-top: 60px">
  <h1>Fixture</h1>
  <button id="toggle" onclick="this.textContent = this.textContent === 'Off' ? 'On' : 'Off'">Off</button>
  <button id="show" onclick="setTimeout(() => document.getElementById('late').classList.remove('hidden'), 300)">Show later</button>
  <p id="late" class="hidden">Arrived</p>
  <label for="name">Your name</label>
  <input id="name" type="text" placeholder="Name">
  <label><input id="agree" type="checkbox"> I agree</label>
  <input id="locked" type="checkbox" disabled>
  <ul><li>alpha</li><li>beta</li><li>gamma</li></ul>
  <p id="far">Far below</p>
</main>
<script>
  let last = 0;
  window.addEventListener('scroll', () => {
    const y = window.scrollY;
    const h = document.querySelector('header');
    if (y > last && y > 54) { h.classList.replace('nav-down', 'nav-up'); }
    else if (y < last) { h.classList.replace('nav-up', 'nav-down'); }
    last = y;
  });
</script>
</body>
</html>`,
	"/second.html": `<!doctype html>
<html><head><title>Second</title></head>
<body><h1>Second page</h1></body></html>`,
}
