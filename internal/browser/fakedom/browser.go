// Package fakedom is an in-memory implementation of the browser contract for
// tests. Pages are static HTML parsed with goquery; behaviour is attached with
// Go event handlers, style rules and timers instead of JavaScript.
//
// Geometry is declared, not laid out: an element's document-space border box
// comes from a data-rect="x,y,w,h" attribute (default 0,0,100,20), and
// data-position="fixed" pins it to the viewport so scrolling does not move it.
package fakedom

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/andybalholm/cascadia"

	"github.com/kuitang/uicheck/internal/browser"
	"github.com/kuitang/uicheck/internal/clock"
)

// ErrNoSuchPage is returned by Goto for URLs with no registered site.
var ErrNoSuchPage = errors.New("fakedom: no page registered for url")

var errClosed = errors.New("fakedom: page is closed")

const (
	defaultViewportWidth  = 1280
	defaultViewportHeight = 720
	defaultDocumentHeight = 5000
)

// StyleRule sets a CSS property on elements matching Selector.
// Later rules win over earlier ones; inline style attributes win over rules.
type StyleRule struct {
	Selector string
	Property string
	Value    string
}

// Site is one loadable document.
type Site struct {
	HTML   string
	Styles []StyleRule
	// Setup registers handlers, scripts and timers each time the page loads.
	Setup func(p *Page)
}

type compiledRule struct {
	sel  cascadia.Selector
	rule StyleRule
}

// Browser serves registered sites to new pages.
type Browser struct {
	mu     sync.Mutex
	clock  clock.Clock
	sites  map[string]Site
	open   int
	closed bool
}

// New creates a browser whose timers follow clk.
func New(clk clock.Clock) *Browser {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Browser{clock: clk, sites: make(map[string]Site)}
}

// Handle registers the document served at url.
func (b *Browser) Handle(url string, site Site) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sites[url] = site
}

func (b *Browser) site(url string) (Site, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sites[url]
	return s, ok
}

// OpenPages returns the number of pages created and not yet closed.
func (b *Browser) OpenPages() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// NewPage opens a blank page.
func (b *Browser) NewPage(ctx context.Context, opts browser.PageOptions) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("fakedom: browser is closed")
	}
	w, h := opts.ViewportWidth, opts.ViewportHeight
	if w <= 0 {
		w = defaultViewportWidth
	}
	if h <= 0 {
		h = defaultViewportHeight
	}
	b.open++
	return newPage(b, float64(w), float64(h)), nil
}

func (b *Browser) pageClosed() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open--
}

// Close rejects further pages.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
