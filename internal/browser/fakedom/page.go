package fakedom

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/kuitang/uicheck/internal/browser"
	"github.com/kuitang/uicheck/internal/locator"
)

// Event is delivered to handlers registered with On.
type Event struct {
	Type string
	// Target is the element the event was dispatched to.
	Target *goquery.Selection
	// Current is the element whose selector matched, Target or an ancestor.
	Current *goquery.Selection
	// Related is the drag source for drop events.
	Related  *goquery.Selection
	Button   browser.MouseButton
	Position *browser.Point
}

// HandlerFunc reacts to an event.
type HandlerFunc func(p *Page, ev Event)

// ScriptFunc stands in for a JavaScript snippet passed to Evaluate.
// el is nil for page-level evaluation.
type ScriptFunc func(p *Page, el *goquery.Selection, arg any) (any, error)

type handler struct {
	event string
	sel   cascadia.Selector
	fn    HandlerFunc
}

type timer struct {
	at  time.Time
	seq int
	fn  func(p *Page)
}

// Page is a loaded document. Like a real page it is driven by one goroutine
// at a time.
type Page struct {
	browser *Browser
	vpW     float64
	vpH     float64

	url     string
	doc     *goquery.Document
	rules   []compiledRule
	scrollX float64
	scrollY float64
	focused *html.Node

	handlers []handler
	onScroll []func(p *Page)
	scripts  map[string]ScriptFunc
	timers   []timer
	timerSeq int

	closed bool
}

func newPage(b *Browser, w, h float64) *Page {
	p := &Page{browser: b, vpW: w, vpH: h, url: "about:blank"}
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader("<html><head></head><body></body></html>"))
	p.doc = doc
	p.scripts = make(map[string]ScriptFunc)
	return p
}

// On registers fn for events of the given type whose target matches selector
// or has an ancestor that does. Events: click, dblclick, contextmenu, auxclick,
// input, change, focus, blur, dragstart, drop, dragend.
func (p *Page) On(event, selector string, fn HandlerFunc) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		panic(fmt.Sprintf("fakedom: bad handler selector %q: %v", selector, err))
	}
	p.handlers = append(p.handlers, handler{event: event, sel: sel, fn: fn})
}

// OnScroll registers fn to run after every scroll position change.
func (p *Page) OnScroll(fn func(p *Page)) { p.onScroll = append(p.onScroll, fn) }

// Script registers the behaviour of an Evaluate snippet, keyed by its exact text.
func (p *Page) Script(script string, fn ScriptFunc) { p.scripts[script] = fn }

// After runs fn once d has elapsed on the browser clock and returns a function
// that cancels it. Timers fire lazily, the next time the page is read or driven.
func (p *Page) After(d time.Duration, fn func(p *Page)) (cancel func()) {
	p.timerSeq++
	seq := p.timerSeq
	p.timers = append(p.timers, timer{at: p.Now().Add(d), seq: seq, fn: fn})
	return func() {
		for i, t := range p.timers {
			if t.seq == seq {
				p.timers = append(p.timers[:i], p.timers[i+1:]...)
				return
			}
		}
	}
}

// Now is the browser clock's current time.
func (p *Page) Now() time.Time { return p.browser.clock.Now() }

// Find selects elements in the current document.
func (p *Page) Find(selector string) *goquery.Selection { return p.doc.Find(selector) }

// ScrollY is the vertical scroll offset.
func (p *Page) ScrollY() float64 { return p.scrollY }

// Navigate loads rawURL, resolved against the current URL.
func (p *Page) Navigate(rawURL string) error {
	target := rawURL
	if base, err := url.Parse(p.url); err == nil {
		if ref, err := url.Parse(rawURL); err == nil {
			target = base.ResolveReference(ref).String()
		}
	}
	return p.load(target)
}

func (p *Page) live() error {
	if p.closed {
		return errClosed
	}
	p.fireTimers()
	return nil
}

func (p *Page) fireTimers() {
	for {
		now := p.Now()
		idx := -1
		for i, t := range p.timers {
			if t.at.After(now) {
				continue
			}
			if idx < 0 || t.at.Before(p.timers[idx].at) || (t.at.Equal(p.timers[idx].at) && t.seq < p.timers[idx].seq) {
				idx = i
			}
		}
		if idx < 0 {
			return
		}
		t := p.timers[idx]
		p.timers = append(p.timers[:idx], p.timers[idx+1:]...)
		t.fn(p)
	}
}

func (p *Page) load(target string) error {
	site, ok := p.browser.site(target)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchPage, target)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(site.HTML))
	if err != nil {
		return fmt.Errorf("fakedom: parse %s: %w", target, err)
	}
	rules := make([]compiledRule, 0, len(site.Styles))
	for _, r := range site.Styles {
		sel, err := cascadia.Compile(r.Selector)
		if err != nil {
			return fmt.Errorf("fakedom: style selector %q: %w", r.Selector, err)
		}
		rules = append(rules, compiledRule{sel: sel, rule: r})
	}
	p.url = target
	p.doc = doc
	p.rules = rules
	p.scrollX, p.scrollY = 0, 0
	p.focused = nil
	p.handlers = nil
	p.onScroll = nil
	p.scripts = make(map[string]ScriptFunc)
	p.timers = nil
	if site.Setup != nil {
		site.Setup(p)
	}
	return nil
}

// Goto loads a registered document.
func (p *Page) Goto(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.closed {
		return errClosed
	}
	return p.load(rawURL)
}

// URL returns the current document URL.
func (p *Page) URL() string { return p.url }

// Title returns the text of the first title element.
func (p *Page) Title(ctx context.Context) (string, error) {
	if err := p.check(ctx); err != nil {
		return "", err
	}
	return strings.TrimSpace(p.doc.Find("title").First().Text()), nil
}

func (p *Page) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.live()
}

var scrollByScript = regexp.MustCompile(`^\(\)\s*=>\s*\{?\s*window\.scrollBy\(\s*([^,]+?)\s*,\s*([^)]+?)\s*\)\s*;?\s*\}?$`)

// Evaluate runs a registered script. window.scrollBy(x, y) arrow functions are
// understood without registration; either argument may be a number or
// document.body.scrollHeight.
func (p *Page) Evaluate(ctx context.Context, script string, arg any) (any, error) {
	if err := p.check(ctx); err != nil {
		return nil, err
	}
	if fn, ok := p.scripts[script]; ok {
		return fn(p, nil, arg)
	}
	if m := scrollByScript.FindStringSubmatch(strings.TrimSpace(script)); m != nil {
		dx, err := p.scriptNumber(m[1])
		if err != nil {
			return nil, err
		}
		dy, err := p.scriptNumber(m[2])
		if err != nil {
			return nil, err
		}
		p.scrollBy(dx, dy)
		return nil, nil
	}
	return nil, fmt.Errorf("fakedom: no script registered for %q", script)
}

func (p *Page) scriptNumber(expr string) (float64, error) {
	switch expr {
	case "document.body.scrollHeight", "document.documentElement.scrollHeight":
		return p.documentHeight(), nil
	}
	v, err := strconv.ParseFloat(expr, 64)
	if err != nil {
		return 0, fmt.Errorf("fakedom: unsupported scroll argument %q", expr)
	}
	return v, nil
}

// ScrollBy scrolls the window.
func (p *Page) ScrollBy(ctx context.Context, dx, dy float64) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	p.scrollBy(dx, dy)
	return nil
}

func (p *Page) documentHeight() float64 {
	for _, sel := range []string{"body", "html"} {
		if v, ok := p.doc.Find(sel).First().Attr("data-height"); ok {
			if h, err := strconv.ParseFloat(v, 64); err == nil {
				return h
			}
		}
	}
	return defaultDocumentHeight
}

func (p *Page) scrollTo(x, y float64) {
	maxY := p.documentHeight() - p.vpH
	if maxY < 0 {
		maxY = 0
	}
	y = min(max(y, 0), maxY)
	x = max(x, 0)
	if x == p.scrollX && y == p.scrollY {
		return
	}
	p.scrollX, p.scrollY = x, y
	for _, fn := range p.onScroll {
		fn(p)
	}
}

func (p *Page) scrollBy(dx, dy float64) { p.scrollTo(p.scrollX+dx, p.scrollY+dy) }

// ScrollTo moves the window to an absolute position, clamped to the document.
func (p *Page) ScrollTo(x, y float64) { p.scrollTo(x, y) }

// Viewport is the visible window in viewport coordinates.
func (p *Page) Viewport(ctx context.Context) (browser.Rect, error) {
	if err := p.check(ctx); err != nil {
		return browser.Rect{}, err
	}
	return browser.Rect{Width: p.vpW, Height: p.vpH}, nil
}

// Screenshot returns the serialized document.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	if err := p.check(ctx); err != nil {
		return nil, err
	}
	out, err := goquery.OuterHtml(p.doc.Selection)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// Close releases the page.
func (p *Page) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.browser.pageClosed()
	return nil
}

// Query resolves loc against the current document in document order.
func (p *Page) Query(ctx context.Context, loc locator.Locator) ([]browser.Element, error) {
	if err := p.check(ctx); err != nil {
		return nil, err
	}
	nodes, err := p.match(loc)
	if err != nil {
		return nil, err
	}
	nodes = applyFilters(nodes, loc.Filters())
	if i, ok := loc.Index(); ok {
		if i < len(nodes) {
			nodes = nodes[i : i+1]
		} else {
			nodes = nil
		}
	}
	out := make([]browser.Element, len(nodes))
	for i, n := range nodes {
		out[i] = &element{page: p, node: n}
	}
	return out, nil
}

func (p *Page) root() *html.Node { return p.doc.Nodes[0] }

func (p *Page) match(loc locator.Locator) ([]*html.Node, error) {
	q := loc.Query()
	switch loc.Strategy() {
	case locator.CSS:
		if rest, ok := strings.CutPrefix(q, "id="); ok {
			q = "[id=" + strconv.Quote(rest) + "]"
		}
		sel, err := cascadia.Compile(q)
		if err != nil {
			return nil, fmt.Errorf("fakedom: invalid css selector %q: %w", q, err)
		}
		return sel.MatchAll(p.root()), nil
	case locator.Path:
		found, err := htmlqueryAll(p.root(), q)
		if err != nil {
			return nil, fmt.Errorf("fakedom: invalid xpath %q: %w", q, err)
		}
		return p.ordered(found), nil
	case locator.Text:
		return p.byText(q, loc.IsExact()), nil
	case locator.Role:
		return p.byRole(q, loc.Name(), loc.IsExact()), nil
	case locator.Label:
		return p.byLabel(q, loc.IsExact()), nil
	}
	return nil, fmt.Errorf("fakedom: unsupported strategy %s", loc.Strategy())
}

func textMatches(have, want string, exact bool) bool {
	have, want = normalize(have), normalize(want)
	if exact {
		return have == want
	}
	return strings.Contains(have, want)
}

func (p *Page) byText(q string, exact bool) []*html.Node {
	var out []*html.Node
	var walk func(n *html.Node) bool
	// walk reports whether n or a descendant matched, so only the innermost
	// matching elements are returned.
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && skipText(n) {
			return false
		}
		inner := false
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				inner = true
			}
		}
		if n.Type != html.ElementNode || inner {
			return inner
		}
		if textMatches(textContent(n), q, exact) {
			out = append(out, n)
			return true
		}
		return false
	}
	walk(p.root())
	return p.ordered(out)
}

func skipText(n *html.Node) bool {
	switch n.Data {
	case "head", "script", "style", "template":
		return true
	}
	return false
}

func (p *Page) byRole(role, name string, exact bool) []*html.Node {
	var out []*html.Node
	eachElement(p.root(), func(n *html.Node) {
		if roleOf(n) != role || !p.visible(n) {
			return
		}
		if name != "" && !textMatches(accessibleName(p.root(), n), name, exact) {
			return
		}
		out = append(out, n)
	})
	return out
}

func (p *Page) byLabel(q string, exact bool) []*html.Node {
	var out []*html.Node
	eachElement(p.root(), func(n *html.Node) {
		if n.Data == "label" && textMatches(textContent(n), q, exact) {
			if c := labelControl(p.root(), n); c != nil {
				out = append(out, c)
			}
			return
		}
		if v, ok := attr(n, "aria-label"); ok && textMatches(v, q, exact) {
			out = append(out, n)
		}
	})
	return p.ordered(out)
}

func applyFilters(nodes []*html.Node, filters []locator.Filter) []*html.Node {
	for _, f := range filters {
		kept := nodes[:0:0]
		for _, n := range nodes {
			text := normalize(textContent(n))
			if f.HasText != "" && !strings.Contains(text, normalize(f.HasText)) {
				continue
			}
			if f.HasNotText != "" && strings.Contains(text, normalize(f.HasNotText)) {
				continue
			}
			if f.Role != "" && roleOf(n) != f.Role {
				continue
			}
			kept = append(kept, n)
		}
		nodes = kept
	}
	return nodes
}

// ordered dedupes nodes and sorts them into document order.
func (p *Page) ordered(nodes []*html.Node) []*html.Node {
	if len(nodes) < 2 {
		return nodes
	}
	index := make(map[*html.Node]int)
	i := 0
	eachElement(p.root(), func(n *html.Node) {
		index[n] = i
		i++
	})
	seen := make(map[*html.Node]bool, len(nodes))
	out := make([]*html.Node, 0, len(nodes))
	for _, n := range nodes {
		if _, ok := index[n]; !ok || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.SliceStable(out, func(a, b int) bool { return index[out[a]] < index[out[b]] })
	return out
}

// dispatch delivers an event to matching handlers, innermost target first.
func (p *Page) dispatch(ev Event, target *html.Node) {
	ev.Target = p.doc.FindNodes(target)
	for n := target; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		for _, h := range p.handlers {
			if h.event != ev.Type || !h.sel.Match(n) {
				continue
			}
			ev.Current = p.doc.FindNodes(n)
			h.fn(p, ev)
			if !p.attached(target) {
				return
			}
		}
	}
}

func (p *Page) attached(n *html.Node) bool {
	root := p.root()
	for c := n; c != nil; c = c.Parent {
		if c == root {
			return true
		}
	}
	return false
}

func (p *Page) focus(n *html.Node) {
	if p.focused == n {
		return
	}
	if prev := p.focused; prev != nil && p.attached(prev) {
		p.focused = nil
		p.dispatch(Event{Type: "blur"}, prev)
	}
	p.focused = n
	if n != nil {
		p.dispatch(Event{Type: "focus"}, n)
	}
}
