// Package pwdriver implements the browser contract on top of Playwright.
//
// Each page gets its own browser context so sessions never share cookies or
// storage. Elements are positional: the i-th match of the query that produced
// them. Playwright calls are blocking, so the context is checked before each
// call and per-call timeouts bound the rest.
package pwdriver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/uicheck/internal/browser"
	"github.com/kuitang/uicheck/internal/locator"
	"github.com/kuitang/uicheck/internal/obs"
)

const (
	defaultActionTimeout     = 5 * time.Second
	defaultNavigationTimeout = 30 * time.Second
)

// Options configure the driver.
type Options struct {
	// Browser is chromium, firefox or webkit.
	Browser  string
	Headless bool
	// ActionTimeout bounds a single click, fill or drag.
	ActionTimeout     time.Duration
	NavigationTimeout time.Duration
}

// Driver is a running Playwright server with one launched browser.
type Driver struct {
	opts    Options
	pw      *playwright.Playwright
	browser playwright.Browser

	closeOnce sync.Once
	closeErr  error
}

// Install downloads the driver and the named browser.
func Install(browserName string) error {
	return playwright.Install(&playwright.RunOptions{Browsers: []string{browserName}})
}

// Launch starts Playwright and the configured browser.
func Launch(opts Options) (*Driver, error) {
	if opts.Browser == "" {
		opts.Browser = "chromium"
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = defaultActionTimeout
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = defaultNavigationTimeout
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	var bt playwright.BrowserType
	switch opts.Browser {
	case "chromium":
		bt = pw.Chromium
	case "firefox":
		bt = pw.Firefox
	case "webkit":
		bt = pw.WebKit
	default:
		_ = pw.Stop()
		return nil, fmt.Errorf("unknown browser %q", opts.Browser)
	}
	b, err := bt.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch %s: %w", opts.Browser, err)
	}
	obs.Pkg("pwdriver").Info("browser launched", "browser", opts.Browser, "headless", opts.Headless, "version", b.Version())
	return &Driver{opts: opts, pw: pw, browser: b}, nil
}

// NewPage opens a page in a fresh browser context.
func (d *Driver) NewPage(ctx context.Context, opts browser.PageOptions) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctxOpts := playwright.BrowserNewContextOptions{}
	if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
		ctxOpts.Viewport = &playwright.Size{Width: opts.ViewportWidth, Height: opts.ViewportHeight}
	}
	bctx, err := d.browser.NewContext(ctxOpts)
	if err != nil {
		return nil, fmt.Errorf("new browser context: %w", err)
	}
	bctx.SetDefaultTimeout(ms(d.opts.ActionTimeout))
	bctx.SetDefaultNavigationTimeout(ms(d.opts.NavigationTimeout))
	pg, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}
	return &page{d: d, bctx: bctx, pg: pg}, nil
}

// Close shuts down the browser and the Playwright server.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = errors.Join(d.browser.Close(), d.pw.Stop())
	})
	return d.closeErr
}

func ms(d time.Duration) float64 { return float64(d.Milliseconds()) }

type page struct {
	d    *Driver
	bctx playwright.BrowserContext
	pg   playwright.Page
}

func (p *page) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opts := playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(ms(p.timeout(ctx, p.d.opts.NavigationTimeout))),
	}
	if _, err := p.pg.Goto(url, opts); err != nil {
		return err
	}
	return nil
}

// timeout clips d to the context deadline.
func (p *page) timeout(ctx context.Context, d time.Duration) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem < d {
			return max(rem, time.Millisecond)
		}
	}
	return d
}

func (p *page) URL() string { return p.pg.URL() }

func (p *page) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.pg.Title()
}

func (p *page) Evaluate(ctx context.Context, script string, arg any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if arg == nil {
		return p.pg.Evaluate(script)
	}
	return p.pg.Evaluate(script, arg)
}

func (p *page) ScrollBy(ctx context.Context, dx, dy float64) error {
	_, err := p.Evaluate(ctx, "([x, y]) => window.scrollBy(x, y)", []any{dx, dy})
	return err
}

func (p *page) Viewport(ctx context.Context) (browser.Rect, error) {
	if err := ctx.Err(); err != nil {
		return browser.Rect{}, err
	}
	if size := p.pg.ViewportSize(); size != nil {
		return browser.Rect{Width: float64(size.Width), Height: float64(size.Height)}, nil
	}
	v, err := p.pg.Evaluate("() => [window.innerWidth, window.innerHeight]")
	if err != nil {
		return browser.Rect{}, err
	}
	wh, ok := v.([]any)
	if !ok || len(wh) != 2 {
		return browser.Rect{}, fmt.Errorf("unexpected viewport value %v", v)
	}
	return browser.Rect{Width: toFloat(wh[0]), Height: toFloat(wh[1])}, nil
}

func (p *page) Query(ctx context.Context, loc locator.Locator) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pl, err := p.build(loc)
	if err != nil {
		return nil, err
	}
	n, err := pl.Count()
	if err != nil {
		return nil, err
	}
	els := make([]browser.Element, n)
	for i := range n {
		els[i] = &element{p: p, base: pl, index: i, loc: pl.Nth(i)}
	}
	return els, nil
}

// build translates loc into a Playwright locator. Playwright matches plain
// strings case-insensitively unless exact, so substring queries go through
// textPattern to keep them case-sensitive.
func (p *page) build(loc locator.Locator) (playwright.Locator, error) {
	exact := playwright.Bool(loc.IsExact())
	text := func(q string) any {
		if loc.IsExact() {
			return q
		}
		return textPattern(q)
	}
	var pl playwright.Locator
	switch loc.Strategy() {
	case locator.Role:
		opts := playwright.PageGetByRoleOptions{Exact: exact}
		if loc.Name() != "" {
			opts.Name = text(loc.Name())
		}
		pl = p.pg.GetByRole(playwright.AriaRole(loc.Query()), opts)
	case locator.CSS:
		pl = p.pg.Locator(loc.Query())
	case locator.Text:
		pl = p.pg.GetByText(text(loc.Query()), playwright.PageGetByTextOptions{Exact: exact})
	case locator.Path:
		pl = p.pg.Locator("xpath=" + loc.Query())
	case locator.Label:
		pl = p.pg.GetByLabel(text(loc.Query()), playwright.PageGetByLabelOptions{Exact: exact})
	default:
		return nil, fmt.Errorf("unsupported locator strategy %s", loc.Strategy())
	}
	for _, f := range loc.Filters() {
		opts := playwright.LocatorFilterOptions{}
		if f.HasText != "" {
			opts.HasText = textPattern(f.HasText)
		}
		if f.HasNotText != "" {
			opts.HasNotText = textPattern(f.HasNotText)
		}
		pl = pl.Filter(opts)
		if f.Role != "" {
			pl = pl.And(p.pg.GetByRole(playwright.AriaRole(f.Role)))
		}
	}
	if i, ok := loc.Index(); ok {
		pl = pl.Nth(i)
	}
	return pl, nil
}

// textPattern matches q as a case-sensitive substring, with any run of
// whitespace in q matching any run of whitespace in the page text.
func textPattern(q string) *regexp.Regexp {
	words := strings.Fields(q)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(strings.Join(words, `\s+`))
}

func (p *page) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.pg.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
		Type:     playwright.ScreenshotTypePng,
	})
}

func (p *page) Close() error {
	return errors.Join(p.pg.Close(), p.bctx.Close())
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

// actionError maps Playwright failures onto the contract's sentinel errors.
func actionError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not attached to the DOM"), strings.Contains(msg, "Element is detached"):
		return fmt.Errorf("%w: %v", browser.ErrDetached, err)
	case errors.Is(err, playwright.ErrTimeout),
		strings.Contains(msg, "not visible"),
		strings.Contains(msg, "not enabled"),
		strings.Contains(msg, "not editable"):
		return fmt.Errorf("%w: %v", browser.ErrNotInteractable, err)
	}
	return err
}
