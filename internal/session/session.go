// Package session owns one browsing context for the length of a scenario:
// navigation, page-level scripts and waits, and locator handles bound to it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/kuitang/uicheck/internal/browser"
	"github.com/kuitang/uicheck/internal/clock"
	"github.com/kuitang/uicheck/internal/errs"
	"github.com/kuitang/uicheck/internal/expect"
	"github.com/kuitang/uicheck/internal/locator"
	"github.com/kuitang/uicheck/internal/logutil"
	"github.com/kuitang/uicheck/internal/obs"
)

const (
	DefaultNavigationTimeout = 30 * time.Second
	logValueMaxChars         = 256
)

// State is the lifecycle state of a session.
type State int

const (
	Closed State = iota
	Navigating
	Ready
)

func (s State) String() string {
	switch s {
	case Navigating:
		return "navigating"
	case Ready:
		return "ready"
	default:
		return "closed"
	}
}

// Options configure a session. Zero values take the package defaults.
type Options struct {
	// BaseURL resolves relative navigation targets.
	BaseURL           string
	Timeout           time.Duration
	PollInterval      time.Duration
	NavigationTimeout time.Duration
	ViewportWidth     int
	ViewportHeight    int
	Clock             clock.Clock
	Metrics           *obs.Metrics
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = expect.DefaultTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = expect.DefaultInterval
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = DefaultNavigationTimeout
	}
	if o.Clock == nil {
		o.Clock = clock.Real{}
	}
	return o
}

// Session is a single browsing context owned by one goroutine.
type Session struct {
	id    string
	page  browser.Page
	opts  Options
	state State
}

// New opens a fresh page from provider.
func New(ctx context.Context, provider browser.Provider, opts Options) (*Session, error) {
	opts = opts.withDefaults()
	page, err := provider.NewPage(ctx, browser.PageOptions{
		ViewportWidth:  opts.ViewportWidth,
		ViewportHeight: opts.ViewportHeight,
	})
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "open browser page", err)
	}
	s := &Session{
		id:    uuid.NewString(),
		page:  page,
		opts:  opts,
		state: Ready,
	}
	return s, nil
}

// ID returns the session identifier used in logs and reports.
func (s *Session) ID() string { return s.id }

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// URL returns the current page URL.
func (s *Session) URL() string { return s.page.URL() }

// Page exposes the underlying page for observables.
func (s *Session) Page() browser.Page { return s.page }

func (s *Session) logger(ctx context.Context) *slog.Logger {
	return obs.From(ctx).With("pkg", "session", "session_id", s.id)
}

func (s *Session) ready() error {
	if s.state == Closed {
		return errs.New(errs.Unavailable, "session is closed")
	}
	return nil
}

// ResolveURL resolves target against the base URL.
func (s *Session) ResolveURL(target string) (string, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return "", errs.Wrap(errs.InvalidArgument, fmt.Sprintf("invalid url %q", target), err)
	}
	if ref.IsAbs() || s.opts.BaseURL == "" {
		return ref.String(), nil
	}
	base, err := url.Parse(s.opts.BaseURL)
	if err != nil {
		return "", errs.Wrap(errs.InvalidArgument, fmt.Sprintf("invalid base url %q", s.opts.BaseURL), err)
	}
	return base.ResolveReference(ref).String(), nil
}

// Navigate loads target and waits for the load to finish.
func (s *Session) Navigate(ctx context.Context, target string) error {
	if err := s.ready(); err != nil {
		return err
	}
	u, err := s.ResolveURL(target)
	if err != nil {
		return err
	}
	s.state = Navigating
	navCtx, cancel := context.WithTimeout(ctx, s.opts.NavigationTimeout)
	defer cancel()
	start := time.Now()
	err = s.page.Goto(navCtx, u)
	s.state = Ready
	if err != nil {
		s.logger(ctx).Warn("navigation failed", "url", u, "error", err)
		return errs.Wrap(errs.NavigationFailed, "navigate to "+u, err)
	}
	s.logger(ctx).Debug("navigated", "url", u, "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// Evaluate runs a page-level script.
func (s *Session) Evaluate(ctx context.Context, script string, arg any) (any, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	v, err := s.page.Evaluate(ctx, script, arg)
	if err != nil {
		return nil, errs.Wrap(errs.ActionFailed, "evaluate script", err)
	}
	s.logger(ctx).Debug("evaluated script",
		"script", logutil.TruncateForLog(script, logValueMaxChars),
		"result", logutil.RedactValueForLog(v, logValueMaxChars))
	return v, nil
}

// Wait sleeps for d. Fixed waits are fragile; polling assertions are preferred.
func (s *Session) Wait(ctx context.Context, d time.Duration) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.logger(ctx).Warn("fixed wait in scenario; prefer an expectation", "duration_ms", d.Milliseconds())
	if err := s.opts.Clock.Sleep(ctx, d); err != nil {
		return fmt.Errorf("wait %s: %w", d, err)
	}
	return nil
}

// ScrollBy scrolls the window by the given offsets.
func (s *Session) ScrollBy(ctx context.Context, dx, dy float64) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.page.ScrollBy(ctx, dx, dy); err != nil {
		return errs.Wrap(errs.ActionFailed, fmt.Sprintf("scroll by (%g, %g)", dx, dy), err)
	}
	return nil
}

// Screenshot captures the page.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	b, err := s.page.Screenshot(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.ActionFailed, "screenshot", err)
	}
	return b, nil
}

// expectOptions are the session defaults with opts applied.
func (s *Session) expectOptions(opts ...expect.Option) expect.Options {
	base := expect.Options{
		Timeout:  s.opts.Timeout,
		Interval: s.opts.PollInterval,
		Clock:    s.opts.Clock,
	}
	if m := s.opts.Metrics; m != nil {
		base.Observer = m.ObserveAssertion
	}
	return base.Apply(opts...)
}

// Expect asserts an arbitrary observable of the page.
func (s *Session) Expect(ctx context.Context, o expect.Observable, m expect.Matcher, opts ...expect.Option) error {
	if err := s.ready(); err != nil {
		return err
	}
	return expect.Assert(ctx, expect.Check{Subject: expect.PageSubject(s.page), Observable: o, Matcher: m}, s.expectOptions(opts...))
}

// ExpectURL asserts the page URL.
func (s *Session) ExpectURL(ctx context.Context, m expect.Matcher, opts ...expect.Option) error {
	return s.Expect(ctx, expect.URL(), m, opts...)
}

// ExpectTitle asserts the document title.
func (s *Session) ExpectTitle(ctx context.Context, m expect.Matcher, opts ...expect.Option) error {
	return s.Expect(ctx, expect.Title(), m, opts...)
}

// Locate binds loc to this session. Nothing is resolved until the handle is used.
func (s *Session) Locate(loc locator.Locator) *Handle {
	return &Handle{s: s, loc: loc}
}

// Close releases the page. Calling Close more than once is safe.
func (s *Session) Close() error {
	if s.state == Closed {
		return nil
	}
	s.state = Closed
	if err := s.page.Close(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close session %s: %w", s.id, err)
	}
	return nil
}
