package expect

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/uicheck/internal/browser"
	"github.com/kuitang/uicheck/internal/browser/fakedom"
	"github.com/kuitang/uicheck/internal/clock"
	"github.com/kuitang/uicheck/internal/errs"
	"github.com/kuitang/uicheck/internal/locator"
)

type constObservable struct {
	values []string
	err    error
	reads  int
}

func (c *constObservable) Name() string { return "const" }

func (c *constObservable) Observe(context.Context, Subject) ([]string, error) {
	c.reads++
	return c.values, c.err
}

func fakeOpts(clk *clock.Fake, timeout time.Duration) Options {
	return Options{Timeout: timeout, Interval: 100 * time.Millisecond, Clock: clk}
}

func TestPollFirstAttemptImmediate(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	out, err := Poll(context.Background(), fakeOpts(clk, time.Second), func(context.Context) (bool, Attempt) {
		return true, Attempt{}
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Attempts)
	assert.Zero(t, out.Elapsed)
}

func TestPollZeroTimeoutSingleAttempt(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	out, err := Poll(context.Background(), fakeOpts(clk, 0), func(context.Context) (bool, Attempt) {
		return false, Attempt{Observed: []string{"x"}}
	})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, []string{"x"}, out.Last.Observed)
}

func TestPollSleepsIntervalCappedByRemaining(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	opts := Options{Timeout: time.Second, Interval: 300 * time.Millisecond, Clock: clk}
	var at []time.Duration
	start := clk.Now()
	out, err := Poll(context.Background(), opts, func(context.Context) (bool, Attempt) {
		at = append(at, clk.Now().Sub(start))
		return false, Attempt{}
	})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, []time.Duration{0, 300 * time.Millisecond, 600 * time.Millisecond, 900 * time.Millisecond, time.Second}, at)
	assert.Equal(t, 5, out.Attempts)
	assert.Equal(t, time.Second, out.Elapsed)
}

func TestPollContextCancelled(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())
	_, err := Poll(ctx, fakeOpts(clk, time.Minute), func(context.Context) (bool, Attempt) {
		cancel()
		return false, Attempt{}
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPollObserver(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	var gotAttempts int
	var gotTimeout bool
	opts := fakeOpts(clk, 250*time.Millisecond)
	opts.Observer = func(n int, timedOut bool) { gotAttempts, gotTimeout = n, timedOut }
	_, _ = Poll(context.Background(), opts, func(context.Context) (bool, Attempt) { return false, Attempt{} })
	assert.Equal(t, 4, gotAttempts)
	assert.True(t, gotTimeout)
}

func TestAssertNegationIsComplement(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		observed := rapid.SliceOfN(rapid.StringMatching(`[a-c]{0,2}`), 0, 3).Draw(t, "observed")
		want := rapid.StringMatching(`[a-c]{0,2}`).Draw(t, "want")
		m := Equal(want)
		holds := m.Match(observed)

		clk := clock.NewFake(time.Unix(0, 0))
		obs := &constObservable{values: observed}
		c := Check{Observable: obs, Matcher: m}
		pos := Assert(context.Background(), c, fakeOpts(clk, 0))
		neg := Assert(context.Background(), c, fakeOpts(clk, 0).Apply(Not()))

		if (pos == nil) != holds {
			t.Fatalf("positive assertion = %v, matcher holds = %v", pos, holds)
		}
		if (neg == nil) == (pos == nil) {
			t.Fatalf("negated assertion must be the complement: pos=%v neg=%v", pos, neg)
		}
	})
}

func TestAssertIdempotentOnStableObservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		value := rapid.StringMatching(`[a-z ]{0,8}`).Draw(t, "value")
		clk := clock.NewFake(time.Unix(0, 0))
		c := Check{Observable: &constObservable{values: []string{value}}, Matcher: Equal(value)}
		for i := 0; i < 3; i++ {
			if err := Assert(context.Background(), c, fakeOpts(clk, time.Second)); err != nil {
				t.Fatalf("attempt %d: %v", i, err)
			}
		}
	})
}

func TestAssertReadErrorSatisfiesNeitherPolarity(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	obs := &constObservable{err: errs.New(errs.LocatorNotFound, "gone")}
	c := Check{Observable: obs, Matcher: Equal("x")}

	err := Assert(context.Background(), c, fakeOpts(clk, 300*time.Millisecond))
	require.Error(t, err)
	assert.Equal(t, errs.AssertionTimeout, errs.CodeOf(err))
	diag, ok := errs.DiagnosticsOf(err)
	require.True(t, ok)
	assert.Equal(t, "error: gone", diag.Observed)
	assert.Equal(t, 4, diag.Attempts)

	err = Assert(context.Background(), c, fakeOpts(clk, 300*time.Millisecond).Apply(Not()))
	require.Error(t, err)
	diag, ok = errs.DiagnosticsOf(err)
	require.True(t, ok)
	assert.Equal(t, `not "x"`, diag.Expected)
}

func TestAssertInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	clk := clock.NewFake(time.Unix(0, 0))
	c := Check{Observable: &constObservable{values: []string{"a"}}, Matcher: Equal("b")}
	err := Assert(ctx, c, fakeOpts(clk, time.Second))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, errs.Canceled, errs.CodeOf(err))
	assert.False(t, errs.IsFailure(errs.CodeOf(err)))
}

func TestAssertDeadlineKeepsAssertionCode(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	clk := clock.NewFake(time.Unix(0, 0))
	opts := fakeOpts(clk, time.Second)
	opts.Clock = sleepErrClock{clk, context.DeadlineExceeded}
	c := Check{Observable: &constObservable{values: []string{"a"}}, Matcher: Equal("b")}
	err := Assert(ctx, c, opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, errs.AssertionTimeout, errs.CodeOf(err))
}

// sleepErrClock fails every Sleep with err.
type sleepErrClock struct {
	*clock.Fake
	err error
}

func (c sleepErrClock) Sleep(context.Context, time.Duration) error { return c.err }

func TestMatchers(t *testing.T) {
	tests := []struct {
		name     string
		m        Matcher
		observed []string
		want     bool
	}{
		{"equal", Equal("a"), []string{"a"}, true},
		{"equal needs one value", Equal("a"), []string{"a", "a"}, false},
		{"equal empty never matches absent", Equal(""), []string{}, false},
		{"list", List("a", "b"), []string{"a", "b"}, true},
		{"list order matters", List("a", "b"), []string{"b", "a"}, false},
		{"empty list", List(), []string{}, true},
		{"contains", Contains("ell"), []string{"hello"}, true},
		{"regexp", Regexp(regexp.MustCompile(`^\d+$`)), []string{"42"}, true},
		{"class token", HasClass("dark"), []string{"box dark wide"}, true},
		{"class token is not a substring", HasClass("dar"), []string{"box dark"}, false},
		{"count", CountIs(3), []string{"3"}, true},
		{"bool", Bool(false), []string{"false"}, true},
		{"zero matcher", Matcher{}, []string{"x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.m.Match(tt.observed))
		})
	}
}

func TestFormatObserved(t *testing.T) {
	assert.Equal(t, `"a b"`, FormatObserved([]string{"a b"}))
	assert.Equal(t, `["a", "b"]`, FormatObserved([]string{"a", "b"}))
	assert.Equal(t, `[]`, FormatObserved(nil))
}

const widgetHTML = `<html><head><title>Widgets</title></head><body>
<div id="status" class="panel">Loading</div>
<span class="tag">one</span><span class="tag">two</span>
<input id="name" value="  spaced  ">
<a id="plain">no href</a>
<div id="gone" hidden>Hidden</div>
</body></html>`

func widgetPage(t *testing.T) (*fakedom.Page, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Unix(0, 0))
	b := fakedom.New(clk)
	b.Handle("http://widgets.test/", fakedom.Site{
		HTML: widgetHTML,
		Setup: func(p *fakedom.Page) {
			p.After(3000*time.Millisecond, func(p *fakedom.Page) {
				p.Find("#status").SetText("Ready").AddClass("done")
			})
		},
	})
	pg, err := b.NewPage(context.Background(), browser.PageOptions{})
	require.NoError(t, err)
	require.NoError(t, pg.Goto(context.Background(), "http://widgets.test/"))
	t.Cleanup(func() { _ = pg.Close() })
	return pg.(*fakedom.Page), clk
}

func TestAssertWaitsForDelayedText(t *testing.T) {
	p, clk := widgetPage(t)
	ctx := context.Background()
	c := Check{Subject: ElementSubject(p, locator.ByCSS("#status")), Observable: Text(), Matcher: Equal("Ready")}

	err := Assert(ctx, c, fakeOpts(clk, 2*time.Second))
	require.Error(t, err)
	diag, ok := errs.DiagnosticsOf(err)
	require.True(t, ok)
	assert.Equal(t, `"Loading"`, diag.Observed)
	assert.Equal(t, "css=#status text", diag.Subject)
	assert.Contains(t, err.Error(), `expected css=#status text to be "Ready"`)

	require.NoError(t, Assert(ctx, c, fakeOpts(clk, 5*time.Second)))
	cls := Check{Subject: c.Subject, Observable: Class(), Matcher: HasClass("done")}
	require.NoError(t, Assert(ctx, cls, fakeOpts(clk, 0)))
}

func TestObservables(t *testing.T) {
	p, clk := widgetPage(t)
	ctx := context.Background()
	opts := fakeOpts(clk, 0)
	el := func(css string) Subject { return ElementSubject(p, locator.ByCSS(css)) }

	checks := []Check{
		{el(".tag"), Texts(), List("one", "two")},
		{el(".tag"), Count(), CountIs(2)},
		{el(".missing"), Count(), CountIs(0)},
		{el(".missing"), Visible(), Bool(false)},
		{el("#gone"), Visible(), Bool(false)},
		{el("#status"), Visible(), Bool(true)},
		{el("#status"), InViewport(), Bool(true)},
		{el("#name"), Value(), Equal("  spaced  ")},
		{el("#name"), Enabled(), Bool(true)},
		{el("#name"), Focused(), Bool(false)},
		{el("#name"), Attribute("id"), Equal("name")},
		{el("#status"), CSS("background-color"), Equal("rgba(0, 0, 0, 0)")},
		{PageSubject(p), URL(), Equal("http://widgets.test/")},
		{PageSubject(p), Title(), Equal("Widgets")},
	}
	for _, c := range checks {
		t.Run(c.Subject.String()+" "+c.Observable.Name(), func(t *testing.T) {
			assert.NoError(t, Assert(ctx, c, opts))
		})
	}

	absent := Check{el("#plain"), Attribute("href"), Equal("")}
	assert.Error(t, Assert(ctx, absent, opts), "absent attribute never equals the empty string")

	ambiguous := Check{el(".tag"), Text(), Equal("one")}
	err := Assert(ctx, ambiguous, opts)
	require.Error(t, err)
	diag, ok := errs.DiagnosticsOf(err)
	require.True(t, ok)
	assert.Contains(t, diag.Observed, "matched 2 elements")
}
