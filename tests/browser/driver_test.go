package browser

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/kuitang/uicheck/internal/browser"
	"github.com/kuitang/uicheck/internal/browser/fakedom"
	"github.com/kuitang/uicheck/internal/clock"
	"github.com/kuitang/uicheck/internal/errs"
	"github.com/kuitang/uicheck/internal/expect"
	"github.com/kuitang/uicheck/internal/locator"
	"github.com/kuitang/uicheck/internal/scenario"
)

func TestMain(m *testing.M) {
	code := m.Run()
	if driver != nil {
		_ = driver.Close()
	}
	os.Exit(code)
}

func TestNavigateAndTitle(t *testing.T) {
	sess := newSession(t)
	ctx := testContext(t)

	if err := sess.Navigate(ctx, "/"); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if err := sess.ExpectTitle(ctx, expect.Equal("Fixture Home")); err != nil {
		t.Fatalf("title: %v", err)
	}
	if err := sess.Locate(locator.ByRole("link", "Second page")).Click(ctx, browser.ClickOptions{}); err != nil {
		t.Fatalf("click link: %v", err)
	}
	if err := sess.ExpectURL(ctx, expect.Contains("/second.html")); err != nil {
		t.Fatalf("url: %v", err)
	}
}

func TestActionsAndExpectations(t *testing.T) {
	sess := newSession(t)
	ctx := testContext(t)
	if err := sess.Navigate(ctx, "/"); err != nil {
		t.Fatalf("navigate: %v", err)
	}

	toggle := sess.Locate(locator.ByCSS("#toggle"))
	if err := toggle.Click(ctx, browser.ClickOptions{}); err != nil {
		t.Fatalf("click: %v", err)
	}
	if err := toggle.ExpectText(ctx, "On"); err != nil {
		t.Fatalf("toggle text: %v", err)
	}

	name := sess.Locate(locator.ByLabel("Your name"))
	if err := name.Fill(ctx, "Ada"); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if err := name.ExpectValue(ctx, "Ada"); err != nil {
		t.Fatalf("value: %v", err)
	}
	if err := name.ExpectFocused(ctx); err != nil {
		t.Fatalf("focused: %v", err)
	}
	if err := name.ExpectAttribute(ctx, "placeholder", "Name"); err != nil {
		t.Fatalf("attribute: %v", err)
	}

	agree := sess.Locate(locator.ByCSS("#agree"))
	if err := agree.Check(ctx); err != nil {
		t.Fatalf("check: %v", err)
	}
	if err := agree.ExpectChecked(ctx); err != nil {
		t.Fatalf("checked: %v", err)
	}
	if err := sess.Locate(locator.ByCSS("#locked")).ExpectEnabled(ctx, expect.Not()); err != nil {
		t.Fatalf("disabled: %v", err)
	}

	items := sess.Locate(locator.ByRole("listitem", ""))
	if err := items.ExpectCount(ctx, 3); err != nil {
		t.Fatalf("count: %v", err)
	}
	if err := items.ExpectTexts(ctx, []string{"alpha", "beta", "gamma"}); err != nil {
		t.Fatalf("texts: %v", err)
	}
}

func TestPollingWaitsForLateElement(t *testing.T) {
	sess := newSession(t)
	ctx := testContext(t)
	if err := sess.Navigate(ctx, "/"); err != nil {
		t.Fatalf("navigate: %v", err)
	}

	late := sess.Locate(locator.ByCSS("#late"))
	if err := late.ExpectVisible(ctx, expect.Not()); err != nil {
		t.Fatalf("initially hidden: %v", err)
	}
	if err := sess.Locate(locator.ByText("Show later")).Click(ctx, browser.ClickOptions{}); err != nil {
		t.Fatalf("click: %v", err)
	}
	if err := late.ExpectVisible(ctx); err != nil {
		t.Fatalf("late element: %v", err)
	}
	if err := late.ExpectCSS(ctx, "color", "rgb(38, 251, 235)"); err != nil {
		t.Fatalf("color: %v", err)
	}
}

func TestHeaderHidesOnScroll(t *testing.T) {
	sess := newSession(t)
	ctx := testContext(t)
	if err := sess.Navigate(ctx, "/"); err != nil {
		t.Fatalf("navigate: %v", err)
	}

	header := sess.Locate(locator.ByCSS("header"))
	if err := sess.ScrollBy(ctx, 0, 200); err != nil {
		t.Fatalf("scroll: %v", err)
	}
	if err := header.ExpectClass(ctx, "nav-up"); err != nil {
		t.Fatalf("header up: %v", err)
	}
	if err := header.ExpectInViewport(ctx, expect.Not()); err != nil {
		t.Fatalf("header out of view: %v", err)
	}

	far := sess.Locate(locator.ByCSS("#far"))
	if err := far.ScrollIntoView(ctx); err != nil {
		t.Fatalf("scroll into view: %v", err)
	}
	if err := far.ExpectInViewport(ctx); err != nil {
		t.Fatalf("far in view: %v", err)
	}
}

func TestFailuresCarryCodes(t *testing.T) {
	sess := newSession(t)
	ctx := testContext(t)
	if err := sess.Navigate(ctx, "/"); err != nil {
		t.Fatalf("navigate: %v", err)
	}

	err := sess.Locate(locator.ByCSS("li")).Click(ctx, browser.ClickOptions{})
	if !errs.Is(err, errs.LocatorAmbiguous) {
		t.Fatalf("expected locator_ambiguous, got %v", err)
	}
	err = sess.Locate(locator.ByCSS("#missing")).Click(ctx, browser.ClickOptions{})
	if !errs.Is(err, errs.LocatorNotFound) {
		t.Fatalf("expected locator_not_found, got %v", err)
	}
	err = sess.Locate(locator.ByCSS("#toggle")).ExpectText(ctx, "Never", expect.Within(300*time.Millisecond))
	if !errs.Is(err, errs.AssertionTimeout) {
		t.Fatalf("expected assertion_timeout, got %v", err)
	}
	diag, ok := errs.DiagnosticsOf(err)
	if !ok || diag.Observed != `"Off"` {
		t.Fatalf("unexpected diagnostics %+v", diag)
	}
}

func TestRunnerOnPlaywright(t *testing.T) {
	d := sharedDriver(t)
	srv := fixtureServer(t)

	plans, err := scenario.Parse([]byte(`
scenarios:
  - name: Toggle and fill
    steps:
      - navigate: /
      - click: {role: button, name: "Off"}
      - expect: {css: "#toggle", to_have_text: "On"}
      - fill: {label: Your name, value: Grace}
      - expect: {label: Your name, to_have_value: Grace}
  - name: Wrong title
    timeout: 300ms
    steps:
      - navigate: /
      - expect: {to_have_title: Nope}
`), "fixture.yaml")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	runner, err := scenario.NewRunner(scenario.Options{
		Provider:       d,
		BaseURL:        srv.URL + "/",
		Timeout:        browserMaxTimeout / 2,
		PollInterval:   browserPoll,
		Budget:         4 * browserMaxTimeout,
		Parallelism:    2,
		ViewportWidth:  1280,
		ViewportHeight: 720,
	})
	if err != nil {
		t.Fatalf("runner: %v", err)
	}
	report := runner.Run(context.Background(), plans)
	if got := report.Outcomes[0].Status; got != scenario.Passed {
		t.Fatalf("first scenario: %s (%s)", got, report.Outcomes[0].Error)
	}
	if got := report.Outcomes[1]; got.Status != scenario.Failed || got.Code != errs.AssertionTimeout {
		t.Fatalf("second scenario: %s %s", got.Status, got.Code)
	}
}

func TestTextMatchingAgreesWithFakeDOM(t *testing.T) {
	sess := newSession(t)
	ctx := testContext(t)
	if err := sess.Navigate(ctx, "/"); err != nil {
		t.Fatalf("navigate: %v", err)
	}

	fake := fakedom.New(clock.NewFake(time.Unix(0, 0)))
	fake.Handle("http://fixture.test/", fakedom.Site{HTML: fixturePages["/{$}"]})
	fakePage, err := fake.NewPage(ctx, browser.PageOptions{})
	if err != nil {
		t.Fatalf("fake page: %v", err)
	}
	defer func() { _ = fakePage.Close() }()
	if err := fakePage.Goto(ctx, "http://fixture.test/"); err != nil {
		t.Fatalf("fake navigate: %v", err)
	}

	li := locator.ByCSS("li")
	cases := []struct {
		name string
		loc  locator.Locator
		want int
	}{
		{"text", locator.ByText("alpha"), 1},
		{"text wrong case", locator.ByText("ALPHA"), 0},
		{"text collapses whitespace", locator.ByText("I  agree"), 1},
		{"role name", locator.ByRole("link", "Second"), 1},
		{"role name wrong case", locator.ByRole("link", "second page"), 0},
		{"label", locator.ByLabel("Your"), 1},
		{"label wrong case", locator.ByLabel("your name"), 0},
		{"has text", li.Filter(locator.Filter{HasText: "beta"}), 1},
		{"has text wrong case", li.Filter(locator.Filter{HasText: "Beta"}), 0},
		{"has not text wrong case", li.Filter(locator.Filter{HasNotText: "BETA"}), 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pw, err := sess.Page().Query(ctx, tc.loc)
			if err != nil {
				t.Fatalf("playwright query: %v", err)
			}
			faked, err := fakePage.Query(ctx, tc.loc)
			if err != nil {
				t.Fatalf("fakedom query: %v", err)
			}
			if len(pw) != tc.want || len(faked) != tc.want {
				t.Fatalf("%s: playwright=%d fakedom=%d, want %d", tc.loc, len(pw), len(faked), tc.want)
			}
		})
	}
}
