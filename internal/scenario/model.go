// Package scenario loads declarative UI scenarios, runs each one in its own
// browser session, and reports per-scenario outcomes.
package scenario

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/uicheck/internal/browser"
	"github.com/kuitang/uicheck/internal/expect"
	"github.com/kuitang/uicheck/internal/jsnum"
	"github.com/kuitang/uicheck/internal/locator"
	"github.com/kuitang/uicheck/internal/logutil"
)

// Status is where a scenario is in its lifecycle.
type Status string

const (
	Idle     Status = "idle"
	Running  Status = "running"
	Passed   Status = "passed"
	Failed   Status = "failed"
	Errored  Status = "errored"
	TimedOut Status = "timed_out"
)

// Terminal reports whether s is a final status.
func (s Status) Terminal() bool {
	switch s {
	case Passed, Failed, Errored, TimedOut:
		return true
	}
	return false
}

// Kind tags the step variant.
type Kind string

const (
	KindNavigate       Kind = "navigate"
	KindWait           Kind = "wait"
	KindScroll         Kind = "scroll"
	KindEvaluate       Kind = "evaluate"
	KindClick          Kind = "click"
	KindDoubleClick    Kind = "dblclick"
	KindFill           Kind = "fill"
	KindCheck          Kind = "check"
	KindUncheck        Kind = "uncheck"
	KindScrollIntoView Kind = "scroll_into_view"
	KindDrag           Kind = "drag"
	KindExpect         Kind = "expect"
)

// Step is one instruction of a plan. Which fields are meaningful depends on Kind.
type Step struct {
	Kind Kind
	// Name is an optional human label from the scenario file.
	Name string
	// Line is the line of the step in its source file, 0 if unknown.
	Line int

	URL      string        // navigate
	Duration time.Duration // wait
	DX, DY   float64       // scroll
	Script   string        // evaluate

	Target locator.Locator      // element actions and element expectations
	Dest   locator.Locator      // drag
	Click  browser.ClickOptions // click
	Text   string               // fill

	Expect *Expectation
}

// Describe renders the step for reports and logs.
func (s Step) Describe() string {
	if s.Name != "" {
		return s.Name
	}
	switch s.Kind {
	case KindNavigate:
		return "navigate " + s.URL
	case KindWait:
		return "wait " + s.Duration.String()
	case KindScroll:
		return fmt.Sprintf("scroll by (%s, %s)", jsnum.Format(s.DX), jsnum.Format(s.DY))
	case KindEvaluate:
		return "evaluate " + s.Script
	case KindClick:
		if s.Click.Button != "" && s.Click.Button != browser.ButtonLeft {
			return string(s.Click.Button) + " click " + s.Target.String()
		}
		return "click " + s.Target.String()
	case KindFill:
		return fmt.Sprintf("fill %s with %q", s.Target, logutil.RedactFillValue(s.Target.String(), s.Text))
	case KindDrag:
		return "drag " + s.Target.String() + " to " + s.Dest.String()
	case KindExpect:
		if s.Expect == nil {
			return "expect"
		}
		if s.Expect.Observed.PageLevel() {
			return "expect page " + s.Expect.Describe()
		}
		return "expect " + s.Target.String() + " " + s.Expect.Describe()
	default:
		return string(s.Kind) + " " + s.Target.String()
	}
}

// Observed names what an expectation reads.
type Observed string

const (
	ObserveText       Observed = "text"
	ObserveTexts      Observed = "texts"
	ObserveClass      Observed = "class"
	ObserveVisible    Observed = "visible"
	ObserveInViewport Observed = "in_viewport"
	ObserveCSS        Observed = "css"
	ObserveChecked    Observed = "checked"
	ObserveEnabled    Observed = "enabled"
	ObserveFocused    Observed = "focused"
	ObserveValue      Observed = "value"
	ObserveAttribute  Observed = "attribute"
	ObserveCount      Observed = "count"
	ObserveURL        Observed = "url"
	ObserveTitle      Observed = "title"
)

// PageLevel reports whether o reads the page rather than an element.
func (o Observed) PageLevel() bool { return o == ObserveURL || o == ObserveTitle }

// MatchMode selects how a string expectation compares.
type MatchMode string

const (
	MatchEqual    MatchMode = "equal"
	MatchContains MatchMode = "contains"
	MatchRegexp   MatchMode = "regexp"
)

// Expectation is an assertion step.
type Expectation struct {
	Observed Observed
	// Property is the CSS property or attribute name.
	Property string
	Want     string
	Wants    []string
	Count    int
	Mode     MatchMode
	Negate   bool
	// Timeout overrides the session default when set.
	Timeout *time.Duration

	re *regexp.Regexp
}

// Observable maps the expectation onto the assertion engine.
func (e *Expectation) Observable() expect.Observable {
	switch e.Observed {
	case ObserveText:
		return expect.Text()
	case ObserveTexts:
		return expect.Texts()
	case ObserveClass:
		return expect.Class()
	case ObserveVisible:
		return expect.Visible()
	case ObserveInViewport:
		return expect.InViewport()
	case ObserveCSS:
		return expect.CSS(e.Property)
	case ObserveChecked:
		return expect.Checked()
	case ObserveEnabled:
		return expect.Enabled()
	case ObserveFocused:
		return expect.Focused()
	case ObserveValue:
		return expect.Value()
	case ObserveAttribute:
		return expect.Attribute(e.Property)
	case ObserveCount:
		return expect.Count()
	case ObserveURL:
		return expect.URL()
	case ObserveTitle:
		return expect.Title()
	}
	return nil
}

// Matcher builds the matcher for the expectation.
func (e *Expectation) Matcher() expect.Matcher {
	switch e.Observed {
	case ObserveTexts:
		wants := make([]string, len(e.Wants))
		for i, w := range e.Wants {
			wants[i] = expect.NormalizeText(w)
		}
		return expect.List(wants...)
	case ObserveClass:
		return expect.HasClass(e.Want)
	case ObserveVisible, ObserveInViewport, ObserveChecked, ObserveEnabled, ObserveFocused:
		return expect.Bool(true)
	case ObserveCount:
		return expect.CountIs(e.Count)
	}
	want := e.Want
	if e.Observed == ObserveText && e.Mode != MatchRegexp {
		want = expect.NormalizeText(want)
	}
	switch e.Mode {
	case MatchContains:
		return expect.Contains(want)
	case MatchRegexp:
		return expect.Regexp(e.re)
	default:
		return expect.Equal(want)
	}
}

// Options are the per-expectation poll overrides.
func (e *Expectation) Options() []expect.Option {
	var opts []expect.Option
	if e.Negate {
		opts = append(opts, expect.Not())
	}
	if e.Timeout != nil {
		opts = append(opts, expect.Within(*e.Timeout))
	}
	return opts
}

// Describe renders the expectation without its subject, e.g. `value "4006.656"`.
func (e *Expectation) Describe() string {
	var b strings.Builder
	if e.Negate {
		b.WriteString("not ")
	}
	b.WriteString(string(e.Observed))
	if e.Property != "" {
		b.WriteString(" " + e.Property)
	}
	switch e.Observed {
	case ObserveVisible, ObserveInViewport, ObserveChecked, ObserveEnabled, ObserveFocused:
	case ObserveCount:
		b.WriteString(" " + strconv.Itoa(e.Count))
	case ObserveClass:
		b.WriteString(" " + strconv.Quote(e.Want))
	default:
		b.WriteString(" " + e.Matcher().String())
	}
	return b.String()
}

// Plan is one runnable scenario: a scenario, or one case of a parameterised scenario.
type Plan struct {
	Name        string
	Description string
	// Source is the file the plan was loaded from.
	Source       string
	BaseURL      string
	Timeout      time.Duration
	PollInterval time.Duration
	// Budget bounds the wall-clock time of the whole scenario.
	Budget time.Duration
	Steps  []Step
}
