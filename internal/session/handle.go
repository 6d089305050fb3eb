package session

import (
	"context"
	"errors"
	"strconv"

	"github.com/kuitang/uicheck/internal/browser"
	"github.com/kuitang/uicheck/internal/errs"
	"github.com/kuitang/uicheck/internal/expect"
	"github.com/kuitang/uicheck/internal/locator"
	"github.com/kuitang/uicheck/internal/logutil"
)

// Handle is a locator bound to a session. It is re-resolved on every use.
type Handle struct {
	s   *Session
	loc locator.Locator
}

// Locator returns the bound locator.
func (h *Handle) Locator() locator.Locator { return h.loc }

func (h *Handle) String() string { return h.loc.String() }

// Resolve returns the current matches without waiting.
func (h *Handle) Resolve(ctx context.Context) ([]browser.Element, error) {
	if err := h.s.ready(); err != nil {
		return nil, err
	}
	if err := h.loc.Validate(); err != nil {
		return nil, err
	}
	els, err := h.s.page.Query(ctx, h.loc)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, "resolve "+h.loc.String(), err)
	}
	return els, nil
}

// ResolveOne waits until the locator matches exactly one element. After the
// timeout it reports LocatorNotFound or LocatorAmbiguous from the last read.
func (h *Handle) ResolveOne(ctx context.Context, opts ...expect.Option) (browser.Element, error) {
	if err := h.s.ready(); err != nil {
		return nil, err
	}
	if err := h.loc.Validate(); err != nil {
		return nil, err
	}
	var found browser.Element
	count := 0
	var lastErr error
	o := h.s.expectOptions(opts...)
	o.Negate = false
	o.Observer = nil
	out, err := expect.Poll(ctx, o, func(ctx context.Context) (bool, expect.Attempt) {
		els, err := h.s.page.Query(ctx, h.loc)
		if err != nil {
			lastErr = err
			return false, expect.Attempt{Err: err}
		}
		lastErr = nil
		count = len(els)
		if count == 1 {
			found = els[0]
			return true, expect.Attempt{}
		}
		return false, expect.Attempt{}
	})
	if err == nil {
		return found, nil
	}
	if !errors.Is(err, expect.ErrTimeout) {
		return nil, errs.Wrap(errs.InterruptCode(err, errs.LocatorNotFound), "resolve "+h.loc.String()+": interrupted", err)
	}
	diag := errs.Diagnostics{
		Subject:  h.loc.String(),
		Expected: "exactly one element",
		Attempts: out.Attempts,
	}
	switch {
	case lastErr != nil:
		return nil, errs.Wrap(errs.InvalidArgument, "resolve "+h.loc.String(), lastErr)
	case count == 0:
		diag.Observed = "0 elements"
		return nil, errs.WithDiagnostics(errs.LocatorNotFound, h.loc.String()+" matched no elements after "+out.Elapsed.String(), diag)
	default:
		diag.Observed = strconv.Itoa(count) + " elements"
		return nil, errs.WithDiagnostics(errs.LocatorAmbiguous, h.loc.String()+" matched "+strconv.Itoa(count)+" elements", diag)
	}
}

func (h *Handle) act(ctx context.Context, verb string, do func(el browser.Element) error) error {
	el, err := h.ResolveOne(ctx)
	if err != nil {
		return err
	}
	if err := do(el); err != nil {
		h.s.logger(ctx).Warn("action failed", "action", verb, "locator", h.loc.String(), "error", err)
		return errs.Wrap(errs.ActionFailed, verb+" "+h.loc.String(), err)
	}
	h.s.logger(ctx).Debug("action", "action", verb, "locator", h.loc.String())
	return nil
}

// Click clicks the element once.
func (h *Handle) Click(ctx context.Context, opts browser.ClickOptions) error {
	verb := "click"
	if opts.Button != "" && opts.Button != browser.ButtonLeft {
		verb = string(opts.Button) + " click"
	}
	return h.act(ctx, verb, func(el browser.Element) error { return el.Click(ctx, opts) })
}

// DoubleClick double-clicks the element.
func (h *Handle) DoubleClick(ctx context.Context) error {
	return h.act(ctx, "double click", func(el browser.Element) error { return el.DoubleClick(ctx) })
}

// Fill replaces the value of a text control.
func (h *Handle) Fill(ctx context.Context, text string) error {
	err := h.act(ctx, "fill", func(el browser.Element) error { return el.Fill(ctx, text) })
	if err == nil {
		h.s.logger(ctx).Debug("filled", "locator", h.loc.String(), "value", logutil.RedactFillValue(h.loc.String(), text))
	}
	return err
}

// Check checks a checkbox or radio.
func (h *Handle) Check(ctx context.Context) error {
	return h.act(ctx, "check", func(el browser.Element) error { return el.SetChecked(ctx, true) })
}

// Uncheck unchecks a checkbox.
func (h *Handle) Uncheck(ctx context.Context) error {
	return h.act(ctx, "uncheck", func(el browser.Element) error { return el.SetChecked(ctx, false) })
}

// DragTo drags this element onto target.
func (h *Handle) DragTo(ctx context.Context, target *Handle) error {
	dst, err := target.ResolveOne(ctx)
	if err != nil {
		return err
	}
	return h.act(ctx, "drag to "+target.loc.String(), func(el browser.Element) error { return el.DragTo(ctx, dst) })
}

// ScrollIntoView scrolls the element into the viewport if needed.
func (h *Handle) ScrollIntoView(ctx context.Context) error {
	return h.act(ctx, "scroll into view", func(el browser.Element) error { return el.ScrollIntoView(ctx) })
}

// Evaluate runs a script with the element as its first argument.
func (h *Handle) Evaluate(ctx context.Context, script string, arg any) (any, error) {
	var result any
	err := h.act(ctx, "evaluate", func(el browser.Element) error {
		v, err := el.Evaluate(ctx, script, arg)
		result = v
		return err
	})
	return result, err
}

// Expect asserts an arbitrary observable of the matched elements.
func (h *Handle) Expect(ctx context.Context, o expect.Observable, m expect.Matcher, opts ...expect.Option) error {
	if err := h.s.ready(); err != nil {
		return err
	}
	if err := h.loc.Validate(); err != nil {
		return err
	}
	c := expect.Check{Subject: expect.ElementSubject(h.s.page, h.loc), Observable: o, Matcher: m}
	return expect.Assert(ctx, c, h.s.expectOptions(opts...))
}

func (h *Handle) ExpectText(ctx context.Context, want string, opts ...expect.Option) error {
	return h.Expect(ctx, expect.Text(), expect.Equal(expect.NormalizeText(want)), opts...)
}

func (h *Handle) ExpectTexts(ctx context.Context, want []string, opts ...expect.Option) error {
	norm := make([]string, len(want))
	for i, w := range want {
		norm[i] = expect.NormalizeText(w)
	}
	return h.Expect(ctx, expect.Texts(), expect.List(norm...), opts...)
}

// ExpectClass asserts that the class list contains name.
func (h *Handle) ExpectClass(ctx context.Context, name string, opts ...expect.Option) error {
	return h.Expect(ctx, expect.Class(), expect.HasClass(name), opts...)
}

func (h *Handle) ExpectVisible(ctx context.Context, opts ...expect.Option) error {
	return h.Expect(ctx, expect.Visible(), expect.Bool(true), opts...)
}

func (h *Handle) ExpectInViewport(ctx context.Context, opts ...expect.Option) error {
	return h.Expect(ctx, expect.InViewport(), expect.Bool(true), opts...)
}

func (h *Handle) ExpectCSS(ctx context.Context, property, value string, opts ...expect.Option) error {
	return h.Expect(ctx, expect.CSS(property), expect.Equal(value), opts...)
}

func (h *Handle) ExpectChecked(ctx context.Context, opts ...expect.Option) error {
	return h.Expect(ctx, expect.Checked(), expect.Bool(true), opts...)
}

func (h *Handle) ExpectEnabled(ctx context.Context, opts ...expect.Option) error {
	return h.Expect(ctx, expect.Enabled(), expect.Bool(true), opts...)
}

func (h *Handle) ExpectFocused(ctx context.Context, opts ...expect.Option) error {
	return h.Expect(ctx, expect.Focused(), expect.Bool(true), opts...)
}

// ExpectValue compares the control value verbatim.
func (h *Handle) ExpectValue(ctx context.Context, want string, opts ...expect.Option) error {
	return h.Expect(ctx, expect.Value(), expect.Equal(want), opts...)
}

func (h *Handle) ExpectAttribute(ctx context.Context, name, want string, opts ...expect.Option) error {
	return h.Expect(ctx, expect.Attribute(name), expect.Equal(want), opts...)
}

func (h *Handle) ExpectCount(ctx context.Context, n int, opts ...expect.Option) error {
	return h.Expect(ctx, expect.Count(), expect.CountIs(n), opts...)
}
