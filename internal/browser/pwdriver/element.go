package pwdriver

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/uicheck/internal/browser"
)

type element struct {
	p     *page
	base  playwright.Locator
	index int
	loc   playwright.Locator
}

// ready fails with ErrDetached once the query no longer has an index-th match.
func (e *element) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := e.base.Count()
	if err != nil {
		return err
	}
	if n <= e.index {
		return browser.ErrDetached
	}
	return nil
}

func (e *element) actionTimeout(ctx context.Context) *float64 {
	return playwright.Float(ms(e.p.timeout(ctx, e.p.d.opts.ActionTimeout)))
}

func (e *element) Click(ctx context.Context, opts browser.ClickOptions) error {
	if err := e.ready(ctx); err != nil {
		return err
	}
	co := playwright.LocatorClickOptions{Timeout: e.actionTimeout(ctx)}
	switch opts.Button {
	case browser.ButtonRight:
		co.Button = playwright.MouseButtonRight
	case browser.ButtonMiddle:
		co.Button = playwright.MouseButtonMiddle
	}
	if opts.Position != nil {
		co.Position = &playwright.Position{X: opts.Position.X, Y: opts.Position.Y}
	}
	return actionError(e.loc.Click(co))
}

func (e *element) DoubleClick(ctx context.Context) error {
	if err := e.ready(ctx); err != nil {
		return err
	}
	return actionError(e.loc.Dblclick(playwright.LocatorDblclickOptions{Timeout: e.actionTimeout(ctx)}))
}

func (e *element) Fill(ctx context.Context, text string) error {
	if err := e.ready(ctx); err != nil {
		return err
	}
	return actionError(e.loc.Fill(text, playwright.LocatorFillOptions{Timeout: e.actionTimeout(ctx)}))
}

func (e *element) SetChecked(ctx context.Context, checked bool) error {
	if err := e.ready(ctx); err != nil {
		return err
	}
	return actionError(e.loc.SetChecked(checked, playwright.LocatorSetCheckedOptions{Timeout: e.actionTimeout(ctx)}))
}

func (e *element) DragTo(ctx context.Context, target browser.Element) error {
	dst, ok := target.(*element)
	if !ok || dst.p != e.p {
		return fmt.Errorf("%w: drag target belongs to another page", browser.ErrNotInteractable)
	}
	if err := e.ready(ctx); err != nil {
		return err
	}
	if err := dst.ready(ctx); err != nil {
		return err
	}
	return actionError(e.loc.DragTo(dst.loc, playwright.LocatorDragToOptions{Timeout: e.actionTimeout(ctx)}))
}

func (e *element) ScrollIntoView(ctx context.Context) error {
	if err := e.ready(ctx); err != nil {
		return err
	}
	return actionError(e.loc.ScrollIntoViewIfNeeded(playwright.LocatorScrollIntoViewIfNeededOptions{Timeout: e.actionTimeout(ctx)}))
}

// Reads use a short timeout: the element was just counted, so a read that
// blocks means it went away.
const readTimeout = 1000 * time.Millisecond

func (e *element) eval(ctx context.Context, script string, arg any) (any, error) {
	if err := e.ready(ctx); err != nil {
		return nil, err
	}
	v, err := e.loc.Evaluate(script, arg, playwright.LocatorEvaluateOptions{
		Timeout: playwright.Float(ms(e.p.timeout(ctx, readTimeout))),
	})
	return v, actionError(err)
}

func (e *element) str(ctx context.Context, script string, arg any) (string, error) {
	v, err := e.eval(ctx, script, arg)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected a string, got %T", v)
	}
	return s, nil
}

func (e *element) flag(ctx context.Context, script string) (bool, error) {
	v, err := e.eval(ctx, script, nil)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("expected a boolean, got %T", v)
	}
	return b, nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	return e.str(ctx, "el => el.textContent", nil)
}

func (e *element) Value(ctx context.Context) (string, error) {
	return e.str(ctx, "el => ('value' in el) ? String(el.value) : ''", nil)
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, err := e.eval(ctx, "(el, name) => el.getAttribute(name)", name)
	if err != nil || v == nil {
		return "", false, err
	}
	s, ok := v.(string)
	if !ok {
		return "", false, fmt.Errorf("expected a string, got %T", v)
	}
	return s, true, nil
}

func (e *element) ComputedStyle(ctx context.Context, property string) (string, error) {
	return e.str(ctx, "(el, prop) => getComputedStyle(el).getPropertyValue(prop)", property)
}

func (e *element) Visible(ctx context.Context) (bool, error) {
	if err := e.ready(ctx); err != nil {
		return false, err
	}
	v, err := e.loc.IsVisible()
	return v, actionError(err)
}

func (e *element) Checked(ctx context.Context) (bool, error) {
	return e.flag(ctx, "el => el.checked === true || el.getAttribute('aria-checked') === 'true'")
}

func (e *element) Enabled(ctx context.Context) (bool, error) {
	if err := e.ready(ctx); err != nil {
		return false, err
	}
	v, err := e.loc.IsEnabled(playwright.LocatorIsEnabledOptions{
		Timeout: playwright.Float(ms(e.p.timeout(ctx, readTimeout))),
	})
	return v, actionError(err)
}

func (e *element) Focused(ctx context.Context) (bool, error) {
	return e.flag(ctx, "el => el === document.activeElement")
}

func (e *element) BoundingBox(ctx context.Context) (*browser.Rect, error) {
	if err := e.ready(ctx); err != nil {
		return nil, err
	}
	box, err := e.loc.BoundingBox(playwright.LocatorBoundingBoxOptions{
		Timeout: playwright.Float(ms(e.p.timeout(ctx, readTimeout))),
	})
	if err != nil {
		return nil, actionError(err)
	}
	if box == nil {
		return nil, nil
	}
	return &browser.Rect{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height}, nil
}

func (e *element) Evaluate(ctx context.Context, script string, arg any) (any, error) {
	return e.eval(ctx, script, arg)
}
