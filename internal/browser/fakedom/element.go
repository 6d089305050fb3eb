package fakedom

import (
	"context"
	"fmt"

	"golang.org/x/net/html"

	"github.com/kuitang/uicheck/internal/browser"
)

type element struct {
	page *Page
	node *html.Node
}

var _ browser.Element = (*element)(nil)

func (e *element) check(ctx context.Context) error {
	if err := e.page.check(ctx); err != nil {
		return err
	}
	if !e.page.attached(e.node) {
		return browser.ErrDetached
	}
	return nil
}

func (e *element) enabled() bool {
	for c := e.control(); c != nil && c.Type == html.ElementNode; c = c.Parent {
		if hasAttr(c, "disabled") && (isControl(c) || c.Data == "fieldset") {
			return false
		}
		if v, ok := attr(c, "aria-disabled"); ok && v == "true" {
			return false
		}
	}
	return true
}

// actionable waits for nothing: a hidden or disabled target fails immediately.
func (e *element) actionable(ctx context.Context) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	if !e.page.visible(e.node) {
		return fmt.Errorf("%w: <%s> is not visible", browser.ErrNotInteractable, e.node.Data)
	}
	if !e.enabled() {
		return fmt.Errorf("%w: <%s> is disabled", browser.ErrNotInteractable, e.node.Data)
	}
	return nil
}

// control maps a label to the form control it names, as actions and state
// reads on a label apply to its control.
func (e *element) control() *html.Node {
	if e.node.Data == "label" {
		if c := labelControl(e.page.root(), e.node); c != nil {
			return c
		}
	}
	return e.node
}

func focusable(n *html.Node) bool {
	if hasAttr(n, "tabindex") {
		return true
	}
	switch n.Data {
	case "input", "textarea", "select", "button":
		return true
	case "a":
		return hasAttr(n, "href")
	}
	return false
}

func (e *element) focusTarget() *html.Node {
	for c := e.node; c != nil && c.Type == html.ElementNode; c = c.Parent {
		if focusable(c) {
			return c
		}
	}
	return nil
}

func (e *element) Click(ctx context.Context, opts browser.ClickOptions) error {
	if err := e.actionable(ctx); err != nil {
		return err
	}
	p := e.page
	p.focus(e.focusTarget())
	if !p.attached(e.node) {
		return nil
	}

	ev := Event{Button: opts.Button, Position: opts.Position}
	switch opts.Button {
	case browser.ButtonRight:
		ev.Type = "contextmenu"
		p.dispatch(ev, e.node)
		return nil
	case browser.ButtonMiddle:
		ev.Type = "auxclick"
		p.dispatch(ev, e.node)
		return nil
	}
	ev.Button = browser.ButtonLeft
	ev.Type = "click"
	return e.leftClick(ev)
}

func (e *element) leftClick(ev Event) error {
	p := e.page
	n := e.node
	if n.Data == "input" {
		switch inputType(n) {
		case "checkbox":
			toggleChecked(n)
		case "radio":
			checkRadio(p, n)
		}
	}
	p.dispatch(ev, n)
	if n.Data == "input" && (inputType(n) == "checkbox" || inputType(n) == "radio") && p.attached(n) {
		p.dispatch(Event{Type: "change"}, n)
	}
	if n.Data == "label" && p.attached(n) {
		if c := labelControl(p.root(), n); c != nil && c != n && p.attached(c) {
			ctl := &element{page: p, node: c}
			if ctl.enabled() {
				return ctl.leftClick(Event{Type: "click", Button: browser.ButtonLeft})
			}
			return nil
		}
	}
	for c := n; c != nil && c.Type == html.ElementNode; c = c.Parent {
		if c.Data == "a" {
			if href, ok := attr(c, "href"); ok && href != "" && href[0] != '#' {
				return p.Navigate(href)
			}
		}
	}
	return nil
}

func toggleChecked(n *html.Node) {
	if hasAttr(n, "checked") {
		removeAttr(n, "checked")
	} else {
		setAttr(n, "checked", "")
	}
}

func checkRadio(p *Page, n *html.Node) {
	name, _ := attr(n, "name")
	if name != "" {
		eachElement(p.root(), func(o *html.Node) {
			if o != n && o.Data == "input" && inputType(o) == "radio" {
				if on, _ := attr(o, "name"); on == name {
					removeAttr(o, "checked")
				}
			}
		})
	}
	setAttr(n, "checked", "")
}

func (e *element) DoubleClick(ctx context.Context) error {
	if err := e.actionable(ctx); err != nil {
		return err
	}
	p := e.page
	p.focus(e.focusTarget())
	for range 2 {
		if !p.attached(e.node) {
			return nil
		}
		if err := e.leftClick(Event{Type: "click", Button: browser.ButtonLeft}); err != nil {
			return err
		}
	}
	if p.attached(e.node) {
		p.dispatch(Event{Type: "dblclick", Button: browser.ButtonLeft}, e.node)
	}
	return nil
}

func (e *element) Fill(ctx context.Context, text string) error {
	if err := e.actionable(ctx); err != nil {
		return err
	}
	n := e.control()
	switch {
	case n.Data == "textarea", n.Data == "input" && roleOf(n) == "textbox",
		n.Data == "input" && inputType(n) == "number":
	default:
		return fmt.Errorf("%w: <%s> cannot be filled", browser.ErrNotInteractable, n.Data)
	}
	p := e.page
	p.focus(n)
	setAttr(n, "value", text)
	p.dispatch(Event{Type: "input"}, n)
	if p.attached(n) {
		p.dispatch(Event{Type: "change"}, n)
	}
	return nil
}

func (e *element) SetChecked(ctx context.Context, checked bool) error {
	if err := e.actionable(ctx); err != nil {
		return err
	}
	n := e.control()
	if n.Data != "input" || (inputType(n) != "checkbox" && inputType(n) != "radio") {
		return fmt.Errorf("%w: <%s> is not a checkbox or radio", browser.ErrNotInteractable, n.Data)
	}
	if hasAttr(n, "checked") == checked {
		return nil
	}
	if !checked && inputType(n) == "radio" {
		return fmt.Errorf("%w: cannot uncheck a radio button", browser.ErrNotInteractable)
	}
	e.page.focus(n)
	target := &element{page: e.page, node: n}
	if err := target.leftClick(Event{Type: "click", Button: browser.ButtonLeft}); err != nil {
		return err
	}
	if hasAttr(n, "checked") != checked {
		return fmt.Errorf("fakedom: clicking the checkbox did not change its state")
	}
	return nil
}

func (e *element) DragTo(ctx context.Context, target browser.Element) error {
	if err := e.actionable(ctx); err != nil {
		return err
	}
	t, ok := target.(*element)
	if !ok || t.page != e.page {
		return fmt.Errorf("fakedom: drag target belongs to another page")
	}
	if err := t.actionable(ctx); err != nil {
		return err
	}
	p := e.page
	src := p.doc.FindNodes(e.node)
	p.dispatch(Event{Type: "dragstart"}, e.node)
	if p.attached(t.node) {
		p.dispatch(Event{Type: "drop", Related: src}, t.node)
	}
	if p.attached(e.node) {
		p.dispatch(Event{Type: "dragend"}, e.node)
	}
	return nil
}

func (e *element) ScrollIntoView(ctx context.Context) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	p := e.page
	vp := browser.Rect{Width: p.vpW, Height: p.vpH}
	r := p.viewportRect(e.node)
	if isFixed(e.node) || browser.IntersectionRatio(r, vp) >= 1 {
		return nil
	}
	doc := docRect(e.node)
	p.scrollTo(p.scrollX, doc.Y)
	return nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	if err := e.check(ctx); err != nil {
		return "", err
	}
	return textContent(e.node), nil
}

func (e *element) Value(ctx context.Context) (string, error) {
	if err := e.check(ctx); err != nil {
		return "", err
	}
	n := e.control()
	switch n.Data {
	case "input":
		v, ok := attr(n, "value")
		if !ok && (inputType(n) == "checkbox" || inputType(n) == "radio") {
			return "on", nil
		}
		return v, nil
	case "textarea":
		if v, ok := attr(n, "value"); ok {
			return v, nil
		}
		return textContent(n), nil
	case "select":
		var v string
		first, selected := true, false
		eachElement(n, func(o *html.Node) {
			if o.Data != "option" || selected {
				return
			}
			if first || hasAttr(o, "selected") {
				v = optionValue(o)
				first = false
				selected = hasAttr(o, "selected")
			}
		})
		return v, nil
	}
	return "", fmt.Errorf("fakedom: <%s> has no value", n.Data)
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	if err := e.check(ctx); err != nil {
		return "", false, err
	}
	v, ok := attr(e.node, name)
	return v, ok, nil
}

func (e *element) ComputedStyle(ctx context.Context, property string) (string, error) {
	if err := e.check(ctx); err != nil {
		return "", err
	}
	return e.page.computedStyle(e.node, property), nil
}

func (e *element) Visible(ctx context.Context) (bool, error) {
	if err := e.check(ctx); err != nil {
		return false, err
	}
	return e.page.visible(e.node), nil
}

func (e *element) Checked(ctx context.Context) (bool, error) {
	if err := e.check(ctx); err != nil {
		return false, err
	}
	n := e.control()
	if n.Data == "input" && (inputType(n) == "checkbox" || inputType(n) == "radio") {
		return hasAttr(n, "checked"), nil
	}
	if v, ok := attr(n, "aria-checked"); ok {
		return v == "true", nil
	}
	return false, fmt.Errorf("fakedom: <%s> is not checkable", n.Data)
}

func (e *element) Enabled(ctx context.Context) (bool, error) {
	if err := e.check(ctx); err != nil {
		return false, err
	}
	return e.enabled(), nil
}

func (e *element) Focused(ctx context.Context) (bool, error) {
	if err := e.check(ctx); err != nil {
		return false, err
	}
	return e.page.focused == e.node, nil
}

func (e *element) BoundingBox(ctx context.Context) (*browser.Rect, error) {
	if err := e.check(ctx); err != nil {
		return nil, err
	}
	if !e.page.visible(e.node) {
		return nil, nil
	}
	r := e.page.viewportRect(e.node)
	return &r, nil
}

func (e *element) Evaluate(ctx context.Context, script string, arg any) (any, error) {
	if err := e.check(ctx); err != nil {
		return nil, err
	}
	fn, ok := e.page.scripts[script]
	if !ok {
		return nil, fmt.Errorf("fakedom: no script registered for %q", script)
	}
	return fn(e.page, e.page.doc.FindNodes(e.node), arg)
}

func optionValue(o *html.Node) string {
	if v, ok := attr(o, "value"); ok {
		return v
	}
	return normalize(textContent(o))
}
