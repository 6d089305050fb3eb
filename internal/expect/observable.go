package expect

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kuitang/uicheck/internal/browser"
	"github.com/kuitang/uicheck/internal/errs"
	"github.com/kuitang/uicheck/internal/locator"
)

// Subject is what an observable reads from: a page, and for element
// observables a locator resolved against it on every read.
type Subject struct {
	Page    browser.Page
	Locator *locator.Locator
}

// PageSubject targets the page itself.
func PageSubject(p browser.Page) Subject { return Subject{Page: p} }

// ElementSubject targets the elements matched by loc.
func ElementSubject(p browser.Page, loc locator.Locator) Subject {
	return Subject{Page: p, Locator: &loc}
}

func (s Subject) String() string {
	if s.Locator == nil {
		return "page"
	}
	return s.Locator.String()
}

// Observable is a named, re-readable property of a subject.
type Observable interface {
	Name() string
	Observe(ctx context.Context, s Subject) ([]string, error)
}

type observable struct {
	name string
	read func(ctx context.Context, s Subject) ([]string, error)
}

func (o observable) Name() string { return o.name }

func (o observable) Observe(ctx context.Context, s Subject) ([]string, error) {
	if s.Page == nil {
		return nil, errs.New(errs.Internal, "observable has no page")
	}
	return o.read(ctx, s)
}

// NormalizeText collapses runs of whitespace and trims, matching how text
// assertions compare rendered text.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func resolve(ctx context.Context, s Subject) ([]browser.Element, error) {
	if s.Locator == nil {
		return nil, errs.New(errs.InvalidArgument, "element observable used without a locator")
	}
	return s.Page.Query(ctx, *s.Locator)
}

// one resolves the subject to exactly one element.
func one(ctx context.Context, s Subject) (browser.Element, error) {
	els, err := resolve(ctx, s)
	if err != nil {
		return nil, err
	}
	switch len(els) {
	case 0:
		return nil, errs.Newf(errs.LocatorNotFound, "%s matched no elements", s)
	case 1:
		return els[0], nil
	default:
		return nil, errs.Newf(errs.LocatorAmbiguous, "%s matched %d elements", s, len(els))
	}
}

func element(name string, read func(ctx context.Context, el browser.Element) (string, error)) Observable {
	return observable{
		name: name,
		read: func(ctx context.Context, s Subject) ([]string, error) {
			el, err := one(ctx, s)
			if err != nil {
				return nil, err
			}
			v, err := read(ctx, el)
			if err != nil {
				return nil, err
			}
			return []string{v}, nil
		},
	}
}

func flag(name string, read func(ctx context.Context, el browser.Element) (bool, error)) Observable {
	return element(name, func(ctx context.Context, el browser.Element) (string, error) {
		v, err := read(ctx, el)
		if err != nil {
			return "", err
		}
		return strconv.FormatBool(v), nil
	})
}

// Text is the whitespace-normalised text content of a single element.
func Text() Observable {
	return element("text", func(ctx context.Context, el browser.Element) (string, error) {
		raw, err := el.Text(ctx)
		return NormalizeText(raw), err
	})
}

// Texts is the normalised text of every matched element, in document order.
func Texts() Observable {
	return observable{
		name: "texts",
		read: func(ctx context.Context, s Subject) ([]string, error) {
			els, err := resolve(ctx, s)
			if err != nil {
				return nil, err
			}
			out := make([]string, 0, len(els))
			for _, el := range els {
				raw, err := el.Text(ctx)
				if err != nil {
					return nil, err
				}
				out = append(out, NormalizeText(raw))
			}
			return out, nil
		},
	}
}

// Class is the class attribute of a single element; absent reads as empty.
func Class() Observable {
	return element("class", func(ctx context.Context, el browser.Element) (string, error) {
		v, _, err := el.Attribute(ctx, "class")
		return v, err
	})
}

// Visible reports visibility. A locator with no matches is not visible.
func Visible() Observable {
	return observable{
		name: "visible",
		read: func(ctx context.Context, s Subject) ([]string, error) {
			els, err := resolve(ctx, s)
			if err != nil {
				return nil, err
			}
			switch len(els) {
			case 0:
				return []string{"false"}, nil
			case 1:
				v, err := els[0].Visible(ctx)
				if err != nil {
					return nil, err
				}
				return []string{strconv.FormatBool(v)}, nil
			default:
				return nil, errs.Newf(errs.LocatorAmbiguous, "%s matched %d elements", s, len(els))
			}
		},
	}
}

// InViewport reports whether the element's bounding box intersects the viewport.
func InViewport() Observable {
	return observable{
		name: "in-viewport",
		read: func(ctx context.Context, s Subject) ([]string, error) {
			el, err := one(ctx, s)
			if err != nil {
				return nil, err
			}
			box, err := el.BoundingBox(ctx)
			if err != nil {
				return nil, err
			}
			vp, err := s.Page.Viewport(ctx)
			if err != nil {
				return nil, err
			}
			return []string{strconv.FormatBool(browser.InViewport(box, vp))}, nil
		},
	}
}

// CSS is the computed value of a CSS property.
func CSS(property string) Observable {
	return element("css "+property, func(ctx context.Context, el browser.Element) (string, error) {
		return el.ComputedStyle(ctx, property)
	})
}

// Checked reports the checked state of a checkbox or radio.
func Checked() Observable {
	return flag("checked", func(ctx context.Context, el browser.Element) (bool, error) { return el.Checked(ctx) })
}

// Enabled reports whether the element is enabled.
func Enabled() Observable {
	return flag("enabled", func(ctx context.Context, el browser.Element) (bool, error) { return el.Enabled(ctx) })
}

// Focused reports whether the element has focus.
func Focused() Observable {
	return flag("focused", func(ctx context.Context, el browser.Element) (bool, error) { return el.Focused(ctx) })
}

// Value is the current value of a form control, compared verbatim.
func Value() Observable {
	return element("value", func(ctx context.Context, el browser.Element) (string, error) {
		return el.Value(ctx)
	})
}

// Attribute is an attribute value. An absent attribute reads as no value at all,
// so it never equals any string, including "".
func Attribute(name string) Observable {
	return observable{
		name: "attribute " + name,
		read: func(ctx context.Context, s Subject) ([]string, error) {
			el, err := one(ctx, s)
			if err != nil {
				return nil, err
			}
			v, ok, err := el.Attribute(ctx, name)
			if err != nil {
				return nil, err
			}
			if !ok {
				return []string{}, nil
			}
			return []string{v}, nil
		},
	}
}

// Count is the number of matched elements.
func Count() Observable {
	return observable{
		name: "count",
		read: func(ctx context.Context, s Subject) ([]string, error) {
			els, err := resolve(ctx, s)
			if err != nil {
				return nil, err
			}
			return []string{strconv.Itoa(len(els))}, nil
		},
	}
}

// URL is the page URL.
func URL() Observable {
	return observable{
		name: "url",
		read: func(_ context.Context, s Subject) ([]string, error) {
			return []string{s.Page.URL()}, nil
		},
	}
}

// Title is the document title.
func Title() Observable {
	return observable{
		name: "title",
		read: func(ctx context.Context, s Subject) ([]string, error) {
			title, err := s.Page.Title(ctx)
			if err != nil {
				return nil, fmt.Errorf("read title: %w", err)
			}
			return []string{title}, nil
		},
	}
}
