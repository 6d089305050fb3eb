// Package locator describes how to find elements on a page.
//
// A Locator is an immutable value: refinements return a new Locator and the
// original is left untouched. Locators never hold element references; drivers
// resolve them against the live DOM on every use.
package locator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kuitang/uicheck/internal/errs"
)

// Strategy selects the query language of a Locator.
type Strategy int

const (
	// Role matches the computed ARIA role and, optionally, the accessible name.
	Role Strategy = iota + 1
	// CSS matches a CSS selector.
	CSS
	// Text matches the element whose text content equals or contains the query.
	Text
	// Path matches an XPath expression.
	Path
	// Label matches form controls by the text of their associated label.
	Label
)

func (s Strategy) String() string {
	switch s {
	case Role:
		return "role"
	case CSS:
		return "css"
	case Text:
		return "text"
	case Path:
		return "xpath"
	case Label:
		return "label"
	default:
		return "strategy(" + strconv.Itoa(int(s)) + ")"
	}
}

// ParseStrategy maps the textual strategy name back to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "role":
		return Role, nil
	case "css":
		return CSS, nil
	case "text":
		return Text, nil
	case "xpath", "path":
		return Path, nil
	case "label":
		return Label, nil
	default:
		return 0, errs.Newf(errs.InvalidArgument, "unknown locator strategy %q", name)
	}
}

// Filter narrows a match set. Every non-empty field must hold.
type Filter struct {
	// HasText keeps elements whose text contains the value (case-sensitive).
	HasText string
	// HasNotText drops elements whose text contains the value.
	HasNotText string
	// Role keeps elements with this computed role.
	Role string
}

func (f Filter) empty() bool {
	return f.HasText == "" && f.HasNotText == "" && f.Role == ""
}

func (f Filter) String() string {
	var parts []string
	if f.HasText != "" {
		parts = append(parts, "has-text="+strconv.Quote(f.HasText))
	}
	if f.HasNotText != "" {
		parts = append(parts, "has-not-text="+strconv.Quote(f.HasNotText))
	}
	if f.Role != "" {
		parts = append(parts, "role="+f.Role)
	}
	return strings.Join(parts, " ")
}

// Locator is a lazy, re-resolvable description of target elements.
type Locator struct {
	strategy Strategy
	query    string
	name     string
	exact    bool
	filters  []Filter
	nth      int // -1 when every match is kept
}

func newLocator(s Strategy, query string) Locator {
	return Locator{strategy: s, query: query, nth: -1}
}

// ByRole matches elements by ARIA role and accessible name. An empty name matches any name.
func ByRole(role, name string) Locator {
	l := newLocator(Role, role)
	l.name = name
	return l
}

// ByCSS matches elements by CSS selector.
func ByCSS(selector string) Locator { return newLocator(CSS, selector) }

// ByText matches the smallest elements containing text.
func ByText(text string) Locator { return newLocator(Text, text) }

// ByPath matches elements by XPath.
func ByPath(xpath string) Locator { return newLocator(Path, xpath) }

// ByLabel matches form controls by label text.
func ByLabel(text string) Locator { return newLocator(Label, text) }

// New builds a locator from a strategy and query. For Role the query is the role.
func New(s Strategy, query string) Locator { return newLocator(s, query) }

// Exact returns a copy that requires whole-string text or name equality.
func (l Locator) Exact() Locator {
	out := l.clone()
	out.exact = true
	return out
}

// Filter returns a copy narrowed by f.
func (l Locator) Filter(f Filter) Locator {
	out := l.clone()
	if !f.empty() {
		out.filters = append(out.filters, f)
	}
	return out
}

// Nth returns a copy that keeps only the i-th match (zero based).
func (l Locator) Nth(i int) Locator {
	out := l.clone()
	out.nth = i
	return out
}

// First keeps only the first match.
func (l Locator) First() Locator { return l.Nth(0) }

func (l Locator) clone() Locator {
	out := l
	if len(l.filters) > 0 {
		out.filters = append([]Filter(nil), l.filters...)
	}
	return out
}

func (l Locator) Strategy() Strategy { return l.strategy }
func (l Locator) Query() string      { return l.query }

// Name is the accessible name for Role locators.
func (l Locator) Name() string { return l.name }

func (l Locator) IsExact() bool { return l.exact }

// Filters returns a copy of the filter chain.
func (l Locator) Filters() []Filter { return append([]Filter(nil), l.filters...) }

// Index returns the nth selection and whether one is set.
func (l Locator) Index() (int, bool) { return l.nth, l.nth >= 0 }

// Validate reports malformed locators before they reach a driver.
func (l Locator) Validate() error {
	switch l.strategy {
	case Role, CSS, Text, Path, Label:
	default:
		return errs.Newf(errs.InvalidArgument, "locator has no strategy")
	}
	if strings.TrimSpace(l.query) == "" {
		return errs.Newf(errs.InvalidArgument, "%s locator has an empty query", l.strategy)
	}
	if l.nth < -1 {
		return errs.Newf(errs.InvalidArgument, "locator index %d is negative", l.nth)
	}
	return nil
}

// String renders the locator the way it appears in logs and reports,
// e.g. role=button[name="Click me"] >> has-text="x" >> nth=0.
func (l Locator) String() string {
	var b strings.Builder
	b.WriteString(l.strategy.String())
	b.WriteByte('=')
	switch l.strategy {
	case Role:
		b.WriteString(l.query)
		if l.name != "" {
			fmt.Fprintf(&b, "[name=%s", strconv.Quote(l.name))
			if l.exact {
				b.WriteString(" exact")
			}
			b.WriteByte(']')
		}
	case Text, Label:
		b.WriteString(strconv.Quote(l.query))
		if l.exact {
			b.WriteString(" exact")
		}
	default:
		b.WriteString(l.query)
	}
	for _, f := range l.filters {
		b.WriteString(" >> ")
		b.WriteString(f.String())
	}
	if l.nth >= 0 {
		fmt.Fprintf(&b, " >> nth=%d", l.nth)
	}
	return b.String()
}
