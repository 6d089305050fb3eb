// Package browser defines the contract between the harness and a browser
// automation provider. The harness never talks to a browser directly; pwdriver
// implements this contract on top of Playwright and fakedom implements it on
// an in-memory DOM for tests.
package browser

import (
	"context"
	"errors"

	"github.com/kuitang/uicheck/internal/locator"
)

// ErrDetached is returned by element operations when the element left the DOM
// between resolution and the operation.
var ErrDetached = errors.New("browser: element is detached from the document")

// ErrNotInteractable is returned when an action targets a hidden or disabled element.
var ErrNotInteractable = errors.New("browser: element is not interactable")

// Provider creates isolated pages. Implementations must allow concurrent NewPage calls.
type Provider interface {
	NewPage(ctx context.Context, opts PageOptions) (Page, error)
	Close() error
}

// PageOptions configures a new browsing context.
type PageOptions struct {
	ViewportWidth  int
	ViewportHeight int
}

// Page is a single browsing context. A Page is used by one goroutine at a time.
type Page interface {
	Goto(ctx context.Context, url string) error
	URL() string
	Title(ctx context.Context) (string, error)
	// Evaluate runs a page-level function expression with an optional argument.
	Evaluate(ctx context.Context, script string, arg any) (any, error)
	ScrollBy(ctx context.Context, dx, dy float64) error
	// Viewport returns the visible area in viewport coordinates.
	Viewport(ctx context.Context) (Rect, error)
	// Query returns the current matches of loc in document order.
	Query(ctx context.Context, loc locator.Locator) ([]Element, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// MouseButton names the button used for a click.
type MouseButton string

const (
	ButtonLeft   MouseButton = "left"
	ButtonRight  MouseButton = "right"
	ButtonMiddle MouseButton = "middle"
)

// Point is a position relative to the top-left corner of an element.
type Point struct {
	X float64
	Y float64
}

// ClickOptions configures a click.
type ClickOptions struct {
	Button   MouseButton
	Position *Point
}

// Element is one resolved DOM node. It may become stale at any time.
type Element interface {
	Click(ctx context.Context, opts ClickOptions) error
	DoubleClick(ctx context.Context) error
	Fill(ctx context.Context, text string) error
	SetChecked(ctx context.Context, checked bool) error
	DragTo(ctx context.Context, target Element) error
	ScrollIntoView(ctx context.Context) error

	Text(ctx context.Context) (string, error)
	Value(ctx context.Context) (string, error)
	// Attribute returns the attribute value and whether it is present.
	Attribute(ctx context.Context, name string) (string, bool, error)
	// ComputedStyle returns the resolved value of a CSS property.
	ComputedStyle(ctx context.Context, property string) (string, error)
	Visible(ctx context.Context) (bool, error)
	Checked(ctx context.Context) (bool, error)
	Enabled(ctx context.Context) (bool, error)
	Focused(ctx context.Context) (bool, error)
	// BoundingBox returns the border box in viewport coordinates, or nil when
	// the element is not rendered.
	BoundingBox(ctx context.Context) (*Rect, error)
	// Evaluate runs a function expression with the element as first argument.
	Evaluate(ctx context.Context, script string, arg any) (any, error)
}
