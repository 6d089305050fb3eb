package fakedom

import (
	"context"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/uicheck/internal/browser"
	"github.com/kuitang/uicheck/internal/clock"
	"github.com/kuitang/uicheck/internal/locator"
)

const testHTML = `<!doctype html>
<html><head><title> Fixture </title></head>
<body data-height="2000">
  <header id="top" data-position="fixed" data-rect="0,0,1280,60">Header</header>
  <nav>
    <a href="/about">About us</a>
    <button id="go">Click me</button>
    <button disabled>Off</button>
    <button style="display: none">Hidden</button>
  </nav>
  <ul>
    <li class="item">First</li>
    <li class="item">Second item</li>
    <li class="item">First class</li>
  </ul>
  <label for="email">Email</label><input id="email" type="email">
  <label><input type="checkbox" id="agree"> I agree</label>
  <div id="far" data-rect="0,1500,200,50">Far away</div>
  <div id="panel" class="box">Panel</div>
</body></html>`

func newTestPage(t *testing.T, setup func(p *Page)) (*Page, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Unix(0, 0))
	b := New(clk)
	b.Handle("http://fixture.test/", Site{
		HTML: testHTML,
		Styles: []StyleRule{
			{Selector: "body", Property: "color", Value: "rgb(10, 10, 10)"},
			{Selector: ".box", Property: "background-color", Value: "rgb(255, 255, 255)"},
			{Selector: ".box.dark", Property: "background-color", Value: "rgb(0, 0, 0)"},
		},
		Setup: setup,
	})
	b.Handle("http://fixture.test/about", Site{HTML: `<html><head><title>About</title></head><body><h1>About</h1></body></html>`})
	pg, err := b.NewPage(context.Background(), browser.PageOptions{})
	require.NoError(t, err)
	p := pg.(*Page)
	require.NoError(t, p.Goto(context.Background(), "http://fixture.test/"))
	t.Cleanup(func() { _ = p.Close() })
	return p, clk
}

func texts(t *testing.T, els []browser.Element) []string {
	t.Helper()
	out := make([]string, len(els))
	for i, el := range els {
		s, err := el.Text(context.Background())
		require.NoError(t, err)
		out[i] = normalize(s)
	}
	return out
}

func TestQueryStrategies(t *testing.T) {
	p, _ := newTestPage(t, nil)
	ctx := context.Background()

	cases := []struct {
		name string
		loc  locator.Locator
		want []string
	}{
		{"css", locator.ByCSS("li.item"), []string{"First", "Second item", "First class"}},
		{"css id shorthand", locator.ByCSS("id=panel"), []string{"Panel"}},
		{"xpath", locator.ByPath("//li[2]"), []string{"Second item"}},
		{"text substring", locator.ByText("First"), []string{"First", "First class"}},
		{"text exact", locator.ByText("First").Exact(), []string{"First"}},
		{"role with name", locator.ByRole("button", "Click me"), []string{"Click me"}},
		{"role skips hidden", locator.ByRole("button", ""), []string{"Click me", "Off"}},
		{"link role", locator.ByRole("link", "About"), []string{"About us"}},
		{"nth", locator.ByCSS(".item").Nth(1), []string{"Second item"}},
		{"nth out of range", locator.ByCSS(".item").Nth(7), []string{}},
		{"has text filter", locator.ByCSS("li").Filter(locator.Filter{HasText: "class"}), []string{"First class"}},
		{"has not text filter", locator.ByCSS("li").Filter(locator.Filter{HasNotText: "First"}), []string{"Second item"}},
		{"case sensitive", locator.ByText("first"), []string{}},
		{"role name case sensitive", locator.ByRole("button", "click me"), []string{}},
		{"label case sensitive", locator.ByLabel("email"), []string{}},
		{"has text case sensitive", locator.ByCSS("li").Filter(locator.Filter{HasText: "Class"}), []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			els, err := p.Query(ctx, tc.loc)
			require.NoError(t, err)
			assert.Equal(t, tc.want, texts(t, els))
		})
	}
}

func TestQueryLabel(t *testing.T) {
	p, _ := newTestPage(t, nil)
	ctx := context.Background()

	els, err := p.Query(ctx, locator.ByLabel("Email"))
	require.NoError(t, err)
	require.Len(t, els, 1)
	id, ok, err := els[0].Attribute(ctx, "id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "email", id)

	els, err = p.Query(ctx, locator.ByRole("checkbox", "I agree"))
	require.NoError(t, err)
	require.Len(t, els, 1)
}

func TestQueryInvalidSelectors(t *testing.T) {
	p, _ := newTestPage(t, nil)
	_, err := p.Query(context.Background(), locator.ByCSS("li[["))
	assert.Error(t, err)
	_, err = p.Query(context.Background(), locator.ByPath("//li["))
	assert.Error(t, err)
}

func TestTitleAndNavigation(t *testing.T) {
	p, _ := newTestPage(t, nil)
	ctx := context.Background()

	title, err := p.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Fixture", title)

	els, err := p.Query(ctx, locator.ByRole("link", "About us"))
	require.NoError(t, err)
	require.Len(t, els, 1)
	require.NoError(t, els[0].Click(ctx, browser.ClickOptions{}))
	assert.Equal(t, "http://fixture.test/about", p.URL())

	_, err = els[0].Text(ctx)
	assert.ErrorIs(t, err, browser.ErrDetached)

	err = p.Goto(ctx, "http://fixture.test/missing")
	assert.ErrorIs(t, err, ErrNoSuchPage)
}

func TestComputedStyle(t *testing.T) {
	p, _ := newTestPage(t, func(p *Page) {
		p.On("click", "#go", func(p *Page, _ Event) { p.Find("#panel").ToggleClass("dark") })
	})
	ctx := context.Background()

	panel, err := p.Query(ctx, locator.ByCSS("#panel"))
	require.NoError(t, err)
	bg, err := panel[0].ComputedStyle(ctx, "background-color")
	require.NoError(t, err)
	assert.Equal(t, "rgb(255, 255, 255)", bg)
	color, err := panel[0].ComputedStyle(ctx, "color")
	require.NoError(t, err)
	assert.Equal(t, "rgb(10, 10, 10)", color, "color inherits from body")

	btn, err := p.Query(ctx, locator.ByRole("button", "Click me"))
	require.NoError(t, err)
	require.NoError(t, btn[0].Click(ctx, browser.ClickOptions{}))
	bg, err = panel[0].ComputedStyle(ctx, "background-color")
	require.NoError(t, err)
	assert.Equal(t, "rgb(0, 0, 0)", bg)

	nav, err := p.Query(ctx, locator.ByCSS("nav"))
	require.NoError(t, err)
	bg, err = nav[0].ComputedStyle(ctx, "background-color")
	require.NoError(t, err)
	assert.Equal(t, "rgba(0, 0, 0, 0)", bg)
}

func TestClickButtonsAndFocus(t *testing.T) {
	var got []string
	p, _ := newTestPage(t, func(p *Page) {
		for _, ev := range []string{"click", "dblclick", "contextmenu"} {
			p.On(ev, "#go", func(_ *Page, e Event) { got = append(got, e.Type) })
		}
	})
	ctx := context.Background()
	btn, err := p.Query(ctx, locator.ByCSS("#go"))
	require.NoError(t, err)

	require.NoError(t, btn[0].Click(ctx, browser.ClickOptions{Button: browser.ButtonRight}))
	require.NoError(t, btn[0].DoubleClick(ctx))
	assert.Equal(t, []string{"contextmenu", "click", "click", "dblclick"}, got)

	focused, err := btn[0].Focused(ctx)
	require.NoError(t, err)
	assert.True(t, focused)

	off, err := p.Query(ctx, locator.ByRole("button", "Off"))
	require.NoError(t, err)
	enabled, err := off[0].Enabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)
	assert.ErrorIs(t, off[0].Click(ctx, browser.ClickOptions{}), browser.ErrNotInteractable)
}

func TestFillAndCheck(t *testing.T) {
	var changes int
	p, _ := newTestPage(t, func(p *Page) {
		p.On("change", "input", func(*Page, Event) { changes++ })
	})
	ctx := context.Background()

	email, err := p.Query(ctx, locator.ByLabel("Email"))
	require.NoError(t, err)
	require.NoError(t, email[0].Fill(ctx, "  a@b.c "))
	v, err := email[0].Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, "  a@b.c ", v)

	box, err := p.Query(ctx, locator.ByCSS("#agree"))
	require.NoError(t, err)
	require.NoError(t, box[0].SetChecked(ctx, true))
	require.NoError(t, box[0].SetChecked(ctx, true))
	checked, err := box[0].Checked(ctx)
	require.NoError(t, err)
	assert.True(t, checked)
	require.NoError(t, box[0].SetChecked(ctx, false))
	checked, err = box[0].Checked(ctx)
	require.NoError(t, err)
	assert.False(t, checked)
	assert.Equal(t, 3, changes)

	panel, err := p.Query(ctx, locator.ByCSS("#panel"))
	require.NoError(t, err)
	assert.ErrorIs(t, panel[0].Fill(ctx, "x"), browser.ErrNotInteractable)
}

func TestTimersFollowClock(t *testing.T) {
	p, clk := newTestPage(t, func(p *Page) {
		p.After(3*time.Second, func(p *Page) { p.Find("#panel").SetText("Done") })
	})
	ctx := context.Background()
	loc := locator.ByCSS("#panel")

	els, err := p.Query(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, []string{"Panel"}, texts(t, els))

	clk.Advance(2999 * time.Millisecond)
	els, err = p.Query(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, []string{"Panel"}, texts(t, els))

	clk.Advance(time.Millisecond)
	els, err = p.Query(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, []string{"Done"}, texts(t, els))
}

func TestScrollGeometry(t *testing.T) {
	var scrolls int
	p, _ := newTestPage(t, func(p *Page) { p.OnScroll(func(*Page) { scrolls++ }) })
	ctx := context.Background()

	far, err := p.Query(ctx, locator.ByCSS("#far"))
	require.NoError(t, err)
	box, err := far[0].BoundingBox(ctx)
	require.NoError(t, err)
	require.NotNil(t, box)
	assert.Equal(t, 1500.0, box.Y)

	_, err = p.Evaluate(ctx, "() => window.scrollBy(0, 55)", nil)
	require.NoError(t, err)
	assert.Equal(t, 55.0, p.ScrollY())

	header, err := p.Query(ctx, locator.ByCSS("#top"))
	require.NoError(t, err)
	hb, err := header[0].BoundingBox(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, hb.Y, "fixed elements ignore scroll")

	require.NoError(t, far[0].ScrollIntoView(ctx))
	box, err = far[0].BoundingBox(ctx)
	require.NoError(t, err)
	vp, err := p.Viewport(ctx)
	require.NoError(t, err)
	assert.True(t, browser.InViewport(box, vp))

	_, err = p.Evaluate(ctx, "() => window.scrollBy(0, document.body.scrollHeight)", nil)
	require.NoError(t, err)
	assert.Equal(t, 2000.0-720.0, p.ScrollY(), "scroll clamps to document height")
	require.NoError(t, p.ScrollBy(ctx, 0, -5000))
	assert.Equal(t, 0.0, p.ScrollY())
	assert.Equal(t, 4, scrolls)

	hidden, err := p.Query(ctx, locator.ByCSS("button[style]"))
	require.NoError(t, err)
	hbox, err := hidden[0].BoundingBox(ctx)
	require.NoError(t, err)
	assert.Nil(t, hbox)
}

func TestDragAndDrop(t *testing.T) {
	p, _ := newTestPage(t, func(p *Page) {
		p.On("drop", "#panel", func(_ *Page, e Event) {
			e.Current.SetText("Dropped " + e.Related.AttrOr("id", ""))
		})
	})
	ctx := context.Background()
	src, err := p.Query(ctx, locator.ByCSS("#far"))
	require.NoError(t, err)
	dst, err := p.Query(ctx, locator.ByCSS("#panel"))
	require.NoError(t, err)
	require.NoError(t, src[0].DragTo(ctx, dst[0]))
	assert.Equal(t, []string{"Dropped far"}, texts(t, dst))
}

func TestEvaluateScripts(t *testing.T) {
	p, _ := newTestPage(t, func(p *Page) {
		p.Script("() => 1 + 1", func(*Page, *goquery.Selection, any) (any, error) { return 2.0, nil })
	})
	ctx := context.Background()
	v, err := p.Evaluate(ctx, "() => 1 + 1", nil)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)
	_, err = p.Evaluate(ctx, "() => unknown()", nil)
	assert.Error(t, err)
}

func TestClosedPage(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	b := New(clk)
	pg, err := b.NewPage(context.Background(), browser.PageOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, b.OpenPages())
	require.NoError(t, pg.Close())
	require.NoError(t, pg.Close())
	assert.Equal(t, 0, b.OpenPages())
	_, err = pg.Title(context.Background())
	assert.Error(t, err)

	require.NoError(t, b.Close())
	_, err = b.NewPage(context.Background(), browser.PageOptions{})
	assert.Error(t, err)
}
