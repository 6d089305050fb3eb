// Package sites holds in-memory replicas of the applications the bundled
// scenarios target. They back the fake driver so scenario files can run
// offline and deterministically.
package sites

import (
	"time"

	"github.com/kuitang/uicheck/internal/browser"
	"github.com/kuitang/uicheck/internal/browser/fakedom"
)

const (
	LudicURL      = "https://testerstories.com/xyzzy/ludic/article/precis.html"
	PlaygroundURL = "https://testerstories.com/xyzzy/"
	NumbersURL    = "http://localhost:5173/"
)

// HeaderHeight is the height of the Ludic sticky header in pixels.
const HeaderHeight = 54

// ProgressHideDelay is how long the scroll progress widget stays up after scrolling stops.
const ProgressHideDelay = 3000 * time.Millisecond

// Register installs every replica on b.
func Register(b *fakedom.Browser) {
	RegisterLudic(b)
	RegisterPlayground(b)
	RegisterNumbers(b)
}

const ludicHTML = `<!doctype html>
<html>
<head><title>Précis | Ludic Historian</title></head>
<body data-height="6000" data-rect="0,0,1280,6000">
<header class="nav-down" data-position="fixed" data-rect="0,0,1280,54">
  <a href="/xyzzy/ludic/">Ludic Historian</a>
  <span class="theme-toggle">
    <svg id="dark-toggle" data-rect="1200,10,32,32"><title>Dark Mode</title></svg>
    <svg id="light-toggle" style="display: none" data-rect="1200,10,32,32"><title>Light Mode</title></svg>
  </span>
</header>
<main data-rect="0,54,1280,5900">
  <h1 data-rect="0,80,1280,60">Précis</h1>
  <p data-rect="0,160,1280,400">A study of play as history.</p>
  <figure data-rect="0,2400,640,360">
    <img src="/img/cinema.jpg" alt="Star Wars in the cinema" data-rect="0,2400,640,360">
  </figure>
</main>
<div id="img-modal" hidden data-position="fixed" data-rect="0,0,1280,720">
  <span class="close" data-position="fixed" data-rect="1240,10,30,30">×</span>
  <img id="img-modal-content" alt="" data-position="fixed" data-rect="160,60,960,600">
</div>
<div id="progress-scroll" hidden data-position="fixed" data-rect="1200,640,60,60">
  <svg class="progress-circle"><title>Back to top</title></svg>
</div>
</body>
</html>`

var ludicStyles = []fakedom.StyleRule{
	{Selector: "body", Property: "background-color", Value: "rgb(255, 255, 255)"},
	{Selector: "body", Property: "color", Value: "rgb(0, 0, 0)"},
	{Selector: "body.dark-mode", Property: "background-color", Value: "rgb(0, 0, 0)"},
	{Selector: "body.dark-mode", Property: "color", Value: "rgb(255, 255, 255)"},
}

// RegisterLudic installs the article page: a header that slides away when
// scrolling down past its height, a light/dark theme toggle, an image preview
// modal, and a progress widget that shows while scrolling and hides after
// ProgressHideDelay or at the top of the page.
func RegisterLudic(b *fakedom.Browser) {
	b.Handle(LudicURL, fakedom.Site{HTML: ludicHTML, Styles: ludicStyles, Setup: setupLudic})
}

func setupLudic(p *fakedom.Page) {
	lastY := 0.0
	var cancelHide func()
	p.OnScroll(func(p *fakedom.Page) {
		y := p.ScrollY()
		header := p.Find("header")
		if y > lastY && y > HeaderHeight {
			header.RemoveClass("nav-down").AddClass("nav-up")
			fakedom.SetRect(header, browser.Rect{Y: -HeaderHeight, Width: 1280, Height: HeaderHeight})
		} else if y < lastY {
			header.RemoveClass("nav-up").AddClass("nav-down")
			fakedom.SetRect(header, browser.Rect{Width: 1280, Height: HeaderHeight})
		}
		lastY = y

		progress := p.Find("#progress-scroll")
		if cancelHide != nil {
			cancelHide()
			cancelHide = nil
		}
		if y == 0 {
			progress.SetAttr("hidden", "")
			return
		}
		progress.RemoveAttr("hidden")
		cancelHide = p.After(ProgressHideDelay, func(p *fakedom.Page) {
			p.Find("#progress-scroll").SetAttr("hidden", "")
			cancelHide = nil
		})
	})

	p.On("click", "#dark-toggle", func(p *fakedom.Page, _ fakedom.Event) {
		p.Find("body").AddClass("dark-mode")
		p.Find("#dark-toggle").SetAttr("style", "display: none")
		p.Find("#light-toggle").RemoveAttr("style")
	})
	p.On("click", "#light-toggle", func(p *fakedom.Page, _ fakedom.Event) {
		p.Find("body").RemoveClass("dark-mode")
		p.Find("#light-toggle").SetAttr("style", "display: none")
		p.Find("#dark-toggle").RemoveAttr("style")
	})

	p.On("click", "main img", func(p *fakedom.Page, ev fakedom.Event) {
		p.Find("#img-modal-content").SetAttr("src", ev.Current.AttrOr("src", ""))
		p.Find("#img-modal").RemoveAttr("hidden")
	})
	p.On("click", "#img-modal .close", func(p *fakedom.Page, _ fakedom.Event) {
		p.Find("#img-modal").SetAttr("hidden", "")
	})

	p.On("click", "#progress-scroll", func(p *fakedom.Page, _ fakedom.Event) {
		p.ScrollTo(0, 0)
	})
}
