package sites

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/uicheck/internal/browser/fakedom"
	"github.com/kuitang/uicheck/internal/jsnum"
)

// MenuCloseDelay is how long the playground menu takes to settle closed after load.
const MenuCloseDelay = 5 * time.Millisecond

// PlanetFactors maps each output field of the planet calculator to its gravity factor.
var PlanetFactors = []struct {
	Field  string
	Factor float64
}{
	{"outputsun", 27.072},
	{"outputmrc", .378},
	{"outputluna", .166},
	{"outputvn", .907},
	{"outputmars", .377},
	{"outputjp", 2.364},
	{"outputsat", 1.064},
	{"outputur", .889},
	{"outputnpt", 1.125},
	{"outputplt", .067},
}

var menuPages = []struct{ file, label string }{
	{"planets.html", "Planets"},
	{"stardates.html", "Stardates"},
	{"warp.html", "Warp Travel"},
	{"warcraft.html", "Warcraft"},
	{"practice.html", "Practice"},
}

func menuHTML() string {
	var b strings.Builder
	b.WriteString(`<div id="navlist" data-position="fixed" data-rect="1220,10,40,40">-</div>
<div id="areas" data-position="fixed" data-rect="1000,60,260,300">
  <h2 data-position="fixed" data-rect="1000,60,260,40">Pages</h2>
  <ul>`)
	for i, p := range menuPages {
		fmt.Fprintf(&b, "\n    <li data-position=\"fixed\" data-rect=\"1000,%d,260,40\"><a href=%q data-position=\"fixed\" data-rect=\"1000,%d,260,40\">%s</a></li>",
			110+i*40, p.file, 110+i*40, p.label)
	}
	b.WriteString("\n  </ul>\n</div>")
	return b.String()
}

func playgroundPage(title, body string) string {
	return "<!doctype html>\n<html>\n<head><title>" + title + "</title></head>\n<body data-height=\"3000\" data-rect=\"0,0,1280,3000\">\n" +
		menuHTML() + "\n" + body + "\n</body>\n</html>"
}

const practiceBody = `<h1>Practice</h1>
<section id="clicks" data-rect="0,100,600,100">
  <button id="click-me" data-rect="20,120,120,40">Click me</button>
</section>
<section id="focus" data-rect="0,1200,600,120">
  <input id="focus-and-blur" type="text" data-rect="20,1220,300,40">
</section>
<section id="choices" data-rect="0,1600,600,200">
  <label data-rect="20,1620,300,30"><input type="checkbox" id="enable-choices" data-rect="20,1620,20,20"> Enable Disabled Choices</label>
  <label data-rect="20,1660,300,30"><input type="checkbox" id="eigenstate" disabled data-rect="20,1660,20,20"> Preferential Eigenstate</label>
  <span id="eigen" data-rect="330,1660,200,30">(Initially Disabled)</span>
</section>`

const dragBody = `<h1>Drag and Drop</h1>
<div id="draggable" draggable="true" data-rect="20,100,150,150">Drag me to my blue target</div>
<div id="droppable" data-rect="300,100,300,300">Drop the red box here</div>
<div id="columns" data-rect="0,500,600,200">
  <div id="column-a" class="column" draggable="true" data-rect="20,500,150,150">First</div>
  <div id="column-b" class="column" draggable="true" data-rect="200,500,150,150">Second</div>
</div>`

func planetsBody() string {
	var b strings.Builder
	b.WriteString(`<h1>Planets</h1>
<form id="weights" data-rect="0,1800,800,900">
  <label for="wt" data-rect="20,1800,200,30">Enter Your Weight:</label>
  <input id="wt" type="text" data-rect="230,1800,120,30">
  <button type="button" id="calculate" data-rect="360,1800,100,30">Calculate</button>`)
	for i, f := range PlanetFactors {
		fmt.Fprintf(&b, "\n  <input id=%q type=\"text\" readonly data-rect=\"230,%d,200,30\">", f.Field, 1850+i*40)
	}
	b.WriteString("\n</form>")
	return b.String()
}

var practiceStyles = []fakedom.StyleRule{
	{Selector: "#focus-and-blur", Property: "background-color", Value: "rgb(255, 255, 255)"},
	{Selector: "#focus-and-blur.focused", Property: "background-color", Value: "rgb(255, 0, 0)"},
	{Selector: "#focus-and-blur.blurred", Property: "background-color", Value: "rgb(0, 0, 255)"},
}

// RegisterPlayground installs the playground home page, the pages its menu
// links to, and the drag-and-drop practice page.
func RegisterPlayground(b *fakedom.Browser) {
	b.Handle(PlaygroundURL, fakedom.Site{
		HTML:  playgroundPage("Playwright Playground", `<h1 data-rect="0,80,1280,60">Playwright Playground</h1>`),
		Setup: setupMenu,
	})
	b.Handle(PlaygroundURL+"planets.html", fakedom.Site{
		HTML:  playgroundPage("Planets", planetsBody()),
		Setup: setupPlanets,
	})
	b.Handle(PlaygroundURL+"stardates.html", fakedom.Site{
		HTML:  playgroundPage("Stardates", `<h1>Stardates</h1>`),
		Setup: setupMenu,
	})
	b.Handle(PlaygroundURL+"warp.html", fakedom.Site{
		HTML:  playgroundPage("Warp Travel", `<h1>Warp Travel</h1>`),
		Setup: setupMenu,
	})
	b.Handle(PlaygroundURL+"warcraft.html", fakedom.Site{
		HTML:  playgroundPage("Warcraft", `<h1>Warcraft</h1>`),
		Setup: setupMenu,
	})
	b.Handle(PlaygroundURL+"practice.html", fakedom.Site{
		HTML:   playgroundPage("Practice", practiceBody),
		Styles: practiceStyles,
		Setup:  setupPractice,
	})
	b.Handle(PlaygroundURL+"practice_drag_and_drop.html", fakedom.Site{
		HTML:  playgroundPage("Drag and Drop", dragBody),
		Setup: setupDragAndDrop,
	})
}

// setupMenu starts with the menu open and closes it after MenuCloseDelay,
// like the CSS transition on the real page.
func setupMenu(p *fakedom.Page) {
	p.After(MenuCloseDelay, func(p *fakedom.Page) {
		p.Find("#navlist").SetText("+")
		p.Find("#areas").SetAttr("hidden", "")
	})
	p.On("click", "#navlist", func(p *fakedom.Page, _ fakedom.Event) {
		nav := p.Find("#navlist")
		if strings.TrimSpace(nav.Text()) == "+" {
			nav.SetText("-")
			p.Find("#areas").RemoveAttr("hidden")
			return
		}
		nav.SetText("+")
		p.Find("#areas").SetAttr("hidden", "")
	})
}

func setupPlanets(p *fakedom.Page) {
	setupMenu(p)
	p.On("click", "#calculate", func(p *fakedom.Page, _ fakedom.Event) {
		raw := strings.TrimSpace(p.Find("#wt").AttrOr("value", ""))
		w, err := strconv.ParseFloat(raw, 64)
		for _, f := range PlanetFactors {
			out := p.Find("#" + f.Field)
			if err != nil {
				out.SetAttr("value", "NaN")
				continue
			}
			out.SetAttr("value", jsnum.Format((10*w*f.Factor)/10))
		}
	})
}

func setupPractice(p *fakedom.Page) {
	setupMenu(p)
	p.On("contextmenu", "#click-me", func(p *fakedom.Page, ev fakedom.Event) {
		if strings.TrimSpace(ev.Current.Text()) == "Click me" {
			ev.Current.SetText("Right Click")
		}
	})
	p.On("dblclick", "#click-me", func(p *fakedom.Page, ev fakedom.Event) {
		if strings.TrimSpace(ev.Current.Text()) == "Right Click" {
			ev.Current.SetText("Double Click")
		}
	})

	p.On("focus", "#focus-and-blur", func(p *fakedom.Page, ev fakedom.Event) {
		ev.Current.RemoveClass("blurred").AddClass("focused")
	})
	p.On("blur", "#focus-and-blur", func(p *fakedom.Page, ev fakedom.Event) {
		ev.Current.RemoveClass("focused").AddClass("blurred")
	})

	p.On("change", "#enable-choices", func(p *fakedom.Page, ev fakedom.Event) {
		choice := p.Find("#eigenstate")
		if _, on := ev.Current.Attr("checked"); on {
			choice.RemoveAttr("disabled")
			p.Find("#eigen").SetText("(Currently Enabled)")
			return
		}
		choice.RemoveAttr("checked")
		choice.SetAttr("disabled", "")
		p.Find("#eigen").SetText("(Currently Disabled)")
	})
}

func setupDragAndDrop(p *fakedom.Page) {
	setupMenu(p)
	p.On("drop", "#droppable", func(p *fakedom.Page, ev fakedom.Event) {
		if ev.Related.Is("#draggable") {
			ev.Current.SetText("Dropped!")
		}
	})
	p.On("drop", ".column", func(p *fakedom.Page, ev fakedom.Event) {
		src := ev.Related.Closest(".column")
		if src.Length() == 0 || src.Is("#"+ev.Current.AttrOr("id", "")) {
			return
		}
		srcText, dstText := src.Text(), ev.Current.Text()
		src.SetText(dstText)
		ev.Current.SetText(srcText)
	})
}
