package fakedom

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/kuitang/uicheck/internal/browser"
)

func normalize(s string) string { return strings.Join(strings.Fields(s), " ") }

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasAttr(n *html.Node, key string) bool {
	_, ok := attr(n, key)
	return ok
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}

func eachElement(n *html.Node, fn func(n *html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		eachElement(c, fn)
	}
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func htmlqueryAll(root *html.Node, expr string) ([]*html.Node, error) {
	found, err := htmlquery.QueryAll(root, expr)
	if err != nil {
		return nil, err
	}
	out := found[:0]
	for _, n := range found {
		if n.Type == html.ElementNode {
			out = append(out, n)
		}
	}
	return out, nil
}

func inputType(n *html.Node) string {
	t, _ := attr(n, "type")
	t = strings.ToLower(strings.TrimSpace(t))
	if t == "" {
		return "text"
	}
	return t
}

// roleOf returns the explicit or implicit ARIA role of n.
func roleOf(n *html.Node) string {
	if r, ok := attr(n, "role"); ok {
		if f := strings.Fields(r); len(f) > 0 {
			return f[0]
		}
	}
	switch n.Data {
	case "a", "area":
		if hasAttr(n, "href") {
			return "link"
		}
	case "button":
		return "button"
	case "input":
		switch inputType(n) {
		case "button", "submit", "reset", "image":
			return "button"
		case "checkbox":
			return "checkbox"
		case "radio":
			return "radio"
		case "range":
			return "slider"
		case "number":
			return "spinbutton"
		case "hidden":
			return ""
		default:
			return "textbox"
		}
	case "textarea":
		return "textbox"
	case "select":
		return "combobox"
	case "img":
		if alt, ok := attr(n, "alt"); ok && alt == "" {
			return "presentation"
		}
		return "img"
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return "heading"
	case "ul", "ol":
		return "list"
	case "li":
		return "listitem"
	case "nav":
		return "navigation"
	case "main":
		return "main"
	case "header":
		return "banner"
	case "footer":
		return "contentinfo"
	case "table":
		return "table"
	case "tr":
		return "row"
	case "td":
		return "cell"
	case "dialog":
		return "dialog"
	case "p":
		return "paragraph"
	}
	return ""
}

func byID(root *html.Node, id string) *html.Node {
	var found *html.Node
	eachElement(root, func(n *html.Node) {
		if found == nil {
			if v, ok := attr(n, "id"); ok && v == id {
				found = n
			}
		}
	})
	return found
}

func isControl(n *html.Node) bool {
	switch n.Data {
	case "input", "textarea", "select", "button":
		return true
	}
	return false
}

// labelControl returns the form control a label element names.
func labelControl(root, label *html.Node) *html.Node {
	if id, ok := attr(label, "for"); ok {
		return byID(root, id)
	}
	var found *html.Node
	eachElement(label, func(n *html.Node) {
		if found == nil && n != label && isControl(n) {
			found = n
		}
	})
	return found
}

// accessibleName approximates the accessible name computation.
func accessibleName(root, n *html.Node) string {
	if v, ok := attr(n, "aria-label"); ok && strings.TrimSpace(v) != "" {
		return normalize(v)
	}
	if ids, ok := attr(n, "aria-labelledby"); ok {
		var parts []string
		for _, id := range strings.Fields(ids) {
			if ref := byID(root, id); ref != nil {
				parts = append(parts, normalize(textContent(ref)))
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}
	switch n.Data {
	case "img":
		v, _ := attr(n, "alt")
		return normalize(v)
	case "input", "textarea", "select":
		switch inputType(n) {
		case "button", "submit", "reset":
			v, _ := attr(n, "value")
			return normalize(v)
		}
		if id, ok := attr(n, "id"); ok {
			var name string
			eachElement(root, func(l *html.Node) {
				if name == "" && l.Data == "label" {
					if f, ok := attr(l, "for"); ok && f == id {
						name = normalize(textContent(l))
					}
				}
			})
			if name != "" {
				return name
			}
		}
		for a := n.Parent; a != nil; a = a.Parent {
			if a.Type == html.ElementNode && a.Data == "label" {
				return normalize(textContent(a))
			}
		}
		v, _ := attr(n, "title")
		return normalize(v)
	}
	if v, ok := attr(n, "title"); ok && normalize(textContent(n)) == "" {
		return normalize(v)
	}
	return normalize(textContent(n))
}

var inheritedProps = map[string]bool{
	"color":       true,
	"font-family": true,
	"font-size":   true,
	"font-weight": true,
	"visibility":  true,
}

var defaultStyle = map[string]string{
	"background-color": "rgba(0, 0, 0, 0)",
	"color":            "rgb(0, 0, 0)",
	"display":          "block",
	"visibility":       "visible",
	"opacity":          "1",
}

func inlineStyle(n *html.Node, prop string) (string, bool) {
	style, ok := attr(n, "style")
	if !ok {
		return "", false
	}
	val, found := "", false
	for _, decl := range strings.Split(style, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(k), prop) {
			val, found = strings.TrimSpace(v), true
		}
	}
	return val, found
}

// declared is the value set on n itself, by inline style or the last matching rule.
func (p *Page) declared(n *html.Node, prop string) (string, bool) {
	if v, ok := inlineStyle(n, prop); ok {
		return v, true
	}
	val, found := "", false
	for _, r := range p.rules {
		if r.rule.Property == prop && r.sel.Match(n) {
			val, found = r.rule.Value, true
		}
	}
	return val, found
}

func (p *Page) computedStyle(n *html.Node, prop string) string {
	prop = strings.ToLower(strings.TrimSpace(prop))
	for c := n; c != nil && c.Type == html.ElementNode; c = c.Parent {
		if v, ok := p.declared(c, prop); ok {
			return v
		}
		if !inheritedProps[prop] {
			break
		}
	}
	return defaultStyle[prop]
}

func (p *Page) visible(n *html.Node) bool {
	if !p.attached(n) {
		return false
	}
	if p.computedStyle(n, "visibility") == "hidden" {
		return false
	}
	for c := n; c != nil && c.Type == html.ElementNode; c = c.Parent {
		if hasAttr(c, "hidden") {
			return false
		}
		if v, ok := p.declared(c, "display"); ok && v == "none" {
			return false
		}
	}
	r := docRect(n)
	return r.Width > 0 && r.Height > 0
}

func docRect(n *html.Node) browser.Rect {
	r := browser.Rect{Width: 100, Height: 20}
	v, ok := attr(n, "data-rect")
	if !ok {
		return r
	}
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return r
	}
	var f [4]float64
	for i, s := range parts {
		x, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return r
		}
		f[i] = x
	}
	return browser.Rect{X: f[0], Y: f[1], Width: f[2], Height: f[3]}
}

func isFixed(n *html.Node) bool {
	v, _ := attr(n, "data-position")
	return v == "fixed"
}

// viewportRect maps n's box into viewport coordinates.
func (p *Page) viewportRect(n *html.Node) browser.Rect {
	r := docRect(n)
	if !isFixed(n) {
		r.X -= p.scrollX
		r.Y -= p.scrollY
	}
	return r
}

// SetRect replaces the declared box of every element in sel.
func SetRect(sel *goquery.Selection, r browser.Rect) {
	sel.SetAttr("data-rect", formatRect(r))
}

func formatRect(r browser.Rect) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return f(r.X) + "," + f(r.Y) + "," + f(r.Width) + "," + f(r.Height)
}
