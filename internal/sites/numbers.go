package sites

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/kuitang/uicheck/internal/browser/fakedom"
)

// SpecialNumberColor is the text color of the prime/Fibonacci badges.
const SpecialNumberColor = "rgb(38, 251, 235)"

const numbersHTML = `<!doctype html>
<html>
<head><title>Vue Project</title></head>
<body data-height="2000" data-rect="0,0,1280,2000">
<div id="app" data-rect="0,0,1280,2000">
  <div class="greetings" data-rect="0,40,1280,80"><h1 data-rect="0,40,1280,60">Let's play with numbers!</h1></div>
  <div class="entry" data-rect="0,900,1280,80">
    <input id="inputNumber" type="text" placeholder="Your Number" data-rect="20,900,200,30">
    <button id="submit" data-rect="230,900,100,30">Submit</button>
  </div>
  <div id="results" data-rect="0,1000,1280,400"></div>
</div>
</body>
</html>`

var numbersStyles = []fakedom.StyleRule{
	{Selector: ".specialNumber", Property: "color", Value: SpecialNumberColor},
}

// RegisterNumbers installs the number app: submitting a number renders whether
// it is valid (1 to 100), its parity, and prime and Fibonacci badges.
func RegisterNumbers(b *fakedom.Browser) {
	b.Handle(NumbersURL, fakedom.Site{HTML: numbersHTML, Styles: numbersStyles, Setup: setupNumbers})
}

func setupNumbers(p *fakedom.Page) {
	p.On("click", "#submit", func(p *fakedom.Page, _ fakedom.Event) {
		raw := strings.TrimSpace(p.Find("#inputNumber").AttrOr("value", ""))
		p.Find("#results").SetHtml(numberResults(raw))
	})
}

func numberResults(raw string) string {
	var b strings.Builder
	y := 1000
	line := func(id, class, text string) {
		attrs := ""
		if class != "" {
			attrs = fmt.Sprintf(" class=%q", class)
		}
		fmt.Fprintf(&b, "<p id=%q%s data-rect=\"0,%d,1280,30\">%s</p>", id, attrs, y, html.EscapeString(text))
		y += 40
	}

	line("yourNumber", "", "Your number is: "+raw)
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 100 {
		line("validNumber", "", "Oh no! You entered an invalid number!")
		return b.String()
	}
	line("validNumber", "", "Yay! You entered a valid number!")
	if n%2 == 0 {
		line("evenNumber", "", fmt.Sprintf("%d is even", n))
	} else {
		line("oddNumber", "", fmt.Sprintf("%d is odd", n))
	}
	if isPrime(n) {
		line("primeNumber", "specialNumber", fmt.Sprintf("%d is a prime number!", n))
	}
	if isFibonacci(n) {
		line("FibonacciNumber", "specialNumber", fmt.Sprintf("%d is a Fibonacci number!", n))
	}
	return b.String()
}

func isPrime(n int) bool {
	if n < 2 {
		return false
	}
	for d := 2; d*d <= n; d++ {
		if n%d == 0 {
			return false
		}
	}
	return true
}

func isFibonacci(n int) bool {
	a, b := 0, 1
	for a < n {
		a, b = b, a+b
	}
	return a == n
}
