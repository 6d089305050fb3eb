package expect

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Matcher decides whether an observation satisfies an expectation.
// Observations are compared as strings; there is no numeric tolerance.
type Matcher struct {
	desc string
	fn   func(observed []string) bool
}

// Match reports whether observed satisfies m.
func (m Matcher) Match(observed []string) bool {
	if m.fn == nil {
		return false
	}
	return m.fn(observed)
}

func (m Matcher) String() string { return m.desc }

// Custom builds a matcher from a predicate.
func Custom(desc string, fn func(observed []string) bool) Matcher {
	return Matcher{desc: desc, fn: fn}
}

func single(observed []string) (string, bool) {
	if len(observed) != 1 {
		return "", false
	}
	return observed[0], true
}

// Equal matches a single observation equal to want.
func Equal(want string) Matcher {
	return Matcher{
		desc: strconv.Quote(want),
		fn: func(observed []string) bool {
			v, ok := single(observed)
			return ok && v == want
		},
	}
}

// List matches observations equal to want, element by element.
func List(want ...string) Matcher {
	want = slices.Clone(want)
	return Matcher{
		desc: FormatObserved(want),
		fn: func(observed []string) bool {
			return slices.Equal(observed, want)
		},
	}
}

// Contains matches a single observation containing sub.
func Contains(sub string) Matcher {
	return Matcher{
		desc: "containing " + strconv.Quote(sub),
		fn: func(observed []string) bool {
			v, ok := single(observed)
			return ok && strings.Contains(v, sub)
		},
	}
}

// Regexp matches a single observation against re.
func Regexp(re *regexp.Regexp) Matcher {
	return Matcher{
		desc: "matching /" + re.String() + "/",
		fn: func(observed []string) bool {
			v, ok := single(observed)
			return ok && re.MatchString(v)
		},
	}
}

// HasClass matches a class attribute observation that contains the token name.
func HasClass(name string) Matcher {
	return Matcher{
		desc: "class list containing " + strconv.Quote(name),
		fn: func(observed []string) bool {
			v, ok := single(observed)
			if !ok {
				return false
			}
			return slices.Contains(strings.Fields(v), name)
		},
	}
}

// Bool matches a boolean observable.
func Bool(want bool) Matcher {
	return Equal(strconv.FormatBool(want))
}

// CountIs matches a count observable.
func CountIs(n int) Matcher {
	return Equal(strconv.Itoa(n))
}

// FormatObserved renders an observation for diagnostics.
func FormatObserved(observed []string) string {
	if len(observed) == 1 {
		return strconv.Quote(observed[0])
	}
	quoted := make([]string, len(observed))
	for i, v := range observed {
		quoted[i] = strconv.Quote(v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
