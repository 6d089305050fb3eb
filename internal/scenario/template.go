package scenario

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/kuitang/uicheck/internal/jsnum"
)

// Vars are the template values visible to a step.
type Vars map[string]any

// merge returns a new map with later layers overriding earlier ones.
func merge(layers ...Vars) Vars {
	out := Vars{}
	for _, l := range layers {
		maps.Copy(out, l)
	}
	return out
}

var templateFuncs = template.FuncMap{
	"add": func(a any, rest ...any) (float64, error) {
		return fold(a, rest, func(x, y float64) float64 { return x + y })
	},
	"sub": func(a any, rest ...any) (float64, error) {
		return fold(a, rest, func(x, y float64) float64 { return x - y })
	},
	"mul": func(a any, rest ...any) (float64, error) {
		return fold(a, rest, func(x, y float64) float64 { return x * y })
	},
	"div": func(a any, rest ...any) (float64, error) {
		return fold(a, rest, func(x, y float64) float64 { return x / y })
	},
	// jsnum renders a number the way JavaScript's Number.prototype.toString does.
	"jsnum": func(v any) (string, error) {
		f, err := toFloat(v)
		if err != nil {
			return "", err
		}
		return jsnum.Format(f), nil
	},
}

// fold applies op left to right, so mul 10 .weight .factor is (10*weight)*factor.
func fold(a any, rest []any, op func(x, y float64) float64) (float64, error) {
	acc, err := toFloat(a)
	if err != nil {
		return 0, err
	}
	for _, r := range rest {
		v, err := toFloat(r)
		if err != nil {
			return 0, err
		}
		acc = op(acc, v)
	}
	return acc, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case float64:
		return n, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%v (%T) is not a number", v, v)
	}
}

func renderString(s string, vars Vars) (string, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}
	t, err := template.New("value").Option("missingkey=error").Funcs(templateFuncs).Parse(s)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := t.Execute(&b, map[string]any(vars)); err != nil {
		return "", err
	}
	return b.String(), nil
}

// renderNode returns a copy of n with every templated scalar value expanded.
// Mapping keys are never templated.
func renderNode(n *yaml.Node, vars Vars) (*yaml.Node, error) {
	out := *n
	switch n.Kind {
	case yaml.ScalarNode:
		v, err := renderString(n.Value, vars)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		if v != n.Value {
			out.Value = v
			// Let the rendered text resolve its own type, so "{{.y}}" can
			// fill a number; values that would read as null stay strings.
			out.Tag, out.Style = "", 0
			switch v {
			case "", "~", "null", "Null", "NULL":
				out.Tag, out.Style = "!!str", yaml.DoubleQuotedStyle
			}
		}
	case yaml.MappingNode, yaml.SequenceNode, yaml.DocumentNode:
		out.Content = make([]*yaml.Node, len(n.Content))
		for i, c := range n.Content {
			if n.Kind == yaml.MappingNode && i%2 == 0 {
				out.Content[i] = c
				continue
			}
			r, err := renderNode(c, vars)
			if err != nil {
				return nil, err
			}
			out.Content[i] = r
		}
	}
	return &out, nil
}
