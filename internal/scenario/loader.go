package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kuitang/uicheck/internal/browser"
	"github.com/kuitang/uicheck/internal/errs"
	"github.com/kuitang/uicheck/internal/locator"
)

// Duration is a YAML duration: a Go duration string such as "500ms" or "3s",
// or a bare integer number of milliseconds. It is at most MaxDuration.
type Duration time.Duration

// MaxDuration bounds every duration in a scenario file.
const MaxDuration = 24 * time.Hour

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", n.Line)
	}
	var v time.Duration
	if ms, err := strconv.ParseInt(n.Value, 10, 64); err == nil {
		if ms > MaxDuration.Milliseconds() {
			return fmt.Errorf("line %d: duration %q exceeds %s", n.Line, n.Value, MaxDuration)
		}
		v = time.Duration(ms) * time.Millisecond
	} else if v, err = time.ParseDuration(n.Value); err != nil {
		return fmt.Errorf("line %d: invalid duration %q", n.Line, n.Value)
	}
	if v < 0 {
		return fmt.Errorf("line %d: negative duration %q", n.Line, n.Value)
	}
	if v > MaxDuration {
		return fmt.Errorf("line %d: duration %q exceeds %s", n.Line, n.Value, MaxDuration)
	}
	*d = Duration(v)
	return nil
}

func (d *Duration) ptr() *time.Duration {
	if d == nil {
		return nil
	}
	v := time.Duration(*d)
	return &v
}

type fileSpec struct {
	BaseURL   string         `yaml:"base_url"`
	Defaults  defaultsSpec   `yaml:"defaults"`
	Vars      Vars           `yaml:"vars"`
	Scenarios []scenarioSpec `yaml:"scenarios"`
}

type defaultsSpec struct {
	Timeout      *Duration `yaml:"timeout"`
	PollInterval *Duration `yaml:"poll_interval"`
	Budget       *Duration `yaml:"budget"`
}

type scenarioSpec struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	BaseURL     string      `yaml:"base_url"`
	Timeout     *Duration   `yaml:"timeout"`
	Budget      *Duration   `yaml:"budget"`
	Vars        Vars        `yaml:"vars"`
	Cases       []caseSpec  `yaml:"cases"`
	Steps       []yaml.Node `yaml:"steps"`
}

type caseSpec struct {
	Name string `yaml:"name"`
	Vars Vars   `yaml:"vars"`
}

type stepSpec struct {
	Name           string      `yaml:"name"`
	Navigate       *string     `yaml:"navigate"`
	Wait           *Duration   `yaml:"wait"`
	Scroll         *scrollSpec `yaml:"scroll"`
	Evaluate       *string     `yaml:"evaluate"`
	Click          *actionSpec `yaml:"click"`
	DoubleClick    *actionSpec `yaml:"dblclick"`
	Fill           *actionSpec `yaml:"fill"`
	Check          *targetSpec `yaml:"check"`
	Uncheck        *targetSpec `yaml:"uncheck"`
	ScrollIntoView *targetSpec `yaml:"scroll_into_view"`
	Drag           *dragSpec   `yaml:"drag"`
	Expect         *expectSpec `yaml:"expect"`
}

type scrollSpec struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type targetSpec struct {
	Role       string `yaml:"role"`
	Name       string `yaml:"name"`
	CSS        string `yaml:"css"`
	Text       string `yaml:"text"`
	XPath      string `yaml:"xpath"`
	Label      string `yaml:"label"`
	Exact      bool   `yaml:"exact"`
	HasText    string `yaml:"has_text"`
	HasNotText string `yaml:"has_not_text"`
	Nth        *int   `yaml:"nth"`
	First      bool   `yaml:"first"`
}

type actionSpec struct {
	targetSpec `yaml:",inline"`
	Button     string   `yaml:"button"`
	X          *float64 `yaml:"x"`
	Y          *float64 `yaml:"y"`
	Value      *string  `yaml:"value"`
}

type dragSpec struct {
	From targetSpec `yaml:"from"`
	To   targetSpec `yaml:"to"`
}

type cssSpec struct {
	Property string `yaml:"property"`
	Value    string `yaml:"value"`
}

type attributeSpec struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

type expectSpec struct {
	targetSpec      `yaml:",inline"`
	ToHaveText      *string        `yaml:"to_have_text"`
	ToHaveTexts     *[]string      `yaml:"to_have_texts"`
	ToHaveClass     *string        `yaml:"to_have_class"`
	ToBeVisible     *bool          `yaml:"to_be_visible"`
	ToBeInViewport  *bool          `yaml:"to_be_in_viewport"`
	ToHaveCSS       *cssSpec       `yaml:"to_have_css"`
	ToBeChecked     *bool          `yaml:"to_be_checked"`
	ToBeEnabled     *bool          `yaml:"to_be_enabled"`
	ToBeFocused     *bool          `yaml:"to_be_focused"`
	ToHaveValue     *string        `yaml:"to_have_value"`
	ToHaveAttribute *attributeSpec `yaml:"to_have_attribute"`
	ToHaveCount     *int           `yaml:"to_have_count"`
	ToHaveURL       *string        `yaml:"to_have_url"`
	ToHaveTitle     *string        `yaml:"to_have_title"`
	Match           string         `yaml:"match"`
	Not             bool           `yaml:"not"`
	Timeout         *Duration      `yaml:"timeout"`
}

// Load reads one scenario file.
func Load(path string) ([]Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, "read scenario file", err)
	}
	return Parse(data, path)
}

// LoadAll loads every file in paths. Directories contribute their *.yaml and
// *.yml files in name order. Plan names must be unique across all files.
func LoadAll(paths []string) ([]Plan, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidArgument, "scenario path", err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidArgument, "read scenario directory", err)
		}
		for _, e := range entries {
			ext := filepath.Ext(e.Name())
			if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
				files = append(files, filepath.Join(p, e.Name()))
			}
		}
	}
	if len(files) == 0 {
		return nil, errs.New(errs.InvalidArgument, "no scenario files found")
	}

	var plans []Plan
	seen := map[string]string{}
	for _, f := range files {
		loaded, err := Load(f)
		if err != nil {
			return nil, err
		}
		for _, p := range loaded {
			if prev, dup := seen[p.Name]; dup {
				return nil, errs.Newf(errs.InvalidArgument, "scenario %q defined in both %s and %s", p.Name, prev, f)
			}
			seen[p.Name] = f
		}
		plans = append(plans, loaded...)
	}
	return plans, nil
}

// Parse decodes a scenario file. Unknown keys are rejected; every problem
// found is reported, prefixed with source and line.
func Parse(data []byte, source string) ([]Plan, error) {
	var spec fileSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, "parse "+source, err)
	}
	if len(spec.Scenarios) == 0 {
		return nil, errs.Newf(errs.InvalidArgument, "%s: no scenarios defined", source)
	}

	var problems []error
	var plans []Plan
	names := map[string]bool{}
	for i, sc := range spec.Scenarios {
		if strings.TrimSpace(sc.Name) == "" {
			problems = append(problems, fmt.Errorf("%s: scenario %d: name is required", source, i+1))
			continue
		}
		if len(sc.Steps) == 0 {
			problems = append(problems, fmt.Errorf("%s: scenario %q: steps are required", source, sc.Name))
			continue
		}
		cases := sc.Cases
		if len(cases) == 0 {
			cases = []caseSpec{{}}
		}
		for _, c := range cases {
			name := sc.Name
			if c.Name != "" {
				name = sc.Name + " / " + c.Name
			}
			if names[name] {
				problems = append(problems, fmt.Errorf("%s: duplicate scenario %q", source, name))
				continue
			}
			names[name] = true

			plan := Plan{
				Name:        name,
				Description: sc.Description,
				Source:      source,
				BaseURL:     firstNonEmpty(sc.BaseURL, spec.BaseURL),
			}
			if d := firstDuration(sc.Timeout, spec.Defaults.Timeout); d != nil {
				plan.Timeout = *d
			}
			if d := spec.Defaults.PollInterval.ptr(); d != nil {
				plan.PollInterval = *d
			}
			if d := firstDuration(sc.Budget, spec.Defaults.Budget); d != nil {
				plan.Budget = *d
			}
			steps, err := compileSteps(sc.Steps, merge(spec.Vars, sc.Vars, c.Vars))
			if err != nil {
				problems = append(problems, fmt.Errorf("%s: scenario %q: %w", source, name, err))
				continue
			}
			plan.Steps = steps
			plans = append(plans, plan)
		}
	}
	if len(problems) > 0 {
		return nil, errs.Wrap(errs.InvalidArgument, "invalid scenario file "+source, errors.Join(problems...))
	}
	return plans, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstDuration(ds ...*Duration) *time.Duration {
	for _, d := range ds {
		if d != nil {
			return d.ptr()
		}
	}
	return nil
}

// compileSteps expands foreach tables and templates, then decodes each step.
func compileSteps(nodes []yaml.Node, vars Vars) ([]Step, error) {
	var steps []Step
	var problems []error
	for i := range nodes {
		n := &nodes[i]
		if body, rows, ok, err := foreachOf(n, vars); ok || err != nil {
			if err != nil {
				problems = append(problems, err)
				continue
			}
			for _, row := range rows {
				expanded, err := compileSteps(body, merge(vars, row))
				if err != nil {
					problems = append(problems, err)
					break
				}
				steps = append(steps, expanded...)
			}
			continue
		}
		step, err := compileStep(n, vars)
		if err != nil {
			problems = append(problems, err)
			continue
		}
		steps = append(steps, step)
	}
	return steps, errors.Join(problems...)
}

// foreachOf recognises `foreach: {rows: [...], steps: [...]}`. Rows are
// templated with the outer vars; each row's keys become vars of the body.
func foreachOf(n *yaml.Node, vars Vars) ([]yaml.Node, []Vars, bool, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 || n.Content[0].Value != "foreach" {
		return nil, nil, false, nil
	}
	spec := n.Content[1]
	if spec.Kind != yaml.MappingNode {
		return nil, nil, true, fmt.Errorf("line %d: foreach must be a mapping", spec.Line)
	}
	var body []yaml.Node
	var rows []Vars
	for i := 0; i+1 < len(spec.Content); i += 2 {
		key, val := spec.Content[i], spec.Content[i+1]
		switch key.Value {
		case "rows":
			rendered, err := renderNode(val, vars)
			if err != nil {
				return nil, nil, true, err
			}
			if err := rendered.Decode(&rows); err != nil {
				return nil, nil, true, fmt.Errorf("line %d: foreach rows: %w", val.Line, err)
			}
		case "steps":
			if err := val.Decode(&body); err != nil {
				return nil, nil, true, fmt.Errorf("line %d: foreach steps: %w", val.Line, err)
			}
		default:
			return nil, nil, true, fmt.Errorf("line %d: unknown foreach field %q", key.Line, key.Value)
		}
	}
	if len(rows) == 0 || len(body) == 0 {
		return nil, nil, true, fmt.Errorf("line %d: foreach needs rows and steps", n.Line)
	}
	return body, rows, true, nil
}

func compileStep(n *yaml.Node, vars Vars) (Step, error) {
	line := n.Line
	fail := func(err error) (Step, error) { return Step{}, fmt.Errorf("line %d: %w", line, err) }

	rendered, err := renderNode(n, vars)
	if err != nil {
		return Step{}, err
	}
	raw, err := yaml.Marshal(rendered)
	if err != nil {
		return fail(err)
	}
	var spec stepSpec
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return fail(err)
	}
	step, err := spec.compile()
	if err != nil {
		return fail(err)
	}
	step.Line = line
	return step, nil
}

func (s stepSpec) compile() (Step, error) {
	set := 0
	for _, present := range []bool{
		s.Navigate != nil, s.Wait != nil, s.Scroll != nil, s.Evaluate != nil,
		s.Click != nil, s.DoubleClick != nil, s.Fill != nil, s.Check != nil,
		s.Uncheck != nil, s.ScrollIntoView != nil, s.Drag != nil, s.Expect != nil,
	} {
		if present {
			set++
		}
	}
	if set != 1 {
		return Step{}, fmt.Errorf("a step needs exactly one action or expect, found %d", set)
	}

	step := Step{Name: s.Name}
	var err error
	switch {
	case s.Navigate != nil:
		step.Kind, step.URL = KindNavigate, *s.Navigate
	case s.Wait != nil:
		step.Kind, step.Duration = KindWait, time.Duration(*s.Wait)
	case s.Scroll != nil:
		step.Kind, step.DX, step.DY = KindScroll, s.Scroll.X, s.Scroll.Y
	case s.Evaluate != nil:
		step.Kind, step.Script = KindEvaluate, *s.Evaluate
		if strings.TrimSpace(step.Script) == "" {
			return Step{}, errors.New("evaluate needs a script")
		}
	case s.Click != nil:
		step.Kind = KindClick
		step.Target, err = s.Click.locator()
		if err == nil {
			step.Click, err = s.Click.clickOptions()
		}
	case s.DoubleClick != nil:
		step.Kind = KindDoubleClick
		step.Target, err = s.DoubleClick.locator()
	case s.Fill != nil:
		step.Kind = KindFill
		if s.Fill.Value == nil {
			return Step{}, errors.New("fill needs a value")
		}
		step.Text = *s.Fill.Value
		step.Target, err = s.Fill.locator()
	case s.Check != nil:
		step.Kind = KindCheck
		step.Target, err = s.Check.locator()
	case s.Uncheck != nil:
		step.Kind = KindUncheck
		step.Target, err = s.Uncheck.locator()
	case s.ScrollIntoView != nil:
		step.Kind = KindScrollIntoView
		step.Target, err = s.ScrollIntoView.locator()
	case s.Drag != nil:
		step.Kind = KindDrag
		if step.Target, err = s.Drag.From.locator(); err != nil {
			return Step{}, fmt.Errorf("drag from: %w", err)
		}
		if step.Dest, err = s.Drag.To.locator(); err != nil {
			return Step{}, fmt.Errorf("drag to: %w", err)
		}
	case s.Expect != nil:
		step.Kind = KindExpect
		step.Expect, err = s.Expect.expectation()
		if err == nil && !step.Expect.Observed.PageLevel() {
			step.Target, err = s.Expect.locator()
		}
	}
	if err != nil {
		return Step{}, fmt.Errorf("%s: %w", step.Kind, err)
	}
	return step, nil
}

func (t targetSpec) empty() bool {
	return t.Role == "" && t.CSS == "" && t.Text == "" && t.XPath == "" && t.Label == ""
}

func (t targetSpec) locator() (locator.Locator, error) {
	var loc locator.Locator
	n := 0
	for _, v := range []string{t.Role, t.CSS, t.Text, t.XPath, t.Label} {
		if v != "" {
			n++
		}
	}
	if n != 1 {
		return loc, fmt.Errorf("a target needs exactly one of role, css, text, xpath, label; found %d", n)
	}
	switch {
	case t.Role != "":
		loc = locator.ByRole(t.Role, t.Name)
	case t.CSS != "":
		loc = locator.ByCSS(t.CSS)
	case t.Text != "":
		loc = locator.ByText(t.Text)
	case t.XPath != "":
		loc = locator.ByPath(t.XPath)
	case t.Label != "":
		loc = locator.ByLabel(t.Label)
	}
	if t.Name != "" && t.Role == "" {
		return loc, errors.New("name is only valid with role")
	}
	if t.Exact {
		loc = loc.Exact()
	}
	if t.HasText != "" || t.HasNotText != "" {
		loc = loc.Filter(locator.Filter{HasText: t.HasText, HasNotText: t.HasNotText})
	}
	if t.First && t.Nth != nil {
		return loc, errors.New("first and nth are mutually exclusive")
	}
	if t.First {
		loc = loc.First()
	}
	if t.Nth != nil {
		if *t.Nth < 0 {
			return loc, fmt.Errorf("negative nth %d", *t.Nth)
		}
		loc = loc.Nth(*t.Nth)
	}
	return loc, loc.Validate()
}

func (a *actionSpec) clickOptions() (browser.ClickOptions, error) {
	var opts browser.ClickOptions
	switch browser.MouseButton(a.Button) {
	case "", browser.ButtonLeft:
	case browser.ButtonRight, browser.ButtonMiddle:
		opts.Button = browser.MouseButton(a.Button)
	default:
		return opts, fmt.Errorf("unknown button %q", a.Button)
	}
	if (a.X == nil) != (a.Y == nil) {
		return opts, errors.New("position needs both x and y")
	}
	if a.X != nil {
		opts.Position = &browser.Point{X: *a.X, Y: *a.Y}
	}
	return opts, nil
}

func (e *expectSpec) expectation() (*Expectation, error) {
	var out []*Expectation
	add := func(x *Expectation) { out = append(out, x) }
	flag := func(o Observed, v *bool) {
		if v != nil {
			add(&Expectation{Observed: o, Negate: !*v})
		}
	}

	if e.ToHaveText != nil {
		add(&Expectation{Observed: ObserveText, Want: *e.ToHaveText})
	}
	if e.ToHaveTexts != nil {
		add(&Expectation{Observed: ObserveTexts, Wants: slices.Clone(*e.ToHaveTexts)})
	}
	if e.ToHaveClass != nil {
		add(&Expectation{Observed: ObserveClass, Want: *e.ToHaveClass})
	}
	flag(ObserveVisible, e.ToBeVisible)
	flag(ObserveInViewport, e.ToBeInViewport)
	if e.ToHaveCSS != nil {
		add(&Expectation{Observed: ObserveCSS, Property: e.ToHaveCSS.Property, Want: e.ToHaveCSS.Value})
	}
	flag(ObserveChecked, e.ToBeChecked)
	flag(ObserveEnabled, e.ToBeEnabled)
	flag(ObserveFocused, e.ToBeFocused)
	if e.ToHaveValue != nil {
		add(&Expectation{Observed: ObserveValue, Want: *e.ToHaveValue})
	}
	if e.ToHaveAttribute != nil {
		add(&Expectation{Observed: ObserveAttribute, Property: e.ToHaveAttribute.Name, Want: e.ToHaveAttribute.Value})
	}
	if e.ToHaveCount != nil {
		add(&Expectation{Observed: ObserveCount, Count: *e.ToHaveCount})
	}
	if e.ToHaveURL != nil {
		add(&Expectation{Observed: ObserveURL, Want: *e.ToHaveURL})
	}
	if e.ToHaveTitle != nil {
		add(&Expectation{Observed: ObserveTitle, Want: *e.ToHaveTitle})
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("an expect needs exactly one condition, found %d", len(out))
	}

	x := out[0]
	if e.Not {
		x.Negate = !x.Negate
	}
	x.Timeout = e.Timeout.ptr()
	switch x.Observed {
	case ObserveCSS:
		if x.Property == "" {
			return nil, errors.New("to_have_css needs a property")
		}
	case ObserveAttribute:
		if x.Property == "" {
			return nil, errors.New("to_have_attribute needs a name")
		}
	case ObserveCount:
		if x.Count < 0 {
			return nil, fmt.Errorf("negative count %d", x.Count)
		}
	}

	x.Mode = MatchEqual
	if e.Match != "" {
		switch x.Observed {
		case ObserveText, ObserveValue, ObserveAttribute, ObserveURL, ObserveTitle:
		default:
			return nil, fmt.Errorf("match does not apply to %s", x.Observed)
		}
		x.Mode = MatchMode(e.Match)
	}
	switch x.Mode {
	case MatchEqual, MatchContains:
	case MatchRegexp:
		re, err := regexp.Compile(x.Want)
		if err != nil {
			return nil, fmt.Errorf("invalid regexp %q: %w", x.Want, err)
		}
		x.re = re
	default:
		return nil, fmt.Errorf("unknown match %q", e.Match)
	}

	if x.Observed.PageLevel() && !e.targetSpec.empty() {
		return nil, fmt.Errorf("%s is a page condition and takes no target", x.Observed)
	}
	return x, nil
}
