package scenario

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kuitang/uicheck/internal/errs"
)

// Outcome is the result of one plan.
type Outcome struct {
	Scenario  string `json:"scenario"`
	Source    string `json:"source,omitempty"`
	Status    Status `json:"status"`
	SessionID string `json:"session_id,omitempty"`
	StepsRun  int    `json:"steps_run"`
	// FailingStep is 1-based; zero when the scenario passed or never started.
	FailingStep     int               `json:"failing_step,omitempty"`
	StepDescription string            `json:"step,omitempty"`
	StepLine        int               `json:"line,omitempty"`
	Code            errs.Code         `json:"code,omitempty"`
	Error           string            `json:"error,omitempty"`
	Diagnostics     *errs.Diagnostics `json:"diagnostics,omitempty"`
	Artifacts       []string          `json:"artifacts,omitempty"`
	Duration        time.Duration     `json:"-"`
}

// Totals counts outcomes by status.
type Totals struct {
	Scenarios int `json:"scenarios"`
	Passed    int `json:"passed"`
	Failed    int `json:"failed"`
	Errored   int `json:"errored"`
	TimedOut  int `json:"timed_out"`
}

// Report is the result of a run.
type Report struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"-"`
	Outcomes  []Outcome     `json:"outcomes"`
	Totals    Totals        `json:"totals"`
}

func (r *Report) tally() {
	t := Totals{Scenarios: len(r.Outcomes)}
	for _, o := range r.Outcomes {
		switch o.Status {
		case Passed:
			t.Passed++
		case Failed:
			t.Failed++
		case TimedOut:
			t.TimedOut++
		default:
			t.Errored++
		}
	}
	r.Totals = t
}

// OK reports whether every scenario passed.
func (r *Report) OK() bool {
	return r.Totals.Passed == r.Totals.Scenarios
}

// WriteJSON writes the report as indented JSON with durations in milliseconds.
func (r *Report) WriteJSON(w io.Writer) error {
	type outcomeJSON struct {
		Outcome
		DurationMS int64 `json:"duration_ms"`
	}
	out := struct {
		*Report
		DurationMS int64         `json:"duration_ms"`
		Outcomes   []outcomeJSON `json:"outcomes"`
	}{Report: r, DurationMS: r.Duration.Milliseconds()}
	for _, o := range r.Outcomes {
		out.Outcomes = append(out.Outcomes, outcomeJSON{Outcome: o, DurationMS: o.Duration.Milliseconds()})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

var statusLabels = map[Status]string{
	Passed:   "PASS",
	Failed:   "FAIL",
	Errored:  "ERROR",
	TimedOut: "TIMEOUT",
}

// WriteText writes a human-readable summary.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	for _, o := range r.Outcomes {
		label, ok := statusLabels[o.Status]
		if !ok {
			label = strings.ToUpper(string(o.Status))
		}
		fmt.Fprintf(&b, "%-7s %s (%s)\n", label, o.Scenario, o.Duration.Round(time.Millisecond))
		if o.Status == Passed {
			continue
		}
		if o.FailingStep > 0 {
			where := ""
			if o.Source != "" && o.StepLine > 0 {
				where = fmt.Sprintf(" (%s:%d)", o.Source, o.StepLine)
			}
			fmt.Fprintf(&b, "        step %d%s: %s\n", o.FailingStep, where, o.StepDescription)
		}
		if o.Diagnostics != nil {
			for _, line := range strings.Split(o.Diagnostics.String(), "\n") {
				fmt.Fprintf(&b, "        %s\n", line)
			}
		} else if o.Error != "" {
			fmt.Fprintf(&b, "        error: %s\n", o.Error)
		}
		for _, a := range o.Artifacts {
			fmt.Fprintf(&b, "        artifact: %s\n", a)
		}
	}
	t := r.Totals
	fmt.Fprintf(&b, "\n%d scenarios: %d passed, %d failed, %d errored, %d timed out (run %s, %s)\n",
		t.Scenarios, t.Passed, t.Failed, t.Errored, t.TimedOut, r.RunID, r.Duration.Round(time.Millisecond))
	_, err := io.WriteString(w, b.String())
	return err
}
