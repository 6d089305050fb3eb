package scenario

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kuitang/uicheck/internal/artifacts"
	"github.com/kuitang/uicheck/internal/browser"
	"github.com/kuitang/uicheck/internal/clock"
	"github.com/kuitang/uicheck/internal/errs"
	"github.com/kuitang/uicheck/internal/obs"
	"github.com/kuitang/uicheck/internal/session"
)

const (
	DefaultBudget = 2 * time.Minute
	// artifactTimeout bounds the failure capture, which runs after the
	// scenario budget may already be spent.
	artifactTimeout = 15 * time.Second
)

// Options configure a Runner. Zero values take defaults.
type Options struct {
	Provider browser.Provider
	Clock    clock.Clock
	RunID    string

	// Parallelism is the number of scenarios run at once.
	Parallelism int
	// LaunchRate limits new sessions per second; zero means unlimited.
	LaunchRate  float64
	LaunchBurst int

	// Session defaults, overridden per plan.
	BaseURL           string
	Timeout           time.Duration
	PollInterval      time.Duration
	NavigationTimeout time.Duration
	Budget            time.Duration
	ViewportWidth     int
	ViewportHeight    int

	Metrics   *obs.Metrics
	Artifacts artifacts.Store
}

// Runner executes plans, each in a fresh session.
type Runner struct {
	opts    Options
	limiter *rate.Limiter
}

// NewRunner validates opts and fills in defaults.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Provider == nil {
		return nil, errs.New(errs.InvalidArgument, "runner needs a browser provider")
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	if opts.Budget <= 0 {
		opts.Budget = DefaultBudget
	}
	limit := rate.Inf
	if opts.LaunchRate > 0 {
		limit = rate.Limit(opts.LaunchRate)
	}
	if opts.LaunchBurst <= 0 {
		opts.LaunchBurst = 1
	}
	return &Runner{opts: opts, limiter: rate.NewLimiter(limit, opts.LaunchBurst)}, nil
}

// RunID identifies this run in logs, spans and artifact keys.
func (r *Runner) RunID() string { return r.opts.RunID }

// Run executes every plan and returns the report. Outcomes keep plan order.
// A failing scenario never stops the others.
func (r *Runner) Run(ctx context.Context, plans []Plan) *Report {
	ctx = obs.WithCorrelation(ctx, obs.Correlation{RunID: r.opts.RunID})
	ctx, span := obs.StartSpan(ctx, "run", trace.WithAttributes(obs.AttrRunID.String(r.opts.RunID)))
	defer span.End()

	report := &Report{
		RunID:     r.opts.RunID,
		StartedAt: r.opts.Clock.Now(),
		Outcomes:  make([]Outcome, len(plans)),
	}
	for i, p := range plans {
		report.Outcomes[i] = Outcome{Scenario: p.Name, Source: p.Source, Status: Idle}
	}

	var g errgroup.Group
	g.SetLimit(r.opts.Parallelism)
	for i := range plans {
		g.Go(func() error {
			report.Outcomes[i] = r.RunPlan(ctx, plans[i])
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = r.opts.Clock.Now().Sub(report.StartedAt)
	report.tally()
	obs.From(ctx).Info("run finished",
		"scenarios", report.Totals.Scenarios,
		"passed", report.Totals.Passed,
		"failed", report.Totals.Failed,
		"errored", report.Totals.Errored,
		"timed_out", report.Totals.TimedOut)
	return report
}

// RunPlan runs one scenario in its own session and returns its outcome.
func (r *Runner) RunPlan(ctx context.Context, p Plan) Outcome {
	clk := r.opts.Clock
	start := clk.Now()
	out := Outcome{Scenario: p.Name, Source: p.Source, Status: Running}

	ctx = obs.WithCorrelation(ctx, obs.Correlation{RunID: r.opts.RunID, Scenario: p.Name})
	ctx, span := obs.StartSpan(ctx, "scenario",
		trace.WithAttributes(obs.AttrRunID.String(r.opts.RunID), obs.AttrScenario.String(p.Name)))
	defer span.End()
	log := obs.From(ctx)

	budget := p.Budget
	if budget <= 0 {
		budget = r.opts.Budget
	}
	runCtx, cancel := context.WithTimeoutCause(ctx, budget, ErrBudgetExceeded)
	defer cancel()

	finish := func(status Status, err error) Outcome {
		out.Status = status
		if err != nil {
			out.Code = errs.CodeOf(err)
			out.Error = err.Error()
			if diag, ok := errs.DiagnosticsOf(err); ok {
				out.Diagnostics = &diag
			}
			obs.RecordError(ctx, err)
		}
		out.Duration = clk.Now().Sub(start)
		r.opts.Metrics.ObserveScenario(string(status), out.Duration)
		span.SetAttributes(obs.AttrStatus.String(string(status)))
		log.Info("scenario finished", "status", status, "duration_ms", out.Duration.Milliseconds(), "steps_run", out.StepsRun)
		return out
	}

	if err := r.limiter.Wait(runCtx); err != nil {
		return finish(classify(runCtx, err), fmt.Errorf("wait for session slot: %w", err))
	}
	baseURL := p.BaseURL
	if baseURL == "" {
		baseURL = r.opts.BaseURL
	}
	sess, err := session.New(runCtx, r.opts.Provider, session.Options{
		BaseURL:           baseURL,
		Timeout:           firstPositive(p.Timeout, r.opts.Timeout),
		PollInterval:      firstPositive(p.PollInterval, r.opts.PollInterval),
		NavigationTimeout: r.opts.NavigationTimeout,
		ViewportWidth:     r.opts.ViewportWidth,
		ViewportHeight:    r.opts.ViewportHeight,
		Clock:             budgetClock{Clock: clk, deadline: start.Add(budget)},
		Metrics:           r.opts.Metrics,
	})
	if err != nil {
		return finish(classify(runCtx, err), err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn("close session", "error", err)
		}
	}()
	out.SessionID = sess.ID()
	log.Info("scenario started", "session_id", sess.ID(), "steps", len(p.Steps))

	for i, step := range p.Steps {
		err := r.runStep(runCtx, sess, i, step)
		out.StepsRun = i + 1
		if err == nil {
			continue
		}
		out.FailingStep = i + 1
		out.StepDescription = step.Describe()
		out.StepLine = step.Line
		status := classify(runCtx, err)
		if status == TimedOut && !errors.Is(err, ErrBudgetExceeded) {
			err = fmt.Errorf("%w after %s: %w", ErrBudgetExceeded, budget, err)
		}
		if loc := r.capture(ctx, sess, p.Name, i+1); loc != "" {
			out.Artifacts = append(out.Artifacts, loc)
		}
		return finish(status, err)
	}
	return finish(Passed, nil)
}

func firstPositive(ds ...time.Duration) time.Duration {
	for _, d := range ds {
		if d > 0 {
			return d
		}
	}
	return 0
}

// classify maps a step error to a terminal status.
func classify(ctx context.Context, err error) Status {
	if errors.Is(err, ErrBudgetExceeded) || errors.Is(context.Cause(ctx), ErrBudgetExceeded) {
		return TimedOut
	}
	if errors.Is(err, context.Canceled) {
		return Errored
	}
	if errs.IsFailure(errs.CodeOf(err)) {
		return Failed
	}
	return Errored
}

func (r *Runner) runStep(ctx context.Context, sess *session.Session, i int, step Step) error {
	ctx = obs.WithCorrelation(ctx, obs.Correlation{Step: strconv.Itoa(i + 1)})
	ctx, span := obs.StartSpan(ctx, "step "+string(step.Kind),
		trace.WithAttributes(obs.AttrStepIndex.Int(i+1), obs.AttrStepKind.String(string(step.Kind))))
	defer span.End()
	r.opts.Metrics.ObserveStep(string(step.Kind))

	err := execute(ctx, sess, step)
	span.SetAttributes(obs.AttrURL.String(sess.URL()))
	if err != nil {
		span.SetAttributes(obs.AttrErrorCode.String(string(errs.CodeOf(err))))
		if diag, ok := errs.DiagnosticsOf(err); ok {
			span.SetAttributes(obs.AttrAttempts.Int(diag.Attempts))
		}
		obs.RecordError(ctx, err)
		obs.From(ctx).Info("step failed", "description", step.Describe(), "code", errs.CodeOf(err), "error", err)
		return err
	}
	obs.From(ctx).Debug("step passed", "description", step.Describe())
	return nil
}

func execute(ctx context.Context, sess *session.Session, step Step) error {
	switch step.Kind {
	case KindNavigate:
		return sess.Navigate(ctx, step.URL)
	case KindWait:
		return sess.Wait(ctx, step.Duration)
	case KindScroll:
		return sess.ScrollBy(ctx, step.DX, step.DY)
	case KindEvaluate:
		_, err := sess.Evaluate(ctx, step.Script, nil)
		return err
	case KindClick:
		return sess.Locate(step.Target).Click(ctx, step.Click)
	case KindDoubleClick:
		return sess.Locate(step.Target).DoubleClick(ctx)
	case KindFill:
		return sess.Locate(step.Target).Fill(ctx, step.Text)
	case KindCheck:
		return sess.Locate(step.Target).Check(ctx)
	case KindUncheck:
		return sess.Locate(step.Target).Uncheck(ctx)
	case KindScrollIntoView:
		return sess.Locate(step.Target).ScrollIntoView(ctx)
	case KindDrag:
		return sess.Locate(step.Target).DragTo(ctx, sess.Locate(step.Dest))
	case KindExpect:
		e := step.Expect
		if e == nil {
			return errs.New(errs.InvalidArgument, "expect step without expectation")
		}
		if e.Observed.PageLevel() {
			return sess.Expect(ctx, e.Observable(), e.Matcher(), e.Options()...)
		}
		return sess.Locate(step.Target).Expect(ctx, e.Observable(), e.Matcher(), e.Options()...)
	default:
		return errs.Newf(errs.InvalidArgument, "unknown step kind %q", step.Kind)
	}
}

// capture stores a page capture for the failing step and returns its location.
// Capture problems are logged, never reported as the scenario's error.
func (r *Runner) capture(ctx context.Context, sess *session.Session, scenario string, step int) string {
	if r.opts.Artifacts == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), artifactTimeout)
	defer cancel()
	log := obs.From(ctx)

	data, err := sess.Screenshot(ctx)
	if err != nil {
		log.Warn("capture failed", "error", err)
		return ""
	}
	contentType := http.DetectContentType(data)
	ext := "bin"
	switch {
	case strings.HasPrefix(contentType, "image/png"):
		ext = "png"
	case strings.HasPrefix(contentType, "text/html"):
		ext = "html"
	case strings.HasPrefix(contentType, "text/"):
		ext = "txt"
	}
	loc, err := r.opts.Artifacts.Put(ctx, artifacts.Key(r.opts.RunID, scenario, step, ext), data, contentType)
	if err != nil {
		log.Warn("artifact upload failed", "error", err)
		return ""
	}
	return loc
}
