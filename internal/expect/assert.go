package expect

import (
	"context"
	"errors"
	"fmt"

	"github.com/kuitang/uicheck/internal/errs"
)

// Check is one assertion: an observable of a subject and the matcher it must satisfy.
type Check struct {
	Subject    Subject
	Observable Observable
	Matcher    Matcher
}

func (c Check) describe(negate bool) string {
	expected := c.Matcher.String()
	if negate {
		expected = "not " + expected
	}
	return expected
}

// Assert polls c until it holds (or, negated, until it does not hold).
// A read error is not a sample: it satisfies neither polarity.
func Assert(ctx context.Context, c Check, opts Options) error {
	if c.Observable == nil {
		return errs.New(errs.InvalidArgument, "assertion has no observable")
	}
	negate := opts.Negate
	out, err := Poll(ctx, opts, func(ctx context.Context) (bool, Attempt) {
		observed, err := c.Observable.Observe(ctx, c.Subject)
		if err != nil {
			return false, Attempt{Err: err}
		}
		return c.Matcher.Match(observed) != negate, Attempt{Observed: observed}
	})
	if err == nil {
		return nil
	}

	diag := errs.Diagnostics{
		Subject:  fmt.Sprintf("%s %s", c.Subject, c.Observable.Name()),
		Expected: c.describe(negate),
		Observed: describeAttempt(out.Last),
		Attempts: out.Attempts,
	}
	if !errors.Is(err, ErrTimeout) {
		return &errs.Error{
			Code:        errs.InterruptCode(err, errs.AssertionTimeout),
			Message:     fmt.Sprintf("%s %s: interrupted", c.Subject, c.Observable.Name()),
			Err:         err,
			Diagnostics: &diag,
		}
	}
	msg := fmt.Sprintf("expected %s %s to be %s after %s",
		c.Subject, c.Observable.Name(), diag.Expected, out.Elapsed)
	return errs.WithDiagnostics(errs.AssertionTimeout, msg, diag)
}

func describeAttempt(a Attempt) string {
	if a.Err != nil {
		return "error: " + a.Err.Error()
	}
	return FormatObserved(a.Observed)
}
