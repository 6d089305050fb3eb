// Package expect is the assertion engine: it re-reads an observable until a
// matcher holds or a timeout elapses, and reports the last observation when it
// gives up.
package expect

import (
	"context"
	"errors"
	"time"

	"github.com/kuitang/uicheck/internal/clock"
)

const (
	DefaultTimeout  = 5 * time.Second
	DefaultInterval = 100 * time.Millisecond
)

// ErrTimeout is returned by Poll when the condition never held.
var ErrTimeout = errors.New("expect: condition not met before timeout")

// Options control a single poll.
type Options struct {
	Timeout  time.Duration
	Interval time.Duration
	Negate   bool
	Clock    clock.Clock
	// Observer is called once per finished poll with the attempt count.
	Observer func(attempts int, timedOut bool)
}

// Option customises Options.
type Option func(*Options)

// Not inverts the assertion.
func Not() Option { return func(o *Options) { o.Negate = !o.Negate } }

// Within overrides the timeout.
func Within(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }

// Every overrides the poll interval.
func Every(d time.Duration) Option { return func(o *Options) { o.Interval = d } }

// Apply returns a copy of o with opts applied.
func (o Options) Apply(opts ...Option) Options {
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o Options) withDefaults() Options {
	if o.Timeout < 0 {
		o.Timeout = 0
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Clock == nil {
		o.Clock = clock.Real{}
	}
	return o
}

// Attempt is one reading taken by Poll.
type Attempt struct {
	Observed []string
	Err      error
}

// Outcome summarises a finished poll.
type Outcome struct {
	Attempts int
	Last     Attempt
	Elapsed  time.Duration
}

// Poll calls try until it reports done, ctx ends, or the timeout elapses.
// The first attempt happens immediately; a zero timeout means exactly one attempt.
func Poll(ctx context.Context, opts Options, try func(ctx context.Context) (bool, Attempt)) (Outcome, error) {
	opts = opts.withDefaults()
	clk := opts.Clock
	start := clk.Now()
	deadline := start.Add(opts.Timeout)

	var out Outcome
	finish := func(err error) (Outcome, error) {
		out.Elapsed = clk.Now().Sub(start)
		if opts.Observer != nil {
			opts.Observer(out.Attempts, errors.Is(err, ErrTimeout))
		}
		return out, err
	}

	for {
		out.Attempts++
		done, at := try(ctx)
		out.Last = at
		if done {
			return finish(nil)
		}
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		now := clk.Now()
		if !now.Before(deadline) {
			return finish(ErrTimeout)
		}
		wait := opts.Interval
		if rem := deadline.Sub(now); rem < wait {
			wait = rem
		}
		if err := clk.Sleep(ctx, wait); err != nil {
			return finish(err)
		}
	}
}
