package scenario

import (
	"context"
	"errors"
	"time"

	"github.com/kuitang/uicheck/internal/clock"
)

// ErrBudgetExceeded is the cause attached when a scenario runs out of time.
var ErrBudgetExceeded = errors.New("scenario: time budget exceeded")

// budgetClock refuses to sleep past the scenario deadline. It makes the
// budget observable on fake clocks, where the context deadline never fires.
type budgetClock struct {
	clock.Clock
	deadline time.Time
}

func (b budgetClock) Sleep(ctx context.Context, d time.Duration) error {
	remaining := b.deadline.Sub(b.Now())
	if d < remaining {
		return b.Clock.Sleep(ctx, d)
	}
	if remaining > 0 {
		if err := b.Clock.Sleep(ctx, remaining); err != nil {
			return err
		}
	}
	return ErrBudgetExceeded
}
