package sites

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/uicheck/internal/browser"
	"github.com/kuitang/uicheck/internal/browser/fakedom"
	"github.com/kuitang/uicheck/internal/clock"
	"github.com/kuitang/uicheck/internal/locator"
)

func openLudic(t *testing.T) (browser.Page, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	b := fakedom.New(clk)
	Register(b)
	p, err := b.NewPage(context.Background(), browser.PageOptions{ViewportWidth: 1280, ViewportHeight: 720})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	require.NoError(t, p.Goto(context.Background(), LudicURL))
	return p, clk
}

func progressVisible(t *testing.T, p browser.Page) bool {
	t.Helper()
	ctx := context.Background()
	els, err := p.Query(ctx, locator.ByCSS("#progress-scroll"))
	require.NoError(t, err)
	require.Len(t, els, 1)
	v, err := els[0].Visible(ctx)
	require.NoError(t, err)
	return v
}

func TestProgressWidgetHidesExactlyAfterDelay(t *testing.T) {
	p, clk := openLudic(t)
	ctx := context.Background()

	assert.False(t, progressVisible(t, p), "hidden before scrolling")
	require.NoError(t, p.ScrollBy(ctx, 0, 500))
	assert.True(t, progressVisible(t, p), "shown while scrolling")

	clk.Advance(ProgressHideDelay - time.Millisecond)
	assert.True(t, progressVisible(t, p), "still shown at 2999ms")

	clk.Advance(time.Millisecond)
	assert.False(t, progressVisible(t, p), "hidden at 3000ms")
}

func TestProgressWidgetDelayRestartsOnScroll(t *testing.T) {
	p, clk := openLudic(t)
	ctx := context.Background()

	require.NoError(t, p.ScrollBy(ctx, 0, 500))
	clk.Advance(2 * time.Second)
	require.NoError(t, p.ScrollBy(ctx, 0, 100))

	clk.Advance(ProgressHideDelay - time.Millisecond)
	assert.True(t, progressVisible(t, p), "a second scroll restarts the delay")

	clk.Advance(time.Millisecond)
	assert.False(t, progressVisible(t, p))
}

func TestProgressWidgetHidesAtTop(t *testing.T) {
	p, _ := openLudic(t)
	ctx := context.Background()

	require.NoError(t, p.ScrollBy(ctx, 0, 500))
	require.True(t, progressVisible(t, p))
	require.NoError(t, p.ScrollBy(ctx, 0, -500))
	assert.False(t, progressVisible(t, p))
}
