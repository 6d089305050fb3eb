package locator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/uicheck/internal/errs"
)

func TestString(t *testing.T) {
	t.Parallel()

	cases := []struct {
		loc  Locator
		want string
	}{
		{ByCSS("header"), "css=header"},
		{ByRole("button", "Click me"), `role=button[name="Click me"]`},
		{ByRole("link", ""), "role=link"},
		{ByText("First").Exact(), `text="First" exact`},
		{ByPath(`//div[@id="areas"]/h2`), `xpath=//div[@id="areas"]/h2`},
		{ByLabel("Enter Your Weight:"), `label="Enter Your Weight:"`},
		{ByCSS("svg").Filter(Filter{HasText: "Dark Mode"}), `css=svg >> has-text="Dark Mode"`},
		{ByCSS(".specialNumber").First(), "css=.specialNumber >> nth=0"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.loc.String())
	}
}

func TestRefinementsDoNotMutateOriginal(t *testing.T) {
	t.Parallel()

	base := ByCSS("li").Filter(Filter{HasText: "a"})
	narrowed := base.Filter(Filter{HasText: "b"}).Exact().Nth(2)

	require.Len(t, base.Filters(), 1)
	assert.False(t, base.IsExact())
	_, ok := base.Index()
	assert.False(t, ok)

	require.Len(t, narrowed.Filters(), 2)
	idx, ok := narrowed.Index()
	assert.True(t, ok)
	assert.Equal(t, 2, idx)

	// Mutating the returned slice must not leak into the locator.
	fs := narrowed.Filters()
	fs[0].HasText = "zzz"
	assert.Equal(t, "a", narrowed.Filters()[0].HasText)
}

func testFilterSharingIsSafe(t *rapid.T) {
	texts := rapid.SliceOfN(rapid.StringMatching(`[a-z]{1,6}`), 1, 6).Draw(t, "texts")
	base := ByCSS("div")
	for _, s := range texts[:len(texts)-1] {
		base = base.Filter(Filter{HasText: s})
	}
	a := base.Filter(Filter{HasText: "A"})
	b := base.Filter(Filter{HasText: "B"})

	fa, fb := a.Filters(), b.Filters()
	if fa[len(fa)-1].HasText != "A" || fb[len(fb)-1].HasText != "B" {
		t.Fatalf("sibling refinements interfered: %v vs %v", a, b)
	}
}

func TestFilterSharingIsSafe(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testFilterSharingIsSafe)
}

func TestEmptyFilterIsIgnored(t *testing.T) {
	t.Parallel()
	assert.Empty(t, ByCSS("a").Filter(Filter{}).Filters())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, ByRole("img", "Star Wars in the cinema").Validate())
	assert.True(t, errs.Is(ByCSS("  ").Validate(), errs.InvalidArgument))
	assert.True(t, errs.Is(Locator{}.Validate(), errs.InvalidArgument))
	assert.True(t, errs.Is(ByCSS("a").Nth(-5).Validate(), errs.InvalidArgument))
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()

	for _, s := range []Strategy{Role, CSS, Text, Path, Label} {
		got, err := ParseStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStrategy("shadow")
	assert.True(t, errs.Is(err, errs.InvalidArgument))
}
