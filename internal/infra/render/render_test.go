package render_test

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/caniclickit/internal/application/hover"
	"github.com/bryanwahyu/caniclickit/internal/domain/advisory"
	"github.com/bryanwahyu/caniclickit/internal/domain/scans"
	"github.com/bryanwahyu/caniclickit/internal/infra/page"
	"github.com/bryanwahyu/caniclickit/internal/infra/render"
)

const hostile = `<img src=x onerror="alert(1)"><script>alert(2)</script>`

func newPage(t *testing.T, opts ...page.Option) *page.Page {
	t.Helper()
	p, err := page.New("https://mail.example.com/inbox", `<html><body><a href="https://evil.example/">x</a></body></html>`, opts...)
	require.NoError(t, err)
	return p
}

func parse(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)
	return doc
}

func TestTooltipMarkup_UserTextIsInert(t *testing.T) {
	markup, err := render.TooltipMarkup(advisory.TooltipData{
		URL:        "https://evil.example/?q=" + hostile,
		Verdict:    scans.VerdictHigh,
		Confidence: scans.ConfidenceHigh,
		Summary:    hostile,
	})
	require.NoError(t, err)

	doc := parse(t, markup)
	assert.Zero(t, doc.Find("img").Length())
	assert.Zero(t, doc.Find("script").Length())
	assert.Equal(t, hostile, doc.Find(".cici-tooltip__summary").Text())
	assert.Equal(t, "Dangerous", doc.Find(".cici-tooltip__title").Text())
	assert.Equal(t, "High confidence", doc.Find(".cici-tooltip__confidence").Text())
	assert.Equal(t, "Unknown age", doc.Find(".cici-tooltip__domain-age").Text())

	style, _ := doc.Find(".cici-tooltip").Attr("style")
	assert.Contains(t, style, "#F04438")
}

func TestTooltipMarkup_LoadingTruncatesURL(t *testing.T) {
	long := "https://example.com/" + strings.Repeat("a", 100)
	markup, err := render.TooltipMarkup(advisory.Loading(long))
	require.NoError(t, err)

	doc := parse(t, markup)
	assert.Equal(t, 1, doc.Find(".cici-tooltip__spinner").Length())
	url := doc.Find(".cici-tooltip__url").Text()
	assert.True(t, strings.HasSuffix(url, "…"))
	assert.Equal(t, 61, len([]rune(url)))
}

func TestInterstitialMarkup_UserTextIsInert(t *testing.T) {
	markup, err := render.InterstitialMarkup(advisory.InterstitialData{
		URL:                  "https://evil.example/",
		Verdict:              scans.VerdictCritical,
		ThreatSummary:        hostile,
		ConsequenceWarning:   hostile,
		SafeActionSuggestion: hostile,
	})
	require.NoError(t, err)

	doc := parse(t, markup)
	assert.Zero(t, doc.Find("img").Length())
	assert.Zero(t, doc.Find("script").Length())
	assert.Equal(t, "Critical Threat", doc.Find(".cici-interstitial__threat").Text())
	assert.Equal(t, hostile, doc.Find(".cici-interstitial__summary").Text())
	assert.Contains(t, doc.Find(".cici-interstitial__consequence").Text(), hostile)
}

func TestPlace(t *testing.T) {
	vp := render.Size{Width: 1000, Height: 600}
	size := render.Size{Width: 300, Height: 100}

	cases := []struct {
		name      string
		at        hover.Point
		left, top float64
	}{
		{"below right", hover.Point{X: 100, Y: 100}, 116, 120},
		{"flip left near right edge", hover.Point{X: 900, Y: 100}, 584, 120},
		{"flip up near bottom", hover.Point{X: 100, Y: 550}, 116, 430},
		{"flip both", hover.Point{X: 900, Y: 550}, 584, 430},
		{"near top", hover.Point{X: 250, Y: 0}, 266, 20},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			left, top := render.Place(c.at, size, vp)
			assert.Equal(t, c.left, left)
			assert.Equal(t, c.top, top)
		})
	}

	left, top := render.Place(hover.Point{X: 10, Y: 10}, render.Size{Width: 990, Height: 590}, vp)
	assert.Equal(t, 8.0, left)
	assert.Equal(t, 8.0, top)
}

func TestTooltip_ReplacesInsteadOfStacking(t *testing.T) {
	p := newPage(t)
	tip := render.NewTooltip(p)

	require.NoError(t, tip.Show(hover.Point{X: 10, Y: 10}, advisory.Loading("https://evil.example/")))
	require.NoError(t, tip.Show(hover.Point{X: 10, Y: 10}, advisory.TooltipData{
		URL: "https://evil.example/", Verdict: scans.VerdictSafe, Confidence: scans.ConfidenceLow, Summary: "fine",
	}))

	html, err := p.HTML()
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(html, render.TooltipID))

	spinner, err := p.Query(render.TooltipID, ".cici-tooltip__spinner")
	require.NoError(t, err)
	assert.Zero(t, spinner.Length())

	left, top, ok := p.PositionOf(render.TooltipID)
	require.True(t, ok)
	assert.Equal(t, 26.0, left)
	assert.Equal(t, 30.0, top)
	assert.Contains(t, p.Stylesheet(render.TooltipID), ":host")

	tip.Hide()
	assert.False(t, tip.Visible())
}

func TestTooltip_BlockedPage(t *testing.T) {
	p := newPage(t, page.WithIsolationBlocked())
	err := render.NewTooltip(p).Show(hover.Point{}, advisory.Loading("https://evil.example/"))
	assert.ErrorIs(t, err, page.ErrIsolationBlocked)
}

func interstitialData() advisory.InterstitialData {
	return advisory.NewInterstitialData("https://evil.example/", &scans.ScanResult{
		Verdict: scans.VerdictHigh,
		Summary: "Credential harvesting page",
	})
}

func TestInterstitial_Actions(t *testing.T) {
	t.Run("go back", func(t *testing.T) {
		p := newPage(t)
		var back, proceed int
		require.NoError(t, render.NewInterstitial(p).Show(interstitialData(), func() { back++ }, func() { proceed++ }))

		require.NoError(t, p.ClickAction(render.InterstitialID, "go-back"))
		assert.Equal(t, 1, back)
		assert.Zero(t, proceed)
		assert.False(t, p.Mounted(render.InterstitialID))

		p.PressKey("Escape")
		assert.Equal(t, 1, back, "escape handler removed after close")
	})

	t.Run("proceed once", func(t *testing.T) {
		p := newPage(t)
		var proceed int
		in := render.NewInterstitial(p)
		require.NoError(t, in.Show(interstitialData(), func() {}, func() { proceed++ }))

		require.NoError(t, p.ClickAction(render.InterstitialID, "proceed"))
		assert.ErrorIs(t, p.ClickAction(render.InterstitialID, "proceed"), page.ErrNoRoot)
		assert.Equal(t, 1, proceed)
		assert.False(t, in.Visible())
	})

	t.Run("escape", func(t *testing.T) {
		p := newPage(t)
		var back int
		require.NoError(t, render.NewInterstitial(p).Show(interstitialData(), func() { back++ }, func() {}))

		p.PressKey("Enter")
		assert.Zero(t, back)
		p.PressKey("Escape")
		assert.Equal(t, 1, back)
		assert.False(t, p.Mounted(render.InterstitialID))
	})

	t.Run("recovery keeps the warning open", func(t *testing.T) {
		p := newPage(t)
		require.NoError(t, render.NewInterstitial(p).Show(interstitialData(), func() {}, func() {}))

		require.NoError(t, p.ClickAction(render.InterstitialID, "recovery"))
		assert.Equal(t, []string{advisory.RecoveryURL}, p.Opened())
		assert.True(t, p.Mounted(render.InterstitialID))
		assert.Equal(t, "https://mail.example.com/inbox", p.Location())
	})
}

func TestInterstitial_DialogParity(t *testing.T) {
	d := interstitialData()
	p := newPage(t)
	require.NoError(t, render.NewInterstitial(p).Show(d, func() {}, func() {}))

	text := p.Text(render.InterstitialID)
	msg := advisory.DialogMessage(d)
	for _, part := range []string{d.ThreatSummary, d.ConsequenceWarning, d.SafeActionSuggestion, "What could happen:", "What to do instead:"} {
		assert.Contains(t, text, part)
		assert.Contains(t, msg, part)
	}
}

func TestPresenter_DelegatesToSurface(t *testing.T) {
	p := newPage(t, page.WithConfirm(func(string) bool { return true }))
	pr := render.NewPresenter(p)

	require.NoError(t, pr.ProbeIsolation())
	require.NoError(t, pr.ShowTooltip(hover.Point{}, advisory.Loading("https://evil.example/")))
	pr.HideTooltip()
	assert.False(t, p.Mounted(render.TooltipID))

	assert.True(t, pr.Confirm("sure?"))
	assert.Equal(t, []string{"sure?"}, p.Dialogs())

	pr.Navigate("https://evil.example/")
	assert.Equal(t, "https://evil.example/", p.Location())
}
