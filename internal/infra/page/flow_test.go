package page_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/caniclickit/internal/application/cache"
	"github.com/bryanwahyu/caniclickit/internal/application/hover"
	"github.com/bryanwahyu/caniclickit/internal/application/messaging"
	appquota "github.com/bryanwahyu/caniclickit/internal/application/quota"
	appscans "github.com/bryanwahyu/caniclickit/internal/application/scans"
	"github.com/bryanwahyu/caniclickit/internal/domain/scans"
	"github.com/bryanwahyu/caniclickit/internal/infra/browser"
	"github.com/bryanwahyu/caniclickit/internal/infra/db/memory"
	"github.com/bryanwahyu/caniclickit/internal/infra/page"
	"github.com/bryanwahyu/caniclickit/internal/infra/render"
)

const (
	inboxURL    = "https://mail.example.com/inbox"
	phishingURL = "https://paypa1-secure.example/login"
	inboxMarkup = `<html><body>
<p>Your account is locked. <a id="bad" href="https://paypa1-secure.example/login">Verify now</a></p>
<p><a id="docs" href="/help">Help</a></p>
</body></html>`
)

type scriptedScanner struct {
	mu    sync.Mutex
	calls int
}

func (s *scriptedScanner) Scan(_ context.Context, req scans.Request) (*scans.ScanResult, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	v := scans.VerdictSafe
	if req.Content == phishingURL {
		v = scans.VerdictCritical
	}
	return &scans.ScanResult{
		ID:                 "s-42",
		Verdict:            v,
		Confidence:         scans.ConfidenceHigh,
		Summary:            "Impersonates PayPal with a lookalike domain",
		ConsequenceWarning: "Entering your password here hands it to an attacker.",
		Signals:            []scans.Signal{},
		ScanType:           scans.ScanTypeURL,
		ScannedAt:          time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
	}, nil
}

func (s *scriptedScanner) PageTrust(context.Context, string) (*scans.PageTrust, error) {
	return &scans.PageTrust{Verdict: scans.VerdictSafe}, nil
}

func (s *scriptedScanner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type flow struct {
	page    *page.Page
	machine *hover.Machine
	scanner *scriptedScanner
	board   *browser.Board
	tracker *appquota.Tracker
}

func newFlow(t *testing.T, opts ...page.Option) *flow {
	t.Helper()
	p, err := page.New(inboxURL, inboxMarkup, opts...)
	require.NoError(t, err)

	local := memory.New()
	f := &flow{page: p, scanner: &scriptedScanner{}, board: browser.NewBoard(), tracker: appquota.NewTracker(local, nil)}
	svc := &appscans.Service{
		Scanner: f.scanner,
		Cache:   cache.New(0, 0, nil),
		Quota:   f.tracker,
		Badge:   f.board,
		Storage: local,
	}
	router := messaging.NewRouter(svc, f.tracker, nil)
	f.machine = hover.New(
		hover.Config{PageURL: inboxURL, Debounce: 5 * time.Millisecond},
		hover.TimerScheduler{},
		hover.RouterMessenger{Router: router, Tab: 12},
		render.NewPresenter(p),
		nil,
	)
	return f
}

func (f *flow) hoverUntilShowing(t *testing.T, href string) {
	t.Helper()
	f.machine.Dispatch(hover.PointerOver{Href: href, At: hover.Point{X: 200, Y: 140}})
	require.Eventually(t, func() bool { return f.machine.State() == hover.Showing }, 2*time.Second, 2*time.Millisecond)
}

func TestPhishingLink_GoBackKeepsUserOnPage(t *testing.T) {
	f := newFlow(t)
	f.hoverUntilShowing(t, phishingURL)

	require.True(t, f.page.Mounted(render.TooltipID))
	assert.Contains(t, f.page.Text(render.TooltipID), "Impersonates PayPal")

	st, ok := f.board.Get(12)
	require.True(t, ok)
	assert.Equal(t, "✕", st.Text)

	reaction := f.machine.Dispatch(hover.Click{Href: phishingURL})
	assert.True(t, reaction.PreventDefault)
	assert.True(t, reaction.StopPropagation)
	require.True(t, f.page.Mounted(render.InterstitialID))
	assert.False(t, f.page.Mounted(render.TooltipID))

	require.NoError(t, f.page.ClickAction(render.InterstitialID, "go-back"))
	assert.False(t, f.page.Mounted(render.InterstitialID))
	assert.Equal(t, inboxURL, f.page.Location())
}

func TestPhishingLink_ProceedNavigatesOnce(t *testing.T) {
	f := newFlow(t)
	f.hoverUntilShowing(t, phishingURL)

	f.machine.Dispatch(hover.Click{Href: phishingURL})
	require.NoError(t, f.page.ClickAction(render.InterstitialID, "proceed"))
	assert.Equal(t, phishingURL, f.page.Location())
	assert.ErrorIs(t, f.page.ClickAction(render.InterstitialID, "proceed"), page.ErrNoRoot)
}

func TestRepeatHover_UsesCacheAndQuotaOnce(t *testing.T) {
	f := newFlow(t)
	f.hoverUntilShowing(t, phishingURL)
	f.machine.Dispatch(hover.PointerOut{Href: phishingURL})
	assert.Equal(t, hover.Idle, f.machine.State())

	f.hoverUntilShowing(t, phishingURL)
	assert.Equal(t, 1, f.scanner.count())

	counts, err := f.tracker.Peek(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts.ScansToday)
	assert.Equal(t, 4, counts.Remaining)
}

func TestSafeLink_ClickPassesThrough(t *testing.T) {
	f := newFlow(t)
	f.hoverUntilShowing(t, "/help")

	reaction := f.machine.Dispatch(hover.Click{Href: "/help"})
	assert.False(t, reaction.PreventDefault)
	assert.False(t, f.page.Mounted(render.InterstitialID))
}

func TestRestrictedPage_UsesNativeDialog(t *testing.T) {
	var asked []string
	f := newFlow(t, page.WithIsolationBlocked(), page.WithConfirm(func(msg string) bool {
		asked = append(asked, msg)
		return true
	}))
	require.True(t, f.machine.Restricted())

	f.hoverUntilShowing(t, phishingURL)
	assert.False(t, f.page.Mounted(render.TooltipID))

	reaction := f.machine.Dispatch(hover.Click{Href: phishingURL})
	assert.True(t, reaction.PreventDefault)
	require.Len(t, asked, 1)
	assert.Contains(t, asked[0], "Impersonates PayPal")
	assert.Equal(t, phishingURL, f.page.Location())
}
