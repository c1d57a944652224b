package scans

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/caniclickit/internal/application"
	"github.com/bryanwahyu/caniclickit/internal/application/cache"
	"github.com/bryanwahyu/caniclickit/internal/application/quota"
	"github.com/bryanwahyu/caniclickit/internal/domain/platform"
	"github.com/bryanwahyu/caniclickit/internal/domain/scanerrors"
	domain "github.com/bryanwahyu/caniclickit/internal/domain/scans"
	"github.com/bryanwahyu/caniclickit/internal/infra/db/memory"
)

type fakeScanner struct {
	mu       sync.Mutex
	result   *domain.ScanResult
	trust    *domain.PageTrust
	err      error
	requests []domain.Request
}

func (f *fakeScanner) Scan(_ context.Context, req domain.Request) (*domain.ScanResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.result, f.err
}

func (f *fakeScanner) PageTrust(context.Context, string) (*domain.PageTrust, error) {
	return f.trust, f.err
}

func (f *fakeScanner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeBadge struct {
	mu     sync.Mutex
	states map[platform.TabID]platform.BadgeState
	err    error
}

func (b *fakeBadge) SetBadge(_ context.Context, tab platform.TabID, st platform.BadgeState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	if b.states == nil {
		b.states = map[platform.TabID]platform.BadgeState{}
	}
	b.states[tab] = st
	return nil
}

func (b *fakeBadge) ClearBadge(_ context.Context, tab platform.TabID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.states, tab)
	return nil
}

type countingObserver struct {
	mu       sync.Mutex
	outcomes []string
	failures []string
}

func (o *countingObserver) ObserveScan(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *countingObserver) ObserveEffectFailure(effect string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures = append(o.failures, effect)
}

type fixture struct {
	svc      *Service
	scanner  *fakeScanner
	badge    *fakeBadge
	storage  *memory.Store
	tracker  *quota.Tracker
	observer *countingObserver
	now      time.Time
}

func newFixture() *fixture {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	clock := application.ClockFunc(func() time.Time { return now })
	st := memory.New()
	f := &fixture{
		scanner:  &fakeScanner{},
		badge:    &fakeBadge{},
		storage:  st,
		tracker:  quota.NewTracker(st, clock),
		observer: &countingObserver{},
		now:      now,
	}
	f.svc = &Service{
		Scanner:  f.scanner,
		Cache:    cache.New(0, 0, clock),
		Quota:    f.tracker,
		Badge:    f.badge,
		Storage:  st,
		Clock:    clock,
		Observer: f.observer,
	}
	return f
}

const phishing = "https://secure-account-review-now.xyz"

func criticalResult() *domain.ScanResult {
	return &domain.ScanResult{
		ID:                 "scan-123",
		Verdict:            domain.VerdictCritical,
		Confidence:         domain.ConfidenceHigh,
		Summary:            "Credential phishing page impersonating a bank.",
		ConsequenceWarning: "Your banking password could be stolen.",
		ScanType:           domain.ScanTypeURL,
	}
}

func TestScan_RemoteResultRunsAllEffects(t *testing.T) {
	f := newFixture()
	f.scanner.result = criticalResult()
	ctx := context.Background()

	got := f.svc.Scan(ctx, ScanCommand{URL: phishing, SourcePage: "https://mail.example/inbox", Tab: 7, HoverContext: true})

	require.NotNil(t, got)
	assert.Equal(t, domain.VerdictCritical, got.Verdict)

	require.Len(t, f.scanner.requests, 1)
	req := f.scanner.requests[0]
	assert.Equal(t, domain.ScanTypeURL, req.ScanType)
	assert.Equal(t, phishing, req.Content)
	require.NotNil(t, req.Metadata)
	assert.Equal(t, "https://mail.example/inbox", req.Metadata.SourcePage)
	assert.True(t, req.Metadata.HoverContext)

	counts, err := f.tracker.Peek(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.ScansToday)

	assert.Equal(t, platform.BadgeState{Text: "✕", Color: "#D92D20"}, f.badge.states[7])

	last, err := f.svc.LastScan(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ScanID("scan-123"), last.ID)

	assert.Equal(t, []string{OutcomeRemote}, f.observer.outcomes)
}

func TestScan_CacheHitIsFree(t *testing.T) {
	f := newFixture()
	f.scanner.result = criticalResult()
	ctx := context.Background()

	first := f.svc.Scan(ctx, ScanCommand{URL: phishing, Tab: 1})
	second := f.svc.Scan(ctx, ScanCommand{URL: phishing, Tab: 2})

	assert.Same(t, first, second)
	assert.Equal(t, 1, f.scanner.calls())
	counts, err := f.tracker.Peek(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.ScansToday, "cache hits do not count against quota")
	_, touched := f.badge.states[2]
	assert.False(t, touched, "cache hits do not update the badge")
	assert.Equal(t, []string{OutcomeRemote, OutcomeCacheHit}, f.observer.outcomes)
}

func TestScan_TransportFailureFallsBack(t *testing.T) {
	f := newFixture()
	f.scanner.err = scanerrors.Unreachable(errors.New("dial tcp: connection refused"))

	got := f.svc.Scan(context.Background(), ScanCommand{URL: "https://x.example", Tab: 3})

	assert.True(t, got.IsFallback())
	assert.Equal(t, domain.VerdictMedium, got.Verdict)
	assert.Equal(t, domain.ConfidenceLow, got.Confidence)
	assert.Equal(t, scanerrors.UnreachableMessage, got.Summary)
	assert.Empty(t, got.Signals)
	assert.Equal(t, platform.BadgeState{Text: "!", Color: "#F79009"}, f.badge.states[3])

	counts, err := f.tracker.Peek(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts.ScansToday, "fallback scans still count")
}

func TestScan_ServiceErrorDetailBecomesSummary(t *testing.T) {
	f := newFixture()
	f.scanner.err = scanerrors.FromStatus(429, "Daily scan limit reached")

	got := f.svc.Scan(context.Background(), ScanCommand{URL: "https://x.example", Tab: 3})
	assert.Equal(t, "Daily scan limit reached", got.Summary)
	assert.Equal(t, domain.VerdictMedium, got.Verdict)
}

func TestScan_FallbackIsDeterministic(t *testing.T) {
	a := newFixture()
	a.scanner.err = scanerrors.Unreachable(errors.New("timeout"))
	b := newFixture()
	b.scanner.err = scanerrors.Unreachable(errors.New("timeout"))

	r1 := a.svc.Scan(context.Background(), ScanCommand{URL: "https://x.example", Tab: 1})
	r2 := b.svc.Scan(context.Background(), ScanCommand{URL: "https://x.example", Tab: 1})

	assert.Equal(t, r1.Verdict, r2.Verdict)
	assert.Equal(t, r1.Confidence, r2.Confidence)
	assert.Equal(t, r1.Summary, r2.Summary)

	// back to back on the same coordinator: second call is served from cache
	r3 := a.svc.Scan(context.Background(), ScanCommand{URL: "https://x.example", Tab: 1})
	assert.Equal(t, r1.Summary, r3.Summary)
	assert.Equal(t, 1, a.scanner.calls())
}

func TestScan_InvalidVerdictFallsBack(t *testing.T) {
	f := newFixture()
	f.scanner.result = &domain.ScanResult{ID: "weird", Verdict: "purple"}

	got := f.svc.Scan(context.Background(), ScanCommand{URL: "https://x.example", Tab: 1})
	assert.True(t, got.IsFallback())
}

func TestScan_EffectFailureDoesNotChangeResult(t *testing.T) {
	f := newFixture()
	f.scanner.result = criticalResult()
	f.badge.err = errors.New("tab closed")

	got := f.svc.Scan(context.Background(), ScanCommand{URL: phishing, Tab: 9})
	assert.Equal(t, domain.VerdictCritical, got.Verdict)
	assert.Equal(t, []string{"badge"}, f.observer.failures)

	_, ok := f.svc.Cache.Lookup(phishing)
	assert.True(t, ok, "other effects still ran")
}

func TestScan_CallerCancellationDoesNotSkipEffects(t *testing.T) {
	f := newFixture()
	f.scanner.result = criticalResult()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.svc.Scan(ctx, ScanCommand{URL: phishing, Tab: 1})
	counts, err := f.tracker.Peek(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts.ScansToday)
}

type recordingArchive struct{ keys []string }

func (a *recordingArchive) Put(_ context.Context, r *domain.ScanResult, url string) (string, error) {
	a.keys = append(a.keys, string(r.ID)+"|"+url)
	return "mem://" + url, nil
}

func TestEffects_ArchiveOnlyWhenConfigured(t *testing.T) {
	f := newFixture()
	names := func() []string {
		var out []string
		for _, e := range f.svc.Effects() {
			out = append(out, e.Name)
		}
		return out
	}
	assert.Equal(t, []string{"cache", "quota", "badge", "last_scan"}, names())

	arch := &recordingArchive{}
	f.svc.Archive = arch
	assert.Equal(t, []string{"cache", "quota", "badge", "last_scan", "archive"}, names())

	f.scanner.result = criticalResult()
	f.svc.Scan(context.Background(), ScanCommand{URL: phishing, Tab: 1})
	f.svc.Wait()
	assert.Equal(t, []string{"scan-123|" + phishing}, arch.keys)
}

// slowScanner answers after delay unless its context ends first.
type slowScanner struct {
	delay  time.Duration
	result *domain.ScanResult
}

func (s slowScanner) Scan(ctx context.Context, _ domain.Request) (*domain.ScanResult, error) {
	select {
	case <-time.After(s.delay):
		return s.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s slowScanner) PageTrust(context.Context, string) (*domain.PageTrust, error) {
	return nil, errors.New("not used")
}

func TestScan_CallerDeadlineDoesNotPoisonCache(t *testing.T) {
	f := newFixture()
	f.svc.Scanner = slowScanner{delay: 100 * time.Millisecond, result: criticalResult()}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	first := f.svc.Scan(ctx, ScanCommand{URL: phishing, Tab: 1})
	assert.Equal(t, domain.VerdictCritical, first.Verdict)

	second := f.svc.Scan(context.Background(), ScanCommand{URL: phishing, Tab: 2})
	assert.Equal(t, domain.VerdictCritical, second.Verdict)
	assert.False(t, second.IsFallback())

	counts, err := f.tracker.Peek(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts.ScansToday)
}

func TestScan_TimeoutFallbackHidesContextError(t *testing.T) {
	f := newFixture()
	f.svc.Scanner = slowScanner{delay: time.Second, result: criticalResult()}
	f.svc.ScanTimeout = 10 * time.Millisecond

	got := f.svc.Scan(context.Background(), ScanCommand{URL: phishing, Tab: 1})
	assert.True(t, got.IsFallback())
	assert.Equal(t, scanerrors.UnreachableMessage, got.Summary)
	assert.NotContains(t, got.Summary, "deadline")
}

// blockingArchive holds every Put until release is closed or ctx ends.
type blockingArchive struct {
	release chan struct{}
	mu      sync.Mutex
	stored  int
}

func (a *blockingArchive) Put(ctx context.Context, _ *domain.ScanResult, _ string) (string, error) {
	select {
	case <-a.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stored++
	return "mem://ok", nil
}

func TestScan_SlowArchiveDoesNotDelayReply(t *testing.T) {
	f := newFixture()
	f.scanner.result = criticalResult()
	arch := &blockingArchive{release: make(chan struct{})}
	f.svc.Archive = arch

	start := time.Now()
	got := f.svc.Scan(context.Background(), ScanCommand{URL: phishing, Tab: 1})
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, domain.VerdictCritical, got.Verdict)

	// attached effects are already done
	_, cached := f.svc.Cache.Lookup(phishing)
	assert.True(t, cached)
	counts, err := f.tracker.Peek(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts.ScansToday)

	close(arch.release)
	f.svc.Wait()
	assert.Equal(t, 1, arch.stored)
}

func TestScan_HungArchiveIsBounded(t *testing.T) {
	f := newFixture()
	f.scanner.result = criticalResult()
	f.svc.Archive = &blockingArchive{release: make(chan struct{})}
	f.svc.EffectTimeout = 20 * time.Millisecond

	f.svc.Scan(context.Background(), ScanCommand{URL: phishing, Tab: 1})
	f.svc.Wait()
	assert.Equal(t, []string{"archive"}, f.observer.failures)
}

func TestPageTrust(t *testing.T) {
	f := newFixture()
	f.scanner.trust = &domain.PageTrust{Score: 92, Verdict: domain.VerdictSafe, Domain: "example.com"}
	ctx := context.Background()

	got, err := f.svc.PageTrust(ctx, 4, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, 92.0, got.Score)
	assert.Equal(t, "✓", f.badge.states[4].Text)

	var stored domain.PageTrust
	require.NoError(t, f.storage.Get(ctx, platform.KeyCurrentPageTrust, &stored))
	assert.Equal(t, "example.com", stored.Domain)
}

func TestPageTrust_FailureLeavesStateAlone(t *testing.T) {
	f := newFixture()
	f.scanner.err = scanerrors.FromStatus(500, "")

	got, err := f.svc.PageTrust(context.Background(), 4, "https://example.com")
	assert.Nil(t, got)
	assert.EqualError(t, err, "Request failed (500)")
	assert.Empty(t, f.badge.states)
}
