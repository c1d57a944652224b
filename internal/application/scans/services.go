package scans

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/caniclickit/internal/application"
	"github.com/bryanwahyu/caniclickit/internal/application/badge"
	"github.com/bryanwahyu/caniclickit/internal/domain/platform"
	domainquota "github.com/bryanwahyu/caniclickit/internal/domain/quota"
	"github.com/bryanwahyu/caniclickit/internal/domain/scanerrors"
	domain "github.com/bryanwahyu/caniclickit/internal/domain/scans"
)

// DefaultEffectTimeout bounds each post-scan effect when EffectTimeout is unset.
const DefaultEffectTimeout = 10 * time.Second

// Scan outcomes reported to the Observer.
const (
	OutcomeCacheHit = "cache_hit"
	OutcomeRemote   = "remote"
	OutcomeFallback = "fallback"
)

// QuotaCounter is the part of the quota tracker the orchestrator needs.
type QuotaCounter interface {
	Increment(ctx context.Context) (domainquota.Counts, error)
}

// Observer receives scan metrics. Optional.
type Observer interface {
	ObserveScan(outcome string)
	ObserveEffectFailure(effect string)
}

// Service is the scan orchestrator. It is safe for concurrent use as long
// as its ports are.
//
// The remote call does not follow the caller's cancellation: its result
// feeds the cache shared by every tab. ScanTimeout bounds it instead; zero
// leaves the bound to the Scanner.
type Service struct {
	Scanner       domain.Scanner
	Cache         domain.ResultCache
	Quota         QuotaCounter
	Badge         platform.Badge
	Storage       platform.Storage
	Archive       domain.Archive
	Clock         application.Clock
	Logger        *zap.Logger
	Observer      Observer
	ScanTimeout   time.Duration
	EffectTimeout time.Duration

	detached sync.WaitGroup
}

// ScanCommand untuk scan satu URL dari content script
type ScanCommand struct {
	URL          string
	SourcePage   string
	Tab          platform.TabID
	HoverContext bool
}

// Effect is one post-scan side effect. Effects are independent: a failing
// effect is logged and never changes the returned result. Detached effects
// keep running after Scan returns.
type Effect struct {
	Name     string
	Detached bool
	Run      func(ctx context.Context, cmd ScanCommand, r *domain.ScanResult) error
}

// Scan returns a verdict for cmd.URL. It never fails: service and
// transport errors become a fallback result.
func (s *Service) Scan(ctx context.Context, cmd ScanCommand) *domain.ScanResult {
	log := s.logger().With(zap.String("url", cmd.URL), zap.Int("tab", int(cmd.Tab)))

	// cache hit gratis: no quota, no network, no badge
	if cached, ok := s.Cache.Lookup(cmd.URL); ok {
		s.observe(OutcomeCacheHit)
		log.Debug("scan cache hit", zap.String("verdict", string(cached.Verdict)))
		return cached
	}

	result, outcome := s.remoteScan(context.WithoutCancel(ctx), cmd)
	s.observe(outcome)
	if outcome == OutcomeFallback {
		log.Warn("scan degraded to fallback", zap.String("summary", result.Summary))
	} else {
		log.Info("scan completed",
			zap.String("scan_id", string(result.ID)),
			zap.String("verdict", string(result.Verdict)),
		)
	}

	s.runEffects(context.WithoutCancel(ctx), cmd, result)
	return result
}

// Wait blocks until detached effects of earlier scans have finished.
func (s *Service) Wait() {
	s.detached.Wait()
}

func (s *Service) remoteScan(ctx context.Context, cmd ScanCommand) (*domain.ScanResult, string) {
	if s.ScanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.ScanTimeout)
		defer cancel()
	}

	req := domain.Request{ScanType: domain.ScanTypeURL, Content: cmd.URL}
	if cmd.SourcePage != "" {
		req.Metadata = &domain.RequestMetadata{SourcePage: cmd.SourcePage, HoverContext: cmd.HoverContext}
	}

	result, err := s.Scanner.Scan(ctx, req)
	if err == nil && result == nil {
		err = errors.New("Analysis unavailable")
	}
	if err == nil && !result.Verdict.Valid() {
		err = fmt.Errorf("Analysis unavailable: unexpected verdict %q", result.Verdict)
	}
	if err != nil {
		return domain.Fallback(scanerrors.Summary(err), s.now()), OutcomeFallback
	}
	return result, OutcomeRemote
}

// Effects lists the post-scan side effects in their nominal order.
func (s *Service) Effects() []Effect {
	effects := []Effect{
		{Name: "cache", Run: func(_ context.Context, cmd ScanCommand, r *domain.ScanResult) error {
			s.Cache.Store(cmd.URL, r)
			return nil
		}},
		{Name: "quota", Run: func(ctx context.Context, _ ScanCommand, _ *domain.ScanResult) error {
			_, err := s.Quota.Increment(ctx)
			return err
		}},
		{Name: "badge", Run: func(ctx context.Context, cmd ScanCommand, r *domain.ScanResult) error {
			if cmd.Tab <= 0 {
				return nil
			}
			return s.Badge.SetBadge(ctx, cmd.Tab, badge.ForVerdict(r.Verdict))
		}},
		{Name: "last_scan", Run: func(ctx context.Context, _ ScanCommand, r *domain.ScanResult) error {
			return s.Storage.Set(ctx, map[string]any{platform.KeyLastScanResult: r})
		}},
	}
	if s.Archive != nil {
		effects = append(effects, Effect{Name: "archive", Detached: true, Run: func(ctx context.Context, cmd ScanCommand, r *domain.ScanResult) error {
			_, err := s.Archive.Put(ctx, r, cmd.URL)
			return err
		}})
	}
	return effects
}

// runEffects waits for attached effects and hands detached ones to the
// background. Each effect gets its own timeout.
func (s *Service) runEffects(ctx context.Context, cmd ScanCommand, r *domain.ScanResult) {
	var g errgroup.Group
	for _, eff := range s.Effects() {
		if eff.Detached {
			s.detached.Add(1)
			go func() {
				defer s.detached.Done()
				s.runEffect(ctx, eff, cmd, r)
			}()
			continue
		}
		g.Go(func() error {
			s.runEffect(ctx, eff, cmd, r)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) runEffect(ctx context.Context, eff Effect, cmd ScanCommand, r *domain.ScanResult) {
	timeout := s.EffectTimeout
	if timeout <= 0 {
		timeout = DefaultEffectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := eff.Run(ctx, cmd, r); err != nil {
		s.logger().Error("scan side effect failed",
			zap.String("effect", eff.Name),
			zap.String("url", cmd.URL),
			zap.Error(err),
		)
		if s.Observer != nil {
			s.Observer.ObserveEffectFailure(eff.Name)
		}
	}
}

// PageTrust assesses a whole page, reflects it on the tab badge and keeps
// it for the popup. On failure it returns the error and touches nothing.
func (s *Service) PageTrust(ctx context.Context, tab platform.TabID, url string) (*domain.PageTrust, error) {
	trust, err := s.Scanner.PageTrust(ctx, url)
	if err != nil {
		s.logger().Warn("page trust unavailable", zap.String("url", url), zap.Error(err))
		return nil, err
	}
	if trust == nil {
		return nil, fmt.Errorf("page trust: empty response")
	}

	if err := s.Badge.SetBadge(ctx, tab, badge.ForVerdict(trust.Verdict)); err != nil {
		s.logger().Error("page trust badge update failed", zap.Int("tab", int(tab)), zap.Error(err))
	}
	if err := s.Storage.Set(ctx, map[string]any{platform.KeyCurrentPageTrust: trust}); err != nil {
		s.logger().Error("persist page trust failed", zap.Error(err))
	}
	return trust, nil
}

// SetBadge reflects a verdict relayed by a content script.
func (s *Service) SetBadge(ctx context.Context, tab platform.TabID, v domain.Verdict) error {
	return s.Badge.SetBadge(ctx, tab, badge.ForVerdict(v))
}

// LastScan returns the most recent non-cached scan result, if any.
func (s *Service) LastScan(ctx context.Context) (*domain.ScanResult, error) {
	var r domain.ScanResult
	if err := s.Storage.Get(ctx, platform.KeyLastScanResult, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Service) observe(outcome string) {
	if s.Observer != nil {
		s.Observer.ObserveScan(outcome)
	}
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return application.SystemClock{}.Now()
	}
	return s.Clock.Now()
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
