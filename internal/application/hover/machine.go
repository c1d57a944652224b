// Package hover drives the per-page interaction lifecycle: debounce a
// hovered link, request its scan, show the verdict, and gate clicks on
// dangerous links.
package hover

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/caniclickit/internal/domain/advisory"
	"github.com/bryanwahyu/caniclickit/internal/domain/messages"
	"github.com/bryanwahyu/caniclickit/internal/domain/scans"
)

const DefaultDebounce = 300 * time.Millisecond

// State of the hover lifecycle.
type State int

const (
	Idle State = iota
	Debouncing
	AwaitingScan
	Showing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Debouncing:
		return "debouncing"
	case AwaitingScan:
		return "awaiting_scan"
	case Showing:
		return "showing"
	default:
		return "unknown"
	}
}

// Event is anything the machine reacts to.
type Event interface{ event() }

// PointerOver fires when the pointer enters an anchor.
type PointerOver struct {
	Href string
	At   Point
}

// PointerOut fires when the pointer leaves an anchor.
type PointerOut struct {
	Href string
}

// Click fires on an anchor click, before the browser navigates.
type Click struct {
	Href string
}

// Dismiss clears any hover UI (scroll, escape, page hide).
type Dismiss struct{}

type debounceElapsed struct{ gen uint64 }

type scanResolved struct {
	url    string
	result *scans.ScanResult
	err    error
}

func (PointerOver) event()     {}
func (PointerOut) event()      {}
func (Click) event()           {}
func (Dismiss) event()         {}
func (debounceElapsed) event() {}
func (scanResolved) event()    {}

// Reaction tells the caller what to do with the originating browser event.
type Reaction struct {
	PreventDefault  bool
	StopPropagation bool
}

type Config struct {
	PageURL  string
	Debounce time.Duration
}

type session struct {
	gen   uint64
	url   string
	at    Point
	timer Timer
}

// Machine is safe for concurrent use. Events are applied one at a time in
// arrival order; presenter and messenger calls run outside the lock and may
// dispatch further events.
type Machine struct {
	cfg       Config
	scheduler Scheduler
	messenger Messenger
	presenter Presenter
	logger    *zap.Logger

	mu         sync.Mutex
	queue      []pending
	draining   bool
	state      State
	current    *session
	gen        uint64
	restricted bool
	results    map[string]*scans.ScanResult
	inflight   map[string]bool
}

// New probes the page once; a failed probe puts the machine in restricted
// mode for the life of the page.
func New(cfg Config, s Scheduler, m Messenger, p Presenter, logger *zap.Logger) *Machine {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if s == nil {
		s = TimerScheduler{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	mc := &Machine{
		cfg:       cfg,
		scheduler: s,
		messenger: m,
		presenter: p,
		logger:    logger,
		results:   map[string]*scans.ScanResult{},
		inflight:  map[string]bool{},
	}
	if err := p.ProbeIsolation(); err != nil {
		mc.restricted = true
		logger.Info("isolated rendering blocked, using fallbacks", zap.String("page", cfg.PageURL), zap.Error(err))
	}
	return mc
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) Restricted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restricted
}

// Result returns the memoized verdict for a resolved link URL.
func (m *Machine) Result(url string) (*scans.ScanResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[url]
	return r, ok
}

type pending struct {
	ev      Event
	effects []func()
}

// Dispatch applies ev. Calls made while another caller is applying events
// are queued and applied by that caller; clicks are still decided
// immediately so the returned Reaction is always accurate.
func (m *Machine) Dispatch(ev Event) Reaction {
	m.mu.Lock()
	if m.draining {
		var reaction Reaction
		if _, ok := ev.(Click); ok {
			var effects []func()
			reaction, effects = m.step(ev)
			m.queue = append(m.queue, pending{effects: effects})
		} else {
			m.queue = append(m.queue, pending{ev: ev})
		}
		m.mu.Unlock()
		return reaction
	}
	m.draining = true
	reaction, effects := m.step(ev)
	m.mu.Unlock()

	m.run(effects)
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.draining = false
			m.mu.Unlock()
			return reaction
		}
		next := m.queue[0]
		m.queue = m.queue[1:]
		effects = next.effects
		if next.ev != nil {
			_, effects = m.step(next.ev)
		}
		m.mu.Unlock()
		m.run(effects)
	}
}

func (m *Machine) run(effects []func()) {
	for _, fn := range effects {
		fn()
	}
}

// step must hold m.mu.
func (m *Machine) step(ev Event) (Reaction, []func()) {
	switch e := ev.(type) {
	case PointerOver:
		return Reaction{}, m.onOver(e)
	case PointerOut:
		return Reaction{}, m.reset()
	case Dismiss:
		return Reaction{}, m.reset()
	case debounceElapsed:
		return Reaction{}, m.onDebounce(e)
	case scanResolved:
		return Reaction{}, m.onResolved(e)
	case Click:
		return m.onClick(e)
	}
	return Reaction{}, nil
}

func (m *Machine) onOver(e PointerOver) []func() {
	url, ok := Qualify(e.Href, m.cfg.PageURL)
	if !ok {
		return nil
	}
	if m.current != nil && m.current.url == url {
		return nil
	}
	effects := m.reset()

	m.gen++
	gen := m.gen
	m.current = &session{gen: gen, url: url, at: e.At}
	m.state = Debouncing
	m.current.timer = m.scheduler.After(m.cfg.Debounce, func() {
		m.Dispatch(debounceElapsed{gen: gen})
	})
	return effects
}

// reset drops the current hover target and hides whatever it showed.
func (m *Machine) reset() []func() {
	var effects []func()
	if m.current != nil {
		if m.current.timer != nil {
			m.current.timer.Stop()
		}
		if m.state == AwaitingScan || m.state == Showing {
			effects = append(effects, m.presenter.HideTooltip)
		}
	}
	m.current = nil
	m.state = Idle
	return effects
}

func (m *Machine) onDebounce(e debounceElapsed) []func() {
	cur := m.current
	if cur == nil || cur.gen != e.gen || m.state != Debouncing {
		return nil
	}
	cur.timer = nil

	if r, ok := m.results[cur.url]; ok {
		m.state = Showing
		return []func(){m.showResult(cur.url, cur.at, r)}
	}

	m.state = AwaitingScan
	var effects []func()
	if !m.restricted {
		url, at := cur.url, cur.at
		effects = append(effects, func() {
			if err := m.presenter.ShowTooltip(at, advisory.Loading(url)); err != nil {
				m.logger.Debug("loading tooltip not rendered", zap.String("url", url), zap.Error(err))
			}
		})
	}
	if m.inflight[cur.url] {
		return effects
	}
	m.inflight[cur.url] = true
	req := messages.ScanURL{URL: cur.url, SourcePage: m.cfg.PageURL, HoverContext: true}
	effects = append(effects, func() {
		m.messenger.RequestScan(req, func(r *scans.ScanResult, err error) {
			m.Dispatch(scanResolved{url: req.URL, result: r, err: err})
		})
	})
	return effects
}

func (m *Machine) onResolved(e scanResolved) []func() {
	delete(m.inflight, e.url)
	cur := m.current
	matches := cur != nil && cur.url == e.url && m.state == AwaitingScan

	if e.err != nil || e.result == nil {
		m.logger.Warn("scan request failed", zap.String("url", e.url), zap.Error(e.err))
		if !matches {
			return nil
		}
		return m.reset()
	}

	m.results[e.url] = e.result
	if !matches {
		return nil
	}
	m.state = Showing
	return []func(){m.showResult(cur.url, cur.at, e.result)}
}

// showResult renders the verdict, or relays it to the toolbar badge when
// the page cannot host the tooltip.
func (m *Machine) showResult(url string, at Point, r *scans.ScanResult) func() {
	restricted := m.restricted
	return func() {
		relay := restricted
		if !relay {
			if err := m.presenter.ShowTooltip(at, advisory.NewTooltipData(url, r)); err != nil {
				m.logger.Debug("tooltip not rendered, relaying to badge", zap.String("url", url), zap.Error(err))
				relay = true
			}
		}
		if relay {
			m.messenger.RelayBadge(messages.BadgeFallback{Verdict: r.Verdict, Summary: r.Summary})
		}
	}
}

func (m *Machine) onClick(e Click) (Reaction, []func()) {
	url, ok := Qualify(e.Href, m.cfg.PageURL)
	if !ok {
		return Reaction{}, nil
	}
	r, ok := m.results[url]
	if !ok {
		return Reaction{}, nil
	}
	d := Decide(r.Verdict, m.restricted)
	if !d.Block {
		return Reaction{}, nil
	}

	effects := m.reset()
	data := advisory.NewInterstitialData(url, r)
	proceed := m.proceedOnce(url)
	m.logger.Info("click blocked", zap.String("url", url), zap.String("verdict", string(r.Verdict)), zap.Stringer("mode", d.Mode))

	switch d.Mode {
	case ModeInterstitial:
		effects = append(effects, func() {
			err := m.presenter.ShowInterstitial(data, func() {}, proceed)
			if err != nil {
				m.logger.Warn("interstitial not rendered, asking natively", zap.Error(err))
				m.confirm(data, proceed)
			}
		})
	case ModeDialog:
		effects = append(effects, func() { m.confirm(data, proceed) })
	}
	return Reaction{PreventDefault: true, StopPropagation: true}, effects
}

func (m *Machine) confirm(data advisory.InterstitialData, proceed func()) {
	if m.presenter.Confirm(advisory.DialogMessage(data)) {
		proceed()
	}
}

func (m *Machine) proceedOnce(url string) func() {
	var once sync.Once
	return func() {
		once.Do(func() { m.presenter.Navigate(url) })
	}
}
