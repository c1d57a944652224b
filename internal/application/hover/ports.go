package hover

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bryanwahyu/caniclickit/internal/domain/advisory"
	"github.com/bryanwahyu/caniclickit/internal/domain/messages"
	"github.com/bryanwahyu/caniclickit/internal/domain/platform"
	"github.com/bryanwahyu/caniclickit/internal/domain/scans"
)

// Point is a pointer position in viewport coordinates.
type Point struct {
	X, Y float64
}

// Timer is a cancellable scheduled callback. *time.Timer satisfies it.
type Timer interface {
	Stop() bool
}

// Scheduler runs fn after d. It must never call fn synchronously.
type Scheduler interface {
	After(d time.Duration, fn func()) Timer
}

// TimerScheduler schedules on the runtime timer heap.
type TimerScheduler struct{}

func (TimerScheduler) After(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Messenger is the content script's channel to the background coordinator.
// done is called exactly once.
type Messenger interface {
	RequestScan(req messages.ScanURL, done func(*scans.ScanResult, error))
	RelayBadge(msg messages.BadgeFallback)
}

// Presenter draws on the hosting page.
type Presenter interface {
	// ProbeIsolation fails when the page blocks style-isolated rendering.
	ProbeIsolation() error
	// ShowTooltip replaces any tooltip already on screen.
	ShowTooltip(at Point, data advisory.TooltipData) error
	HideTooltip()
	ShowInterstitial(data advisory.InterstitialData, onGoBack, onProceed func()) error
	Confirm(message string) bool
	Navigate(url string)
}

// Dispatcher is the coordinator's message entry point.
type Dispatcher interface {
	Dispatch(ctx context.Context, sender messages.Sender, msg messages.Message, reply func(messages.Response)) bool
}

// RouterMessenger sends messages to an in-process coordinator on behalf of
// one tab.
type RouterMessenger struct {
	Router Dispatcher
	Tab    platform.TabID
	Ctx    context.Context
}

func (m RouterMessenger) RequestScan(req messages.ScanURL, done func(*scans.ScanResult, error)) {
	m.Router.Dispatch(m.ctx(), messages.Sender{Tab: m.Tab}, req, func(resp messages.Response) {
		switch r := resp.(type) {
		case messages.ScanReply:
			done(r.Result, nil)
		case messages.ErrorReply:
			done(nil, errors.New(r.Error))
		default:
			done(nil, fmt.Errorf("unexpected reply %T", resp))
		}
	})
}

func (m RouterMessenger) RelayBadge(msg messages.BadgeFallback) {
	m.Router.Dispatch(m.ctx(), messages.Sender{Tab: m.Tab}, msg, func(messages.Response) {})
}

func (m RouterMessenger) ctx() context.Context {
	if m.Ctx == nil {
		return context.Background()
	}
	return m.Ctx
}
