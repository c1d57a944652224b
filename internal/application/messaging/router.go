// Package messaging is the background coordinator's single entry point for
// messages from content scripts and the popup.
package messaging

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	appscans "github.com/bryanwahyu/caniclickit/internal/application/scans"
	"github.com/bryanwahyu/caniclickit/internal/domain/messages"
	"github.com/bryanwahyu/caniclickit/internal/domain/platform"
	"github.com/bryanwahyu/caniclickit/internal/domain/quota"
	"github.com/bryanwahyu/caniclickit/internal/domain/scanerrors"
	"github.com/bryanwahyu/caniclickit/internal/domain/scans"
)

// Orchestrator is what the router needs from the scan service.
type Orchestrator interface {
	Scan(ctx context.Context, cmd appscans.ScanCommand) *scans.ScanResult
	PageTrust(ctx context.Context, tab platform.TabID, url string) (*scans.PageTrust, error)
	SetBadge(ctx context.Context, tab platform.TabID, v scans.Verdict) error
}

// QuotaReader reads the advisory quota.
type QuotaReader interface {
	Peek(ctx context.Context) (quota.Counts, error)
}

// Observer counts dispatched messages. Optional.
type Observer interface {
	ObserveMessage(kind string)
}

// Router dispatches each message kind to its handler. Handlers for the same
// URL may run concurrently; every verb is safe to re-execute.
type Router struct {
	Scans    Orchestrator
	Quota    QuotaReader
	Logger   *zap.Logger
	Observer Observer
}

func NewRouter(scansSvc Orchestrator, q QuotaReader, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{Scans: scansSvc, Quota: q, Logger: logger}
}

// Dispatch handles msg on behalf of sender. It reports whether reply will
// be called asynchronously. When it returns false, reply has either been
// called already (a rejected message) or will never be called (an unknown
// kind). reply is called at most once.
func (r *Router) Dispatch(ctx context.Context, sender messages.Sender, msg messages.Message, reply func(messages.Response)) bool {
	if msg == nil {
		return false
	}
	if _, unknown := msg.(messages.Unknown); unknown {
		r.logger().Debug("ignoring unknown message", zap.String("type", string(msg.Kind())))
		return false
	}
	if r.Observer != nil {
		r.Observer.ObserveMessage(string(msg.Kind()))
	}

	if needsTab(msg) && !sender.HasTab() {
		reply(messages.ErrorReply{Error: scanerrors.ErrNoTabContext.Error()})
		return false
	}

	go func() {
		defer func() {
			if p := recover(); p != nil {
				r.logger().Error("message handler panicked",
					zap.String("type", string(msg.Kind())),
					zap.Any("panic", p),
				)
				reply(messages.ErrorReply{Error: fmt.Sprint(p)})
			}
		}()
		reply(r.handle(ctx, sender, msg))
	}()
	return true
}

// Call dispatches msg and waits for the reply. ok is false when no reply
// will ever come (unknown kinds).
func (r *Router) Call(ctx context.Context, sender messages.Sender, msg messages.Message) (resp messages.Response, ok bool) {
	ch := make(chan messages.Response, 1)
	async := r.Dispatch(ctx, sender, msg, func(res messages.Response) { ch <- res })
	if !async {
		select {
		case res := <-ch:
			return res, true
		default:
			return nil, false
		}
	}
	select {
	case res := <-ch:
		return res, true
	case <-ctx.Done():
		return messages.ErrorReply{Error: ctx.Err().Error()}, true
	}
}

func (r *Router) handle(ctx context.Context, sender messages.Sender, msg messages.Message) messages.Response {
	switch m := msg.(type) {
	case messages.ScanURL:
		result := r.Scans.Scan(ctx, appscans.ScanCommand{
			URL:          m.URL,
			SourcePage:   m.SourcePage,
			Tab:          sender.Tab,
			HoverContext: m.HoverContext,
		})
		return messages.ScanReply{Result: result}

	case messages.GetPageTrust:
		// failures answer {trust: null}; the service already logged them
		trust, _ := r.Scans.PageTrust(ctx, sender.Tab, m.URL)
		return messages.TrustReply{Trust: trust}

	case messages.GetScanCount:
		counts, err := r.Quota.Peek(ctx)
		if err != nil {
			r.logger().Warn("scan count unavailable", zap.Error(err))
			return messages.CountReply(quota.Default())
		}
		return messages.CountReply(counts)

	case messages.BadgeFallback:
		return r.setBadge(ctx, sender.Tab, m.Verdict)

	case messages.UpdateBadge:
		return r.setBadge(ctx, sender.Tab, m.Verdict)

	default:
		return messages.ErrorReply{Error: fmt.Sprintf("unsupported message %s", msg.Kind())}
	}
}

func (r *Router) setBadge(ctx context.Context, tab platform.TabID, v scans.Verdict) messages.Response {
	if err := r.Scans.SetBadge(ctx, tab, v); err != nil {
		r.logger().Warn("badge update failed", zap.Int("tab", int(tab)), zap.Error(err))
		return messages.AckReply{OK: false}
	}
	return messages.AckReply{OK: true}
}

func needsTab(msg messages.Message) bool {
	switch msg.(type) {
	case messages.GetScanCount:
		return false
	default:
		return true
	}
}

func (r *Router) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
