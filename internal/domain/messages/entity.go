// Package messages defines the closed set of messages content scripts and
// the popup send to the background coordinator, and their replies.
package messages

import (
	"github.com/bryanwahyu/caniclickit/internal/domain/platform"
	"github.com/bryanwahyu/caniclickit/internal/domain/quota"
	"github.com/bryanwahyu/caniclickit/internal/domain/scans"
)

// Kind enum
type Kind string

const (
	KindScanURL       Kind = "SCAN_URL"
	KindGetPageTrust  Kind = "GET_PAGE_TRUST"
	KindGetScanCount  Kind = "GET_SCAN_COUNT"
	KindBadgeFallback Kind = "BADGE_FALLBACK"
	KindUpdateBadge   Kind = "UPDATE_BADGE"
)

// Message is implemented only by the types in this package.
type Message interface {
	Kind() Kind
	sealed()
}

type ScanURL struct {
	URL          string `json:"url"`
	SourcePage   string `json:"source_page"`
	HoverContext bool   `json:"hover_context,omitempty"`
}

type GetPageTrust struct {
	URL string `json:"url"`
}

type GetScanCount struct{}

type BadgeFallback struct {
	Verdict scans.Verdict `json:"verdict"`
	Summary string        `json:"summary"`
}

type UpdateBadge struct {
	Verdict scans.Verdict `json:"verdict"`
}

// Unknown carries a kind this build does not understand.
type Unknown struct {
	Type string
}

func (ScanURL) Kind() Kind       { return KindScanURL }
func (GetPageTrust) Kind() Kind  { return KindGetPageTrust }
func (GetScanCount) Kind() Kind  { return KindGetScanCount }
func (BadgeFallback) Kind() Kind { return KindBadgeFallback }
func (UpdateBadge) Kind() Kind   { return KindUpdateBadge }
func (u Unknown) Kind() Kind     { return Kind(u.Type) }

func (ScanURL) sealed()       {}
func (GetPageTrust) sealed()  {}
func (GetScanCount) sealed()  {}
func (BadgeFallback) sealed() {}
func (UpdateBadge) sealed()   {}
func (Unknown) sealed()       {}

// Sender describes the context a message came from. Tab is zero when the
// sender has no addressable tab (the popup, for example).
type Sender struct {
	Tab platform.TabID
}

func (s Sender) HasTab() bool { return s.Tab > 0 }

// Response is one of the reply shapes below.
type Response interface {
	response()
}

type ScanReply struct {
	Result *scans.ScanResult `json:"result"`
}

// TrustReply carries a nil Trust when the assessment failed.
type TrustReply struct {
	Trust *scans.PageTrust `json:"trust"`
}

type CountReply quota.Counts

type AckReply struct {
	OK bool `json:"ok"`
}

type ErrorReply struct {
	Error string `json:"error"`
}

func (ScanReply) response()  {}
func (TrustReply) response() {}
func (CountReply) response() {}
func (AckReply) response()   {}
func (ErrorReply) response() {}
