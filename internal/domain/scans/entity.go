package scans

import (
	"fmt"
	"strings"
	"time"
)

// ScanID identifies a scan on the remote service. Locally synthesized
// results carry FallbackID.
type ScanID string

// FallbackID marks a result that was built locally because the remote
// scan could not be completed.
const FallbackID ScanID = "fallback"

// Verdict enum, ordered from least to most severe.
type Verdict string

const (
	VerdictSafe     Verdict = "safe"
	VerdictLow      Verdict = "low"
	VerdictMedium   Verdict = "medium"
	VerdictHigh     Verdict = "high"
	VerdictCritical Verdict = "critical"
)

var verdictRank = map[Verdict]int{
	VerdictSafe:     0,
	VerdictLow:      1,
	VerdictMedium:   2,
	VerdictHigh:     3,
	VerdictCritical: 4,
}

// ParseVerdict accepts the wire form case-insensitively.
func ParseVerdict(s string) (Verdict, error) {
	v := Verdict(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := verdictRank[v]; !ok {
		return "", fmt.Errorf("unknown verdict: %q", s)
	}
	return v, nil
}

// Rank returns the position of v in the severity order, or -1 for an
// unknown verdict.
func (v Verdict) Rank() int {
	r, ok := verdictRank[v]
	if !ok {
		return -1
	}
	return r
}

// AtLeast reports whether v is as severe as min or more.
func (v Verdict) AtLeast(min Verdict) bool {
	return v.Rank() >= 0 && v.Rank() >= min.Rank()
}

// Dangerous is true for verdicts that gate navigation.
func (v Verdict) Dangerous() bool {
	return v.AtLeast(VerdictHigh)
}

func (v Verdict) Valid() bool { return v.Rank() >= 0 }

// Confidence enum
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ScanType is the scan modality.
type ScanType string

const (
	ScanTypeURL        ScanType = "url"
	ScanTypeText       ScanType = "text"
	ScanTypeScreenshot ScanType = "screenshot"
	ScanTypeQR         ScanType = "qr"
	// older servers report qr scans as qr_code
	ScanTypeQRCode ScanType = "qr_code"
)

// Signal is one named contribution to a verdict.
type Signal struct {
	Name             string  `json:"signal_name"`
	Value            any     `json:"value"`
	RiskContribution Verdict `json:"risk_contribution"`
	Detail           string  `json:"detail,omitempty"`
}

// DomainInfo value object
type DomainInfo struct {
	Domain    string `json:"domain"`
	AgeDays   *int   `json:"age_days"`
	SSLValid  bool   `json:"ssl_valid"`
	Registrar string `json:"registrar,omitempty"`
}

// ScanResult is immutable once built. Callers share pointers to it freely
// and must not write through them.
type ScanResult struct {
	ID                   ScanID      `json:"scan_id"`
	Verdict              Verdict     `json:"verdict"`
	Confidence           Confidence  `json:"confidence"`
	Summary              string      `json:"summary"`
	ConsequenceWarning   string      `json:"consequence_warning,omitempty"`
	SafeActionSuggestion string      `json:"safe_action_suggestion,omitempty"`
	Signals              []Signal    `json:"signals"`
	DomainInfo           *DomainInfo `json:"domain_info,omitempty"`
	ScanType             ScanType    `json:"scan_type"`
	ScannedAt            time.Time   `json:"scanned_at"`
}

// IsFallback reports whether r was synthesized locally.
func (r *ScanResult) IsFallback() bool {
	return r != nil && r.ID == FallbackID
}

// DomainAgeDays returns the domain age when the service reported one.
func (r *ScanResult) DomainAgeDays() *int {
	if r == nil || r.DomainInfo == nil {
		return nil
	}
	return r.DomainInfo.AgeDays
}

// Fallback builds the degraded "be cautious" result used whenever the
// remote scan fails. Verdict, confidence and summary depend only on
// errMsg.
func Fallback(errMsg string, now time.Time) *ScanResult {
	if strings.TrimSpace(errMsg) == "" {
		errMsg = "Analysis unavailable"
	}
	return &ScanResult{
		ID:         FallbackID,
		Verdict:    VerdictMedium,
		Confidence: ConfidenceLow,
		Summary:    errMsg,
		Signals:    []Signal{},
		ScanType:   ScanTypeURL,
		ScannedAt:  now.UTC(),
	}
}

// PageTrust is the whole-page assessment returned by the page-trust endpoint.
type PageTrust struct {
	Score         float64    `json:"score"`
	Verdict       Verdict    `json:"verdict"`
	Confidence    Confidence `json:"confidence"`
	Domain        string     `json:"domain"`
	DomainAgeDays *int       `json:"domain_age_days"`
	SSLValid      bool       `json:"ssl_valid"`
	LastScanned   string     `json:"last_scanned"`
	Summary       string     `json:"summary"`
	Signals       []Signal   `json:"signals"`
}

// Request is the body of a remote scan call.
type Request struct {
	ScanType ScanType         `json:"scan_type"`
	Content  string           `json:"content"`
	Metadata *RequestMetadata `json:"metadata,omitempty"`
}

type RequestMetadata struct {
	SourcePage   string `json:"source_page,omitempty"`
	HoverContext bool   `json:"hover_context,omitempty"`
}
