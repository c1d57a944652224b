// Package advisory holds the texts shown to the user about a scanned link,
// shared by every rendering surface.
package advisory

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/caniclickit/internal/domain/scans"
)

const (
	DefaultConsequenceWarning = "This link has been flagged as dangerous. Proceeding could expose your personal information or device to threats."
	DefaultSafeAction         = "Navigate to the website directly by typing the address in your browser instead of clicking this link."

	RecoveryURL = "https://app.caniclickit.com/recovery"
)

var verdictLabels = map[scans.Verdict]string{
	scans.VerdictSafe:     "Safe",
	scans.VerdictLow:      "Low Risk",
	scans.VerdictMedium:   "Suspicious",
	scans.VerdictHigh:     "Dangerous",
	scans.VerdictCritical: "Critical Threat",
}

var verdictColors = map[scans.Verdict]string{
	scans.VerdictSafe:     "#12B76A",
	scans.VerdictLow:      "#12B76A",
	scans.VerdictMedium:   "#F79009",
	scans.VerdictHigh:     "#F04438",
	scans.VerdictCritical: "#D92D20",
}

var confidenceLabels = map[scans.Confidence]string{
	scans.ConfidenceHigh:   "High confidence",
	scans.ConfidenceMedium: "Medium confidence",
	scans.ConfidenceLow:    "Low confidence",
}

func VerdictLabel(v scans.Verdict) string { return verdictLabels[v] }

// VerdictColor falls back to the neutral border color for unknown verdicts.
func VerdictColor(v scans.Verdict) string {
	if c, ok := verdictColors[v]; ok {
		return c
	}
	return "#D0D5DD"
}

func ConfidenceLabel(c scans.Confidence) string { return confidenceLabels[c] }

// TooltipData feeds the hover tooltip.
type TooltipData struct {
	URL           string
	Verdict       scans.Verdict
	Confidence    scans.Confidence
	Summary       string
	DomainAgeDays *int
	Loading       bool
}

// Loading is the optimistic tooltip shown while a scan is in flight.
func Loading(url string) TooltipData {
	return TooltipData{
		URL:        url,
		Verdict:    scans.VerdictMedium,
		Confidence: scans.ConfidenceLow,
		Loading:    true,
	}
}

func NewTooltipData(url string, r *scans.ScanResult) TooltipData {
	return TooltipData{
		URL:           url,
		Verdict:       r.Verdict,
		Confidence:    r.Confidence,
		Summary:       r.Summary,
		DomainAgeDays: r.DomainAgeDays(),
	}
}

// DomainAge renders the age line of the tooltip.
func (d TooltipData) DomainAge() string {
	if d.DomainAgeDays == nil {
		return "Unknown age"
	}
	n := *d.DomainAgeDays
	if n == 1 {
		return "1 day old"
	}
	return fmt.Sprintf("%d days old", n)
}

// InterstitialData is the warning content for a blocked click. Both the
// rich interstitial and the native dialog render exactly this.
type InterstitialData struct {
	URL                  string
	Verdict              scans.Verdict
	ThreatSummary        string
	ConsequenceWarning   string
	SafeActionSuggestion string
}

func NewInterstitialData(url string, r *scans.ScanResult) InterstitialData {
	d := InterstitialData{
		URL:                  url,
		Verdict:              r.Verdict,
		ThreatSummary:        r.Summary,
		ConsequenceWarning:   r.ConsequenceWarning,
		SafeActionSuggestion: r.SafeActionSuggestion,
	}
	if d.ConsequenceWarning == "" {
		d.ConsequenceWarning = DefaultConsequenceWarning
	}
	if d.SafeActionSuggestion == "" {
		d.SafeActionSuggestion = DefaultSafeAction
	}
	return d
}

// ThreatLabel is the pill text of the interstitial.
func (d InterstitialData) ThreatLabel() string {
	if d.Verdict == scans.VerdictCritical {
		return "Critical Threat"
	}
	return "Dangerous"
}

// DialogMessage is the native confirmation text used when the page blocks
// isolated rendering. OK proceeds, Cancel goes back.
func DialogMessage(d InterstitialData) string {
	var b strings.Builder
	b.WriteString("⚠️ Can I Click It? — Warning\n\n")
	b.WriteString(d.ThreatSummary)
	b.WriteString("\n\nWhat could happen: ")
	b.WriteString(d.ConsequenceWarning)
	b.WriteString("\n\nWhat to do instead: ")
	b.WriteString(d.SafeActionSuggestion)
	b.WriteString("\n\nClick OK to proceed anyway, or Cancel to go back to safety.")
	return b.String()
}

// Truncate shortens long URLs for display.
func Truncate(url string, max int) string {
	r := []rune(url)
	if len(r) <= max {
		return url
	}
	return string(r[:max]) + "…"
}
