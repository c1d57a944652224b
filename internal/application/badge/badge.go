package badge

import (
	"github.com/bryanwahyu/caniclickit/internal/domain/platform"
	"github.com/bryanwahyu/caniclickit/internal/domain/scans"
)

const (
	colorSafe    = "#12B76A"
	colorCaution = "#F79009"
	colorDanger  = "#D92D20"
)

// ForVerdict maps a verdict to its toolbar glyph and color.
func ForVerdict(v scans.Verdict) platform.BadgeState {
	switch v {
	case scans.VerdictSafe, scans.VerdictLow:
		return platform.BadgeState{Text: "✓", Color: colorSafe}
	case scans.VerdictHigh, scans.VerdictCritical:
		return platform.BadgeState{Text: "✕", Color: colorDanger}
	default:
		// medium and anything we cannot classify
		return platform.BadgeState{Text: "!", Color: colorCaution}
	}
}
