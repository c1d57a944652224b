package render

import (
	"github.com/bryanwahyu/caniclickit/internal/application/hover"
	"github.com/bryanwahyu/caniclickit/internal/domain/advisory"
)

var _ hover.Presenter = (*Presenter)(nil)

// Presenter adapts a Surface to the hover machine.
type Presenter struct {
	surface      Surface
	tooltip      *Tooltip
	interstitial *Interstitial
}

func NewPresenter(s Surface) *Presenter {
	return &Presenter{
		surface:      s,
		tooltip:      NewTooltip(s),
		interstitial: NewInterstitial(s),
	}
}

func (p *Presenter) ProbeIsolation() error { return p.surface.ProbeIsolated() }

func (p *Presenter) ShowTooltip(at hover.Point, d advisory.TooltipData) error {
	return p.tooltip.Show(at, d)
}

func (p *Presenter) HideTooltip() { p.tooltip.Hide() }

func (p *Presenter) ShowInterstitial(d advisory.InterstitialData, onGoBack, onProceed func()) error {
	return p.interstitial.Show(d, onGoBack, onProceed)
}

func (p *Presenter) Confirm(message string) bool { return p.surface.Confirm(message) }

func (p *Presenter) Navigate(url string) { p.surface.Navigate(url) }
