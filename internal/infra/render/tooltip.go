package render

import (
	"github.com/bryanwahyu/caniclickit/internal/application/hover"
	"github.com/bryanwahyu/caniclickit/internal/domain/advisory"
)

const (
	TooltipID = "cici-tooltip-host"

	tooltipOffsetX = 16
	tooltipOffsetY = 20
	viewportMargin = 8
)

// Tooltip keeps at most one tooltip on the surface.
type Tooltip struct {
	surface Surface
}

func NewTooltip(s Surface) *Tooltip { return &Tooltip{surface: s} }

// Show replaces any visible tooltip with d, placed near at.
func (t *Tooltip) Show(at hover.Point, d advisory.TooltipData) error {
	markup, err := TooltipMarkup(d)
	if err != nil {
		return err
	}
	if err := t.surface.Mount(TooltipID, tooltipCSS, markup); err != nil {
		return err
	}
	left, top := Place(at, t.surface.Measure(TooltipID), t.surface.Viewport())
	t.surface.Position(TooltipID, left, top)
	return nil
}

func (t *Tooltip) Hide() { t.surface.Unmount(TooltipID) }

func (t *Tooltip) Visible() bool { return t.surface.Mounted(TooltipID) }

// Place puts the tooltip below-right of the pointer, flipping to the other
// side of an axis when it would overflow, and never closer than the margin
// to the top-left edges.
func Place(at hover.Point, size, viewport Size) (left, top float64) {
	left = at.X + tooltipOffsetX
	top = at.Y + tooltipOffsetY
	if left+size.Width > viewport.Width-viewportMargin {
		left = at.X - size.Width - tooltipOffsetX
	}
	if top+size.Height > viewport.Height-viewportMargin {
		top = at.Y - size.Height - tooltipOffsetY
	}
	return max(viewportMargin, left), max(viewportMargin, top)
}
