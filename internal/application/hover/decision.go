package hover

import "github.com/bryanwahyu/caniclickit/internal/domain/scans"

// Mode is the rendering path chosen for a click.
type Mode int

const (
	// ModeAllow lets the navigation proceed untouched.
	ModeAllow Mode = iota
	// ModeInterstitial blocks and shows the rich in-page warning.
	ModeInterstitial
	// ModeDialog blocks and asks through the native confirmation dialog.
	ModeDialog
)

func (m Mode) String() string {
	switch m {
	case ModeAllow:
		return "allow"
	case ModeInterstitial:
		return "interstitial"
	case ModeDialog:
		return "dialog"
	default:
		return "unknown"
	}
}

// Decision is derived from a verdict and the page's rendering restrictions.
type Decision struct {
	Block bool
	Mode  Mode
}

// Decide is a pure function of its inputs. Only high and critical verdicts
// block; restricted pages get the native dialog instead of the interstitial.
func Decide(v scans.Verdict, restricted bool) Decision {
	if !v.Dangerous() {
		return Decision{Mode: ModeAllow}
	}
	if restricted {
		return Decision{Block: true, Mode: ModeDialog}
	}
	return Decision{Block: true, Mode: ModeInterstitial}
}
