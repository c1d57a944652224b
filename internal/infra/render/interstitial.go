package render

import (
	"sync"

	"github.com/bryanwahyu/caniclickit/internal/domain/advisory"
)

const InterstitialID = "cici-interstitial-host"

// Interstitial is the full-page warning shown for a blocked click.
type Interstitial struct {
	surface Surface
}

func NewInterstitial(s Surface) *Interstitial { return &Interstitial{surface: s} }

// Show mounts the warning. The first of go back, proceed or Escape removes
// it and runs its callback; later actions are ignored.
func (i *Interstitial) Show(d advisory.InterstitialData, onGoBack, onProceed func()) error {
	markup, err := InterstitialMarkup(d)
	if err != nil {
		return err
	}
	if err := i.surface.Mount(InterstitialID, interstitialCSS, markup); err != nil {
		return err
	}

	var (
		once      sync.Once
		removeKey func()
		mu        sync.Mutex
	)
	finish := func(fn func()) {
		once.Do(func() {
			i.surface.Unmount(InterstitialID)
			mu.Lock()
			if removeKey != nil {
				removeKey()
			}
			mu.Unlock()
			fn()
		})
	}

	i.surface.OnAction(InterstitialID, func(action string) {
		switch action {
		case "go-back":
			finish(onGoBack)
		case "proceed":
			finish(onProceed)
		case "recovery":
			i.surface.Open(advisory.RecoveryURL)
		}
	})
	remove := i.surface.OnKey(func(key string) {
		if key == "Escape" {
			finish(onGoBack)
		}
	})
	mu.Lock()
	removeKey = remove
	mu.Unlock()
	return nil
}

func (i *Interstitial) Visible() bool { return i.surface.Mounted(InterstitialID) }
