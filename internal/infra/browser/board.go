// Package browser holds process-local stand-ins for the browser services
// the coordinator talks to: the toolbar badge, the tab list and alarms.
package browser

import (
	"context"
	"sync"

	"github.com/bryanwahyu/caniclickit/internal/domain/platform"
)

var _ platform.Badge = (*Board)(nil)

// Board keeps the badge of every tab. Bridges poll it or subscribe.
type Board struct {
	mu     sync.RWMutex
	states map[platform.TabID]platform.BadgeState
	subs   []func(platform.TabID, platform.BadgeState)
}

func NewBoard() *Board {
	return &Board{states: make(map[platform.TabID]platform.BadgeState)}
}

func (b *Board) SetBadge(_ context.Context, tab platform.TabID, st platform.BadgeState) error {
	b.mu.Lock()
	b.states[tab] = st
	b.mu.Unlock()
	return b.notify(tab, st)
}

// ClearBadge resets the tab to an empty badge.
func (b *Board) ClearBadge(_ context.Context, tab platform.TabID) error {
	b.mu.Lock()
	delete(b.states, tab)
	b.mu.Unlock()
	return b.notify(tab, platform.BadgeState{})
}

func (b *Board) notify(tab platform.TabID, st platform.BadgeState) error {
	b.mu.RLock()
	subs := append([]func(platform.TabID, platform.BadgeState){}, b.subs...)
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(tab, st)
	}
	return nil
}

// Get returns the badge of tab; ok is false when it is blank.
func (b *Board) Get(tab platform.TabID) (platform.BadgeState, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st, ok := b.states[tab]
	return st, ok
}

// Subscribe registers fn for every change. A cleared badge is reported as
// the zero BadgeState.
func (b *Board) Subscribe(fn func(platform.TabID, platform.BadgeState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
}
