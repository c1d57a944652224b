package browser

import (
	"context"
	"sync"

	"github.com/bryanwahyu/caniclickit/internal/domain/platform"
)

var _ platform.Tabs = (*Registry)(nil)

// Registry tracks open tabs as reported by the tab event feed.
type Registry struct {
	mu   sync.RWMutex
	tabs map[platform.TabID]platform.Tab
}

func NewRegistry() *Registry {
	return &Registry{tabs: make(map[platform.TabID]platform.Tab)}
}

// Update stores t. An active tab deactivates every other tab.
func (r *Registry) Update(t platform.Tab) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.Active {
		for id, other := range r.tabs {
			if id != t.ID && other.Active {
				other.Active = false
				r.tabs[id] = other
			}
		}
	}
	r.tabs[t.ID] = t
}

func (r *Registry) Remove(id platform.TabID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tabs, id)
}

func (r *Registry) Get(id platform.TabID) (platform.Tab, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tabs[id]
	return t, ok
}

func (r *Registry) Active(context.Context) (platform.Tab, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tabs {
		if t.Active {
			return t, true
		}
	}
	return platform.Tab{}, false
}
