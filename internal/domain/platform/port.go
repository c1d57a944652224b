// Package platform declares the host services the coordinator consumes:
// durable key-value storage, the per-tab badge, the tab feed and alarms.
package platform

import (
	"context"
	"errors"
	"time"
)

// TabID identifies a browser tab. Zero is never a valid tab.
type TabID int

// Storage keys
const (
	KeyScansToday       = "scans_today"
	KeyLastScanDate     = "last_scan_date"
	KeyDailyScanLimit   = "daily_scan_limit"
	KeyLastScanResult   = "last_scan_result"
	KeyCurrentPageTrust = "current_page_trust"
	KeyAPIBaseURL       = "api_base_url"
	KeyAPIKey           = "api_key"
)

// ErrNotFound is returned by Storage.Get for a missing key.
var ErrNotFound = errors.New("storage key not found")

// Storage is durable key-value storage. Values are JSON documents.
// Set writes all pairs atomically.
type Storage interface {
	Get(ctx context.Context, key string, dst any) error
	Set(ctx context.Context, values map[string]any) error
}

// GetOr decodes key into dst, leaving dst untouched when the key is missing.
func GetOr(ctx context.Context, s Storage, key string, dst any) error {
	if err := s.Get(ctx, key, dst); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// BadgeState is what the toolbar shows for one tab.
type BadgeState struct {
	Text  string `json:"text"`
	Color string `json:"color"`
}

// Badge sets the toolbar badge of a tab.
type Badge interface {
	SetBadge(ctx context.Context, tab TabID, state BadgeState) error
	ClearBadge(ctx context.Context, tab TabID) error
}

// Tab is a snapshot of one browser tab.
type Tab struct {
	ID     TabID  `json:"id"`
	URL    string `json:"url"`
	Status string `json:"status"`
	Active bool   `json:"active"`
}

// TabStatusComplete is reported when a tab finished loading.
const TabStatusComplete = "complete"

// Tabs answers questions about open tabs.
type Tabs interface {
	Active(ctx context.Context) (Tab, bool)
}

// Alarm describes a scheduled, optionally periodic, callback.
type Alarm struct {
	Name   string
	When   time.Time
	Period time.Duration
}

// Alarms schedules named alarms. Creating an alarm with an existing name
// replaces it.
type Alarms interface {
	Create(alarm Alarm)
	OnAlarm(fn func(ctx context.Context, name string))
}
