// Package background holds the coordinator's lifecycle duties that are not
// driven by messages: install defaults, alarms and tab navigation.
package background

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/caniclickit/internal/application"
	"github.com/bryanwahyu/caniclickit/internal/domain/platform"
	"github.com/bryanwahyu/caniclickit/internal/domain/quota"
	"github.com/bryanwahyu/caniclickit/internal/domain/scans"
)

const (
	AlarmPeriodicCheck = "periodic-page-check"
	AlarmResetDaily    = "reset-daily-count"

	PeriodicCheckInterval = 30 * time.Minute
	dailyPeriod           = 24 * time.Hour

	DefaultAPIBaseURL = "http://localhost:8880"
)

// PageTruster assesses a page and reflects it on the tab badge.
type PageTruster interface {
	PageTrust(ctx context.Context, tab platform.TabID, url string) (*scans.PageTrust, error)
}

type QuotaResetter interface {
	Reset(ctx context.Context) error
}

// Defaults seeded on install.
type Defaults struct {
	APIBaseURL string
	APIKey     string
	DailyLimit int
}

// Coordinator wires tab and alarm events to the scan service.
type Coordinator struct {
	Scans  PageTruster
	Quota  QuotaResetter
	Badge  platform.Badge
	Tabs   platform.Tabs
	Alarms platform.Alarms
	// Sync holds user settings, Local holds the quota record.
	Sync     platform.Storage
	Local    platform.Storage
	Clock    application.Clock
	Logger   *zap.Logger
	Defaults Defaults
}

// Install seeds settings and the quota record. Keys that already exist are
// left alone so a reinstall keeps the user's settings.
func (c *Coordinator) Install(ctx context.Context) error {
	d := c.Defaults
	if d.APIBaseURL == "" {
		d.APIBaseURL = DefaultAPIBaseURL
	}
	if d.DailyLimit <= 0 {
		d.DailyLimit = quota.DefaultDailyLimit
	}

	if err := seed(ctx, c.Sync, map[string]any{
		platform.KeyAPIBaseURL: d.APIBaseURL,
		platform.KeyAPIKey:     d.APIKey,
	}); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	if err := seed(ctx, c.Local, map[string]any{
		platform.KeyScansToday:     0,
		platform.KeyLastScanDate:   "",
		platform.KeyDailyScanLimit: d.DailyLimit,
	}); err != nil {
		return fmt.Errorf("seed quota: %w", err)
	}
	c.logger().Info("install defaults seeded", zap.String("api_base_url", d.APIBaseURL), zap.Int("daily_limit", d.DailyLimit))
	return nil
}

func seed(ctx context.Context, s platform.Storage, defaults map[string]any) error {
	missing := make(map[string]any, len(defaults))
	for k, v := range defaults {
		var raw any
		err := s.Get(ctx, k, &raw)
		switch {
		case errors.Is(err, platform.ErrNotFound):
			missing[k] = v
		case err != nil:
			return err
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return s.Set(ctx, missing)
}

// Start registers the alarm handler and both alarms.
func (c *Coordinator) Start(ctx context.Context) {
	c.Alarms.OnAlarm(c.OnAlarm)
	c.Alarms.Create(platform.Alarm{Name: AlarmPeriodicCheck, Period: PeriodicCheckInterval})
	c.Alarms.Create(platform.Alarm{
		Name:   AlarmResetDaily,
		When:   application.NextMidnight(c.now()),
		Period: dailyPeriod,
	})
	c.logger().Info("alarms registered")
}

func (c *Coordinator) OnAlarm(ctx context.Context, name string) {
	switch name {
	case AlarmPeriodicCheck:
		tab, ok := c.Tabs.Active(ctx)
		if !ok || tab.ID <= 0 || tab.URL == "" {
			return
		}
		if _, err := c.Scans.PageTrust(ctx, tab.ID, tab.URL); err != nil {
			c.logger().Debug("periodic page check failed", zap.Int("tab", int(tab.ID)), zap.Error(err))
		}
	case AlarmResetDaily:
		if err := c.Quota.Reset(ctx); err != nil {
			c.logger().Error("daily quota reset failed", zap.Error(err))
			return
		}
		c.logger().Info("daily quota reset")
	}
}

// OnTabUpdated reacts to a tab that finished loading: the stale badge is
// cleared and the new page assessed.
func (c *Coordinator) OnTabUpdated(ctx context.Context, tab platform.Tab) {
	if tab.Status != platform.TabStatusComplete || tab.URL == "" || tab.ID <= 0 {
		return
	}
	if err := c.Badge.ClearBadge(ctx, tab.ID); err != nil {
		c.logger().Error("clear badge failed", zap.Int("tab", int(tab.ID)), zap.Error(err))
	}
	if _, err := c.Scans.PageTrust(ctx, tab.ID, tab.URL); err != nil {
		c.logger().Debug("page trust unavailable", zap.Int("tab", int(tab.ID)), zap.Error(err))
	}
}

func (c *Coordinator) now() time.Time {
	if c.Clock == nil {
		return time.Now()
	}
	return c.Clock.Now()
}

func (c *Coordinator) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
