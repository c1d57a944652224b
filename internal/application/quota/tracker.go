// Package quota tracks the advisory daily scan count. The remote service
// enforces the real limit; this counter only drives what the user sees.
package quota

import (
	"context"
	"fmt"
	"sync"

	"github.com/bryanwahyu/caniclickit/internal/application"
	"github.com/bryanwahyu/caniclickit/internal/domain/platform"
	domain "github.com/bryanwahyu/caniclickit/internal/domain/quota"
)

// Tracker reads and writes the quota record in durable storage.
type Tracker struct {
	Storage platform.Storage
	Clock   application.Clock

	// serializes read-modify-write against Storage
	mu sync.Mutex
}

func NewTracker(storage platform.Storage, clock application.Clock) *Tracker {
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &Tracker{Storage: storage, Clock: clock}
}

// Increment counts one scan for today. A record from an earlier day is
// reset in the same write.
func (t *Tracker) Increment(ctx context.Context) (domain.Counts, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	today := application.Today(t.Clock)
	rec, err := t.load(ctx)
	if err != nil {
		return domain.Counts{}, err
	}
	count := rec.ScansToday
	if rec.LastScanDate != today {
		count = 0
	}
	count++

	if err := t.Storage.Set(ctx, map[string]any{
		platform.KeyScansToday:   count,
		platform.KeyLastScanDate: today,
	}); err != nil {
		return domain.Counts{}, fmt.Errorf("persist quota: %w", err)
	}
	return domain.CountsFor(count, rec.DailyLimit), nil
}

// Peek returns today's counts without writing.
func (t *Tracker) Peek(ctx context.Context) (domain.Counts, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, err := t.load(ctx)
	if err != nil {
		return domain.Counts{}, err
	}
	count := rec.ScansToday
	if rec.LastScanDate != application.Today(t.Clock) {
		count = 0
	}
	return domain.CountsFor(count, rec.DailyLimit), nil
}

// Reset zeroes the counter. Used by the midnight alarm.
func (t *Tracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.Storage.Set(ctx, map[string]any{
		platform.KeyScansToday:   0,
		platform.KeyLastScanDate: "",
	})
}

// SetLimit changes the daily limit, e.g. after a tier change.
func (t *Tracker) SetLimit(ctx context.Context, limit int) error {
	if limit <= 0 {
		return fmt.Errorf("daily limit must be positive, got %d", limit)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Storage.Set(ctx, map[string]any{platform.KeyDailyScanLimit: limit})
}

func (t *Tracker) load(ctx context.Context) (domain.Record, error) {
	rec := domain.Record{DailyLimit: domain.DefaultDailyLimit}
	if err := platform.GetOr(ctx, t.Storage, platform.KeyScansToday, &rec.ScansToday); err != nil {
		return rec, fmt.Errorf("read %s: %w", platform.KeyScansToday, err)
	}
	if err := platform.GetOr(ctx, t.Storage, platform.KeyLastScanDate, &rec.LastScanDate); err != nil {
		return rec, fmt.Errorf("read %s: %w", platform.KeyLastScanDate, err)
	}
	if err := platform.GetOr(ctx, t.Storage, platform.KeyDailyScanLimit, &rec.DailyLimit); err != nil {
		return rec, fmt.Errorf("read %s: %w", platform.KeyDailyScanLimit, err)
	}
	if rec.ScansToday < 0 {
		rec.ScansToday = 0
	}
	if rec.DailyLimit <= 0 {
		rec.DailyLimit = domain.DefaultDailyLimit
	}
	return rec, nil
}
