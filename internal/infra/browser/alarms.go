package browser

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/caniclickit/internal/application"
	"github.com/bryanwahyu/caniclickit/internal/domain/platform"
)

var _ platform.Alarms = (*Scheduler)(nil)

// Scheduler fires named alarms on runtime timers. Handlers run on the
// timer goroutine with the scheduler's context.
type Scheduler struct {
	ctx    context.Context
	clock  application.Clock
	logger *zap.Logger

	mu       sync.Mutex
	timers   map[string]*time.Timer
	alarms   map[string]platform.Alarm
	handlers []func(context.Context, string)
	closed   bool
}

func NewScheduler(ctx context.Context, clock application.Clock, logger *zap.Logger) *Scheduler {
	if clock == nil {
		clock = application.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		ctx:    ctx,
		clock:  clock,
		logger: logger,
		timers: make(map[string]*time.Timer),
		alarms: make(map[string]platform.Alarm),
	}
}

// Create schedules a. A zero When means one Period from now.
func (s *Scheduler) Create(a platform.Alarm) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if t, ok := s.timers[a.Name]; ok {
		t.Stop()
	}
	now := s.clock.Now()
	if a.When.IsZero() {
		a.When = now.Add(a.Period)
	}
	s.alarms[a.Name] = a
	s.timers[a.Name] = time.AfterFunc(max(a.When.Sub(now), 0), func() { s.fire(a.Name) })
	s.logger.Debug("alarm scheduled", zap.String("alarm", a.Name), zap.Time("when", a.When), zap.Duration("period", a.Period))
}

func (s *Scheduler) OnAlarm(fn func(context.Context, string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, fn)
}

// Next reports when name fires next.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alarms[name]
	return a.When, ok
}

// Fire runs the handlers for name now, without touching its schedule.
func (s *Scheduler) Fire(ctx context.Context, name string) {
	s.mu.Lock()
	handlers := append([]func(context.Context, string){}, s.handlers...)
	s.mu.Unlock()
	for _, fn := range handlers {
		fn(ctx, name)
	}
}

func (s *Scheduler) fire(name string) {
	s.mu.Lock()
	a, ok := s.alarms[name]
	if !ok || s.closed {
		s.mu.Unlock()
		return
	}
	if a.Period > 0 {
		a.When = a.When.Add(a.Period)
		if now := s.clock.Now(); a.When.Before(now) {
			a.When = now.Add(a.Period)
		}
		s.alarms[name] = a
		s.timers[name] = time.AfterFunc(max(a.When.Sub(s.clock.Now()), 0), func() { s.fire(name) })
	} else {
		delete(s.alarms, name)
		delete(s.timers, name)
	}
	s.mu.Unlock()

	s.logger.Debug("alarm fired", zap.String("alarm", name))
	s.Fire(s.ctx, name)
}

// Close stops every pending alarm.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for name, t := range s.timers {
		t.Stop()
		delete(s.timers, name)
	}
}
