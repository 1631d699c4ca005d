// Package sched runs the service's recurring activities: the daily delivery
// pass at a fixed local time and the settlement pass on a short interval.
package sched

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Activity is one unit of scheduled work. Errors are logged and the schedule
// keeps going; an activity run never stops the loop.
type Activity func(ctx context.Context, now time.Time) error

// Clock abstracts wall time for tests.
type Clock interface {
	Now() time.Time
}

// Config controls when activities fire.
type Config struct {
	// DailyTime is the HH:MM local time of the daily pass.
	DailyTime string
	// Location is the timezone DailyTime is interpreted in.
	Location *time.Location
	// SettleInterval is the period between settlement passes.
	SettleInterval time.Duration
	// SettleInitialDelay postpones the first settlement pass after start.
	SettleInitialDelay time.Duration
}

// DefaultConfig matches the service defaults: 10:30 Amsterdam time for the
// daily pass, settlement every 30 minutes after a one minute warm-up.
func DefaultConfig() (Config, error) {
	loc, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		return Config{}, fmt.Errorf("loading timezone: %w", err)
	}
	return Config{
		DailyTime:          "10:30",
		Location:           loc,
		SettleInterval:     30 * time.Minute,
		SettleInitialDelay: time.Minute,
	}, nil
}

// Scheduler drives the daily and settlement activities until its context is
// cancelled.
type Scheduler struct {
	cfg    Config
	clock  Clock
	daily  Activity
	settle Activity
	logger *zap.Logger
}

func New(cfg Config, clock Clock, daily, settle Activity, logger *zap.Logger) (*Scheduler, error) {
	if cfg.Location == nil {
		return nil, fmt.Errorf("scheduler config: location is required")
	}
	if _, err := parseDailyTime(cfg.DailyTime); err != nil {
		return nil, err
	}
	if cfg.SettleInterval <= 0 {
		return nil, fmt.Errorf("scheduler config: settle interval must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cfg:    cfg,
		clock:  clock,
		daily:  daily,
		settle: settle,
		logger: logger,
	}, nil
}

// Run blocks until ctx is cancelled. The two activities run on independent
// goroutines so a slow settlement pass never delays the daily delivery.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.runDaily(ctx)
	}()
	go func() {
		defer wg.Done()
		s.runSettle(ctx)
	}()
	wg.Wait()
}

func (s *Scheduler) runDaily(ctx context.Context) {
	for {
		now := s.clock.Now()
		next := NextDaily(now, s.cfg.DailyTime, s.cfg.Location)
		s.logger.Info("daily pass scheduled", zap.Time("at", next))
		if !sleepUntil(ctx, next.Sub(now)) {
			return
		}
		s.fire(ctx, "daily", s.daily)
	}
}

func (s *Scheduler) runSettle(ctx context.Context) {
	if !sleepUntil(ctx, s.cfg.SettleInitialDelay) {
		return
	}
	ticker := time.NewTicker(s.cfg.SettleInterval)
	defer ticker.Stop()
	s.fire(ctx, "settle", s.settle)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx, "settle", s.settle)
		}
	}
}

// fire runs one activity, containing both errors and panics.
func (s *Scheduler) fire(ctx context.Context, name string, act Activity) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("activity panicked",
				zap.String("activity", name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()
	start := s.clock.Now()
	if err := act(ctx, start); err != nil {
		s.logger.Error("activity failed",
			zap.String("activity", name),
			zap.Error(err))
		return
	}
	s.logger.Info("activity completed",
		zap.String("activity", name),
		zap.Duration("elapsed", s.clock.Now().Sub(start)))
}

// NextDaily returns the next occurrence of the HH:MM wall time in loc that is
// strictly after now. A DST-shifted day still fires at the named wall time.
func NextDaily(now time.Time, hhmm string, loc *time.Location) time.Time {
	at, err := parseDailyTime(hhmm)
	if err != nil {
		// Validated in New; fall back to the default rather than spin.
		at = dayTime{hour: 10, minute: 30}
	}
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), at.hour, at.minute, 0, 0, loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

type dayTime struct {
	hour, minute int
}

func parseDailyTime(hhmm string) (dayTime, error) {
	var h, m int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &h, &m); err != nil {
		return dayTime{}, fmt.Errorf("parsing daily time %q: %w", hhmm, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return dayTime{}, fmt.Errorf("daily time %q out of range", hhmm)
	}
	return dayTime{hour: h, minute: m}, nil
}

func sleepUntil(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
