package sched

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func mustLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestNextDaily(t *testing.T) {
	t.Parallel()

	ams := mustLocation(t, "Europe/Amsterdam")

	t.Run("later today when time not yet reached", func(t *testing.T) {
		t.Parallel()
		now := time.Date(2026, 1, 10, 8, 0, 0, 0, ams)
		next := NextDaily(now, "10:30", ams)
		require.Equal(t, time.Date(2026, 1, 10, 10, 30, 0, 0, ams), next)
	})

	t.Run("tomorrow when time already passed", func(t *testing.T) {
		t.Parallel()
		now := time.Date(2026, 1, 10, 11, 0, 0, 0, ams)
		next := NextDaily(now, "10:30", ams)
		require.Equal(t, time.Date(2026, 1, 11, 10, 30, 0, 0, ams), next)
	})

	t.Run("exact boundary rolls to tomorrow", func(t *testing.T) {
		t.Parallel()
		now := time.Date(2026, 1, 10, 10, 30, 0, 0, ams)
		next := NextDaily(now, "10:30", ams)
		require.Equal(t, time.Date(2026, 1, 11, 10, 30, 0, 0, ams), next)
	})

	t.Run("converts caller timezone", func(t *testing.T) {
		t.Parallel()
		// 09:00 UTC is 10:00 in Amsterdam during winter.
		now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
		next := NextDaily(now, "10:30", ams)
		require.Equal(t, time.Date(2026, 1, 10, 10, 30, 0, 0, ams).Unix(), next.Unix())
	})

	t.Run("spring DST transition keeps wall time", func(t *testing.T) {
		t.Parallel()
		// Clocks jump 02:00 -> 03:00 on 2026-03-29 in Amsterdam.
		now := time.Date(2026, 3, 29, 1, 0, 0, 0, ams)
		next := NextDaily(now, "10:30", ams)
		require.Equal(t, 10, next.In(ams).Hour())
		require.Equal(t, 30, next.In(ams).Minute())
		require.Equal(t, 29, next.In(ams).Day())
	})
}

func TestParseDailyTime(t *testing.T) {
	t.Parallel()

	got, err := parseDailyTime("09:05")
	require.NoError(t, err)
	require.Equal(t, dayTime{hour: 9, minute: 5}, got)

	for _, bad := range []string{"", "banana", "25:00", "10:75"} {
		_, err := parseDailyTime(bad)
		require.Error(t, err, bad)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	noop := func(context.Context, time.Time) error { return nil }

	_, err := New(Config{DailyTime: "10:30", SettleInterval: time.Minute}, systemClock{}, noop, noop, nil)
	require.ErrorContains(t, err, "location")

	_, err = New(Config{DailyTime: "oops", Location: time.UTC, SettleInterval: time.Minute}, systemClock{}, noop, noop, nil)
	require.ErrorContains(t, err, "daily time")

	_, err = New(Config{DailyTime: "10:30", Location: time.UTC}, systemClock{}, noop, noop, nil)
	require.ErrorContains(t, err, "interval")
}

func TestSchedulerRunsSettlementOnInterval(t *testing.T) {
	t.Parallel()

	var settles atomic.Int32
	cfg := Config{
		DailyTime:          "10:30",
		Location:           time.UTC,
		SettleInterval:     20 * time.Millisecond,
		SettleInitialDelay: 5 * time.Millisecond,
	}
	daily := func(context.Context, time.Time) error { return nil }
	settle := func(context.Context, time.Time) error {
		settles.Add(1)
		return nil
	}

	s, err := New(cfg, systemClock{}, daily, settle, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	require.GreaterOrEqual(t, settles.Load(), int32(3))
}

func TestSchedulerSurvivesFailuresAndPanics(t *testing.T) {
	t.Parallel()

	var settles atomic.Int32
	cfg := Config{
		DailyTime:          "10:30",
		Location:           time.UTC,
		SettleInterval:     10 * time.Millisecond,
		SettleInitialDelay: time.Millisecond,
	}
	daily := func(context.Context, time.Time) error { return nil }
	settle := func(context.Context, time.Time) error {
		switch settles.Add(1) {
		case 1:
			return errors.New("feed unavailable")
		case 2:
			panic("boom")
		}
		return nil
	}

	s, err := New(cfg, systemClock{}, daily, settle, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	require.GreaterOrEqual(t, settles.Load(), int32(3))
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	t.Parallel()

	cfg := Config{
		DailyTime:          "10:30",
		Location:           time.UTC,
		SettleInterval:     time.Hour,
		SettleInitialDelay: time.Hour,
	}
	noop := func(context.Context, time.Time) error { return nil }

	s, err := New(cfg, systemClock{}, noop, noop, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}
