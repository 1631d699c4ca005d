// Package settle reconciles pending signals against authoritative final
// results and closes them out.
package settle

import (
	"context"

	"go.uber.org/zap"

	"github.com/avoronin/oddscout/internal/hockey"
	"github.com/avoronin/oddscout/internal/metrics"
	"github.com/avoronin/oddscout/internal/signal"
	"github.com/avoronin/oddscout/internal/store"
)

// Reconciler grades pending signals. Each signal transitions exactly once;
// the store enforces that a second close never overwrites the first.
type Reconciler struct {
	signals store.SignalStore
	feeds   map[string]hockey.Feed
	logger  *zap.Logger
}

// New constructs a Reconciler over the registered league feeds.
func New(signals store.SignalStore, feeds map[string]hockey.Feed, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{signals: signals, feeds: feeds, logger: logger}
}

// Run executes one settlement pass. Signals without a registered league feed
// or without a game identifier stay pending; games not yet finalized stay
// pending and are retried on the next pass. Per-signal fetch failures are
// logged and do not block the rest of the pass.
func (r *Reconciler) Run(ctx context.Context) error {
	pending, err := r.signals.ListPending(ctx)
	if err != nil {
		return err
	}

	remaining := 0
	for _, sig := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !r.settleOne(ctx, sig) {
			remaining++
		}
	}
	metrics.SetPendingRemaining(remaining)
	r.logger.Info("settlement pass finished",
		zap.Int("pending", len(pending)),
		zap.Int("remaining", remaining),
	)
	return nil
}

// settleOne returns true when the signal reached a terminal state.
func (r *Reconciler) settleOne(ctx context.Context, sig signal.Signal) bool {
	feed, ok := r.feeds[sig.League]
	if !ok || sig.GameID == "" {
		return false
	}
	fin, err := feed.FinalResult(ctx, sig.GameID)
	if err != nil {
		r.logger.Error("final result fetch failed",
			zap.Int64("signal_id", sig.ID),
			zap.String("game_id", sig.GameID),
			zap.Error(err),
		)
		return false
	}
	if !fin.Finalized {
		return false
	}

	status := signal.GradePick(sig.Pick, fin.AwayScore, fin.HomeScore)
	if err := r.signals.Close(ctx, sig.ID, status, fin.Score); err != nil {
		r.logger.Error("close signal failed",
			zap.Int64("signal_id", sig.ID),
			zap.Error(err),
		)
		return false
	}
	metrics.IncSignalSettled(string(status))
	r.logger.Info("signal settled",
		zap.Int64("signal_id", sig.ID),
		zap.String("status", string(status)),
		zap.String("final_score", fin.Score),
	)
	return true
}
