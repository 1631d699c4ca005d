package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/avoronin/oddscout/internal/metrics"
)

// FetcherConfig controls retry and pacing behavior.
type FetcherConfig struct {
	// MaxWait caps the sleep for a single flood-wait attempt. The number of
	// retries within one call is not capped.
	MaxWait time.Duration
	// RPS and Burst feed the token bucket applied before every upstream call.
	// RPS <= 0 disables pacing.
	RPS   float64
	Burst int
}

// Fetcher wraps a Client and absorbs flood-wait signals by sleeping the
// mandated duration and retrying the same request. Any other error is
// returned to the caller untouched.
//
// Calls can block for the full wait duration; callers schedule accordingly.
type Fetcher struct {
	client  Client
	limiter *rate.Limiter
	maxWait time.Duration
	logger  *zap.Logger
}

// NewFetcher builds a Fetcher around client.
func NewFetcher(client Client, cfg FetcherConfig, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxWait := cfg.MaxWait
	if maxWait <= 0 {
		maxWait = 120 * time.Second
	}
	r := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Fetcher{
		client:  client,
		limiter: rate.NewLimiter(r, burst),
		maxWait: maxWait,
		logger:  logger,
	}
}

// ListSources lists up to limit sources, retrying through flood waits.
func (f *Fetcher) ListSources(ctx context.Context, limit int) ([]Source, error) {
	var out []Source
	err := f.withFloodRetry(ctx, "list_sources", func() error {
		var callErr error
		out, callErr = f.client.ListSources(ctx, limit)
		return callErr
	})
	return out, err
}

// RecentItems lists up to limit newest-first items for a source, retrying
// through flood waits.
func (f *Fetcher) RecentItems(ctx context.Context, sourceID int64, limit int) ([]Item, error) {
	var out []Item
	err := f.withFloodRetry(ctx, "recent_items", func() error {
		var callErr error
		out, callErr = f.client.RecentItems(ctx, sourceID, limit)
		return callErr
	})
	return out, err
}

func (f *Fetcher) withFloodRetry(ctx context.Context, op string, call func() error) error {
	for {
		if err := f.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("pacing wait: %w", err)
		}
		err := call()
		if err == nil {
			return nil
		}
		var flood *FloodWaitError
		if !errors.As(err, &flood) {
			return err
		}
		wait := flood.RetryAfter
		if wait > f.maxWait {
			wait = f.maxWait
		}
		f.logger.Warn("flood wait",
			zap.String("op", op),
			zap.Duration("mandated", flood.RetryAfter),
			zap.Duration("sleeping", wait),
		)
		metrics.ObserveFloodWait(op, wait)
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("flood wait interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
