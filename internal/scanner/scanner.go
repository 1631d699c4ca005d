// Package scanner implements the scan orchestrator: it walks the sources,
// classifies recent items, skips duplicates, and flushes the dedup snapshot.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avoronin/oddscout/internal/classify"
	"github.com/avoronin/oddscout/internal/feed"
	"github.com/avoronin/oddscout/internal/metrics"
	"github.com/avoronin/oddscout/internal/snapshot"
)

// Feed is the rate-limited view of the messaging platform the scanner walks.
// *feed.Fetcher satisfies it.
type Feed interface {
	ListSources(ctx context.Context, limit int) ([]feed.Source, error)
	RecentItems(ctx context.Context, sourceID int64, limit int) ([]feed.Item, error)
}

// Clock yields the capture timestamps.
type Clock interface {
	Now() time.Time
}

// Config bounds one scan run.
type Config struct {
	// MaxSources caps how many sources one run enumerates.
	MaxSources int
	// MaxItems caps how many recent items are walked per source.
	MaxItems int
	// LinkBase is the public permalink prefix for sources with a handle.
	LinkBase string
}

// Scanner runs one orchestrated pass over all sources.
type Scanner struct {
	feed       Feed
	classifier *classify.Classifier
	store      *snapshot.Store
	clock      Clock
	cfg        Config
	logger     *zap.Logger
}

// New constructs a Scanner.
func New(
	f Feed,
	classifier *classify.Classifier,
	store *snapshot.Store,
	clock Clock,
	cfg Config,
	logger *zap.Logger,
) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = 200
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 40
	}
	if cfg.LinkBase == "" {
		cfg.LinkBase = "https://t.me"
	}
	return &Scanner{
		feed:       f,
		classifier: classifier,
		store:      store,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run executes one scan pass. Per-source failures are logged and skipped;
// only a failure to enumerate sources or to flush the snapshot aborts the
// run. The returned summary is also persisted into the snapshot.
func (s *Scanner) Run(ctx context.Context) (snapshot.RunSummary, error) {
	start := s.clock.Now()
	sources, err := s.feed.ListSources(ctx, s.cfg.MaxSources)
	if err != nil {
		metrics.IncScanRun("failed")
		return snapshot.RunSummary{}, fmt.Errorf("list sources: %w", err)
	}

	summary := snapshot.RunSummary{
		RunID: uuid.NewString(),
		RanAt: start,
	}
	for _, src := range sources {
		if ctx.Err() != nil {
			break
		}
		found, added := s.scanSource(ctx, src)
		summary.SourcesScanned++
		summary.MatchesFound += found
		summary.MatchesAdded += added
	}

	if err := s.store.Flush(summary); err != nil {
		metrics.IncScanRun("failed")
		return summary, fmt.Errorf("flush snapshot: %w", err)
	}

	metrics.IncScanRun("ok")
	metrics.AddSourcesScanned(summary.SourcesScanned)
	metrics.ObserveScanDuration(s.clock.Now().Sub(start))
	s.logger.Info("scan run finished",
		zap.String("run_id", summary.RunID),
		zap.Int("sources", summary.SourcesScanned),
		zap.Int("found", summary.MatchesFound),
		zap.Int("added", summary.MatchesAdded),
	)
	return summary, nil
}

// scanSource walks one source newest-first up to the per-source cap.
func (s *Scanner) scanSource(ctx context.Context, src feed.Source) (found, added int) {
	items, err := s.feed.RecentItems(ctx, src.ID, s.cfg.MaxItems)
	if err != nil {
		var perm *feed.PermissionError
		if errors.As(err, &perm) {
			s.logger.Warn("source not accessible",
				zap.Int64("source_id", src.ID),
				zap.String("title", src.Title),
				zap.String("reason", perm.Reason),
			)
		} else {
			s.logger.Error("source fetch failed",
				zap.Int64("source_id", src.ID),
				zap.String("title", src.Title),
				zap.Error(err),
			)
		}
		return 0, 0
	}

	for _, item := range items {
		if item.Text == "" {
			continue
		}
		include, hint := s.classifier.Classify(item.Text)
		if !include {
			continue
		}
		found++
		if s.store.Has(src.ID, item.ID) {
			metrics.IncMatch("duplicate")
			continue
		}
		if s.store.Record(s.buildMatch(src, item, hint)) {
			metrics.IncMatch("new")
			added++
		}
	}
	return found, added
}

func (s *Scanner) buildMatch(src feed.Source, item feed.Item, hint bool) snapshot.Match {
	m := snapshot.Match{
		SourceID:    src.ID,
		ItemID:      item.ID,
		SourceTitle: src.Title,
		Text:        classify.Normalize(item.Text),
		BetHint:     hint,
		HasMedia:    item.HasMedia,
		CapturedAt:  s.clock.Now(),
	}
	if src.HasPublicHandle() {
		m.Link = fmt.Sprintf("%s/%s/%d", s.cfg.LinkBase, src.Username, item.ID)
	}
	return m
}
