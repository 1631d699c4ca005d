package signal

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/avoronin/oddscout/internal/hockey"
	"github.com/avoronin/oddscout/internal/metrics"
)

// Heuristic constants. The differential is the signed points-percentage gap
// (home minus away); only gaps at or above the materiality threshold emit a
// signal, and confidence is an affine map of the gap clamped to the band.
const (
	MaterialityThreshold = 0.08
	ConfidenceBase       = 55
	ConfidenceSlope      = 125
	ConfidenceMin        = 50
	ConfidenceMax        = 80
)

// Double-chance pick texts. The stronger side is favored to not lose rather
// than to win outright.
const (
	PickHomeNoLose = "1X (хозяева не проиграют)"
	PickAwayNoLose = "X2 (гости не проиграют)"
)

// Generator produces signals from per-league feeds. Pure computation over
// the feeds' snapshots; no internal state.
type Generator struct {
	feeds  map[string]hockey.Feed
	logger *zap.Logger
}

// NewGenerator builds a Generator over the registered league feeds.
func NewGenerator(feeds map[string]hockey.Feed, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{feeds: feeds, logger: logger}
}

// Generate collects signals for date across the requested leagues, merged
// and sorted by confidence descending. Unknown leagues are skipped; a failing
// league feed is logged and skipped so the other leagues still produce.
func (g *Generator) Generate(ctx context.Context, date time.Time, leagues []string) []Signal {
	var out []Signal
	for _, league := range leagues {
		feed, ok := g.feeds[league]
		if !ok {
			g.logger.Debug("league not registered", zap.String("league", league))
			continue
		}
		signals, err := g.generateLeague(ctx, feed, league, date)
		if err != nil {
			g.logger.Error("league generation failed",
				zap.String("league", league),
				zap.Error(err),
			)
			continue
		}
		out = append(out, signals...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

func (g *Generator) generateLeague(
	ctx context.Context,
	feed hockey.Feed,
	league string,
	date time.Time,
) ([]Signal, error) {
	matchups, err := feed.Schedule(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	standings, err := feed.Standings(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("standings: %w", err)
	}
	citations := make([]Citation, 0, 2)
	for _, ref := range feed.Sources(date) {
		citations = append(citations, Citation{Name: ref.Name, URL: ref.URL})
	}

	var out []Signal
	for _, m := range matchups {
		sig, ok := buildSignal(league, m, standings, citations)
		if !ok {
			continue
		}
		metrics.IncSignalGenerated(league)
		out = append(out, sig)
	}
	return out, nil
}

func buildSignal(
	league string,
	m hockey.Matchup,
	standings map[string]float64,
	citations []Citation,
) (Signal, bool) {
	homePct, homeOK := standings[m.Home]
	awayPct, awayOK := standings[m.Away]
	if !homeOK || !awayOK {
		return Signal{}, false
	}

	diff := homePct - awayPct
	if diff < MaterialityThreshold && diff > -MaterialityThreshold {
		return Signal{}, false
	}

	pick := PickHomeNoLose
	stronger := m.Home
	if diff < 0 {
		pick = PickAwayNoLose
		stronger = m.Away
	}

	return Signal{
		League:     league,
		GameID:     m.GameID,
		Match:      fmt.Sprintf("%s — %s", m.Away, m.Home),
		Pick:       pick,
		Confidence: Confidence(diff),
		Why: []string{
			fmt.Sprintf("По таблице %s заметно сильнее по %% очков: %s %.3f vs %s %.3f",
				stronger, m.Home, homePct, m.Away, awayPct),
			"База: без учёта вратарей, травм и текущей формы.",
		},
		Risks: []string{
			"Ранний гол или удаления могут сломать сценарий.",
			"Хоккей вариативен — это не гарантия.",
		},
		Sources: citations,
		Status:  StatusPending,
	}, true
}

// Confidence maps the standings differential to the bounded confidence band.
func Confidence(diff float64) int {
	conf := int(ConfidenceBase + diff*ConfidenceSlope)
	if conf < ConfidenceMin {
		return ConfidenceMin
	}
	if conf > ConfidenceMax {
		return ConfidenceMax
	}
	return conf
}
