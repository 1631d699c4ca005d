// Package hockey defines the boundary to per-league external data feeds:
// today's schedule, a standings table, and per-game final results.
package hockey

import (
	"context"
	"time"
)

// Matchup is one scheduled game.
type Matchup struct {
	GameID   string
	StartUTC time.Time
	Home     string
	Away     string
}

// FinalResult is the authoritative outcome of a game. Finalized is false
// while the game is still in progress or unplayed; scores are only valid
// when Finalized is true.
type FinalResult struct {
	Finalized bool
	HomeScore int
	AwayScore int
	// Score is the human-readable final line, away first.
	Score string
}

// SourceRef names one external endpoint a signal was derived from.
type SourceRef struct {
	Name string
	URL  string
}

// Feed exposes a league's external data. Standings maps team name to the
// league's summary metric (points percentage); teams with no usable metric
// are absent from the map.
type Feed interface {
	Schedule(ctx context.Context, date time.Time) ([]Matchup, error)
	Standings(ctx context.Context, date time.Time) (map[string]float64, error)
	FinalResult(ctx context.Context, gameID string) (FinalResult, error)
	// Sources describes the endpoints consulted for date, for citation.
	Sources(date time.Time) []SourceRef
}
