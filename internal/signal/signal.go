// Package signal holds the scored-prediction domain: the Signal and
// Subscriber records, the deterministic generator, and pick grading.
package signal

import "time"

// Status is the lifecycle state of a Signal. A signal starts PENDING and
// transitions exactly once to a terminal state.
type Status string

// Signal lifecycle states.
const (
	StatusPending Status = "PENDING"
	StatusWin     Status = "WIN"
	StatusLose    Status = "LOSE"
	StatusVoid    Status = "VOID"
)

// Terminal reports whether the status ends the lifecycle.
func (s Status) Terminal() bool {
	return s == StatusWin || s == StatusLose || s == StatusVoid
}

// Citation names one external data source a signal was derived from.
type Citation struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Signal is a scored prediction tied to an external game. Identifiers are
// assigned by the store; status moves PENDING -> {WIN, LOSE, VOID} once.
type Signal struct {
	ID         int64
	CreatedAt  time.Time
	League     string
	GameID     string
	Match      string
	Pick       string
	Confidence int
	Why        []string
	Risks      []string
	Sources    []Citation
	Status     Status
	FinalScore string
	ClosedAt   *time.Time
}

// Subscriber is a destination chat with optional per-chat overrides. Nil or
// empty fields fall back to service defaults.
type Subscriber struct {
	ChatID        int64
	CreatedAt     time.Time
	MinConfidence *int
	Leagues       []string
	DailyTime     string
}
