// Package store defines the persistence interfaces for signals and
// subscribers. By using interfaces, the scheduler and reconciler stay
// decoupled from the backing database; a real Postgres store runs in
// production and an in-memory store in tests and local development.
package store

import (
	"context"
	"errors"

	"github.com/avoronin/oddscout/internal/signal"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyClosed is returned when closing a signal that already reached a
// terminal status. The stored state is left unchanged.
var ErrAlreadyClosed = errors.New("signal already closed")

// SignalStore is the durable signal log: append plus in-place status update,
// no deletes.
type SignalStore interface {
	// Insert persists a new signal with status PENDING and returns its
	// monotonically increasing identifier.
	Insert(ctx context.Context, sig signal.Signal) (int64, error)
	// ListPending returns all signals still awaiting settlement, newest first.
	ListPending(ctx context.Context) ([]signal.Signal, error)
	// ListRecent returns at most n signals ordered by descending identifier.
	ListRecent(ctx context.Context, n int) ([]signal.Signal, error)
	// Close transitions a pending signal to a terminal status, recording the
	// final score and close time. Closing a closed signal returns
	// ErrAlreadyClosed.
	Close(ctx context.Context, id int64, status signal.Status, finalScore string) error
}

// SubscriberStore keeps per-chat delivery settings.
type SubscriberStore interface {
	// Upsert registers a chat on first contact; a repeat call is a no-op.
	Upsert(ctx context.Context, chatID int64) error
	Get(ctx context.Context, chatID int64) (signal.Subscriber, error)
	ListChatIDs(ctx context.Context) ([]int64, error)
	SetMinConfidence(ctx context.Context, chatID int64, value int) error
	SetLeagues(ctx context.Context, chatID int64, leagues []string) error
	SetDailyTime(ctx context.Context, chatID int64, hhmm string) error
}
