// Package memory provides in-memory store implementations for local
// development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/avoronin/oddscout/internal/signal"
	"github.com/avoronin/oddscout/internal/store"
)

// SignalStore is a mutex-guarded in-memory signal log.
type SignalStore struct {
	mu      sync.RWMutex
	nextID  int64
	signals []signal.Signal
	now     func() time.Time
}

// NewSignalStore returns an empty SignalStore.
func NewSignalStore() *SignalStore {
	return &SignalStore{nextID: 1, now: func() time.Time { return time.Now().UTC() }}
}

// Insert assigns the next identifier and appends the signal as PENDING.
func (s *SignalStore) Insert(_ context.Context, sig signal.Signal) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sig.ID = s.nextID
	s.nextID++
	sig.Status = signal.StatusPending
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = s.now()
	}
	s.signals = append(s.signals, sig)
	return sig.ID, nil
}

// ListPending returns pending signals newest first.
func (s *SignalStore) ListPending(_ context.Context) ([]signal.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []signal.Signal
	for i := len(s.signals) - 1; i >= 0; i-- {
		if s.signals[i].Status == signal.StatusPending {
			out = append(out, s.signals[i])
		}
	}
	return out, nil
}

// ListRecent returns at most n signals by descending identifier.
func (s *SignalStore) ListRecent(_ context.Context, n int) ([]signal.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []signal.Signal
	for i := len(s.signals) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.signals[i])
	}
	return out, nil
}

// Close transitions a pending signal to a terminal status.
func (s *SignalStore) Close(_ context.Context, id int64, status signal.Status, finalScore string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.signals {
		if s.signals[i].ID != id {
			continue
		}
		if s.signals[i].Status != signal.StatusPending {
			return store.ErrAlreadyClosed
		}
		closedAt := s.now()
		s.signals[i].Status = status
		s.signals[i].FinalScore = finalScore
		s.signals[i].ClosedAt = &closedAt
		return nil
	}
	return store.ErrNotFound
}

// SubscriberStore is a mutex-guarded in-memory subscriber table.
type SubscriberStore struct {
	mu   sync.RWMutex
	subs map[int64]signal.Subscriber
	// order preserves first-contact ordering for ListChatIDs.
	order []int64
	now   func() time.Time
}

// NewSubscriberStore returns an empty SubscriberStore.
func NewSubscriberStore() *SubscriberStore {
	return &SubscriberStore{
		subs: make(map[int64]signal.Subscriber),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Upsert registers the chat if unseen; an existing chat is untouched.
func (s *SubscriberStore) Upsert(_ context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[chatID]; ok {
		return nil
	}
	s.subs[chatID] = signal.Subscriber{ChatID: chatID, CreatedAt: s.now()}
	s.order = append(s.order, chatID)
	return nil
}

// Get returns the subscriber or store.ErrNotFound.
func (s *SubscriberStore) Get(_ context.Context, chatID int64) (signal.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[chatID]
	if !ok {
		return signal.Subscriber{}, store.ErrNotFound
	}
	return sub, nil
}

// ListChatIDs returns all registered chats in first-contact order.
func (s *SubscriberStore) ListChatIDs(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int64, len(s.order))
	copy(out, s.order)
	return out, nil
}

// SetMinConfidence updates the per-chat confidence floor.
func (s *SubscriberStore) SetMinConfidence(_ context.Context, chatID int64, value int) error {
	return s.update(chatID, func(sub *signal.Subscriber) {
		sub.MinConfidence = &value
	})
}

// SetLeagues updates the per-chat league subset.
func (s *SubscriberStore) SetLeagues(_ context.Context, chatID int64, leagues []string) error {
	return s.update(chatID, func(sub *signal.Subscriber) {
		sub.Leagues = append([]string(nil), leagues...)
	})
}

// SetDailyTime updates the per-chat delivery time (HH:MM).
func (s *SubscriberStore) SetDailyTime(_ context.Context, chatID int64, hhmm string) error {
	return s.update(chatID, func(sub *signal.Subscriber) {
		sub.DailyTime = hhmm
	})
}

func (s *SubscriberStore) update(chatID int64, fn func(*signal.Subscriber)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[chatID]
	if !ok {
		return store.ErrNotFound
	}
	fn(&sub)
	s.subs[chatID] = sub
	return nil
}
