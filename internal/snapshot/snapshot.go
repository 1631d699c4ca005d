// Package snapshot persists the dedup/match state of the scanner as a single
// JSON document, rewritten in full through an atomic replace on every run.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Match is one classified, deduplicated item of interest from a source.
// Immutable once recorded; the (SourceID, ItemID) pair is globally unique.
type Match struct {
	SourceID    int64     `json:"source_id"`
	ItemID      int64     `json:"item_id"`
	SourceTitle string    `json:"source_title"`
	Text        string    `json:"text"`
	BetHint     bool      `json:"bet_hint"`
	Link        string    `json:"link,omitempty"`
	HasMedia    bool      `json:"has_media,omitempty"`
	CapturedAt  time.Time `json:"captured_at"`
}

// RunSummary describes the last completed scan run. It is overwritten by the
// next run, not kept as history.
type RunSummary struct {
	RunID          string    `json:"run_id"`
	RanAt          time.Time `json:"ran_at"`
	SourcesScanned int       `json:"sources_scanned"`
	MatchesFound   int       `json:"matches_found"`
	MatchesAdded   int       `json:"matches_added"`
}

// document is the on-disk envelope.
type document struct {
	GeneratedAt time.Time  `json:"generated_at"`
	LastRun     RunSummary `json:"last_run"`
	Total       int        `json:"total"`
	Matches     []Match    `json:"matches"`
}

// Store is the durable dedup record. Loaded once at construction, mutated in
// memory during a run, flushed in full at run end.
type Store struct {
	mu      sync.RWMutex
	path    string
	seen    map[string]struct{}
	matches []Match
	lastRun RunSummary
	logger  *zap.Logger
}

func key(sourceID, itemID int64) string {
	return fmt.Sprintf("%d:%d", sourceID, itemID)
}

// Open loads the snapshot at path. A missing file yields an empty store; a
// leftover temp file from an interrupted flush is ignored.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		path:   path,
		seen:   make(map[string]struct{}),
		logger: logger,
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	for _, m := range doc.Matches {
		k := key(m.SourceID, m.ItemID)
		if _, dup := s.seen[k]; dup {
			continue
		}
		s.seen[k] = struct{}{}
		s.matches = append(s.matches, m)
	}
	s.lastRun = doc.LastRun
	logger.Info("snapshot loaded",
		zap.String("path", path),
		zap.Int("matches", len(s.matches)),
	)
	return s, nil
}

// Has reports whether the (sourceID, itemID) pair was already recorded.
func (s *Store) Has(sourceID, itemID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[key(sourceID, itemID)]
	return ok
}

// Record adds a match. Recording an already-known key is a no-op; the return
// value reports whether the match was new.
func (s *Store) Record(m Match) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(m.SourceID, m.ItemID)
	if _, dup := s.seen[k]; dup {
		return false
	}
	s.seen[k] = struct{}{}
	s.matches = append(s.matches, m)
	return true
}

// Len returns the number of recorded matches.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matches)
}

// Matches returns a copy of all recorded matches in insertion order.
func (s *Store) Matches() []Match {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Match, len(s.matches))
	copy(out, s.matches)
	return out
}

// LastRun returns the most recently flushed run summary.
func (s *Store) LastRun() RunSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

// Flush writes the complete document to disk. The write goes to a temp file
// in the same directory followed by a rename, so a crash mid-write leaves the
// previous snapshot intact.
func (s *Store) Flush(summary RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun = summary
	doc := document{
		GeneratedAt: time.Now().UTC(),
		LastRun:     summary,
		Total:       len(s.matches),
		Matches:     s.matches,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write snapshot temp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
