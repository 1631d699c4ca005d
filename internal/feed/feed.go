// Package feed defines the boundary to the external messaging platform:
// the source/item types, the error taxonomy, and the rate-limited fetcher
// that every scan goes through.
package feed

import (
	"context"
	"fmt"
	"time"
)

// Source is one external channel or chat that can be polled for content.
// Read-only from this system's perspective.
type Source struct {
	ID       int64
	Title    string
	Username string
	About    string
}

// HasPublicHandle reports whether a permalink can be built for items of this source.
func (s Source) HasPublicHandle() bool {
	return s.Username != ""
}

// Item is one unit of content fetched from a Source. Items are ephemeral;
// only the derived match record is ever persisted.
type Item struct {
	ID       int64
	Date     time.Time
	Text     string
	HasMedia bool
}

// Client lists sources and their most recent items.
//
// RecentItems must yield items newest-first. Implementations signal rate
// limiting with *FloodWaitError and visibility problems with *PermissionError.
type Client interface {
	ListSources(ctx context.Context, limit int) ([]Source, error)
	RecentItems(ctx context.Context, sourceID int64, limit int) ([]Item, error)
}

// FloodWaitError is the platform's "too many requests" signal. RetryAfter is
// the mandated minimum wait before the same request may be repeated.
type FloodWaitError struct {
	RetryAfter time.Duration
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait: retry after %s", e.RetryAfter)
}

// PermissionError marks a source that cannot be read at all. It is not
// transient and the source is skipped for the rest of the run.
type PermissionError struct {
	SourceID int64
	Reason   string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("source %d not accessible: %s", e.SourceID, e.Reason)
}
