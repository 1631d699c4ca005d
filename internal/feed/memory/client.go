// Package memory provides an in-memory feed client for local development
// and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/avoronin/oddscout/internal/feed"
)

// Client serves canned sources and items.
type Client struct {
	mu      sync.RWMutex
	sources []feed.Source
	items   map[int64][]feed.Item
	errs    map[int64]error
}

// NewClient returns an empty Client.
func NewClient() *Client {
	return &Client{
		items: make(map[int64][]feed.Item),
		errs:  make(map[int64]error),
	}
}

// AddSource registers a source with its items. Items are served newest-first
// regardless of insertion order.
func (c *Client) AddSource(src feed.Source, items ...feed.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources = append(c.sources, src)
	sorted := append([]feed.Item(nil), items...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID > sorted[j].ID })
	c.items[src.ID] = sorted
}

// FailSource makes RecentItems return err for the given source.
func (c *Client) FailSource(sourceID int64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs[sourceID] = err
}

// ListSources returns up to limit registered sources in insertion order.
func (c *Client) ListSources(_ context.Context, limit int) ([]feed.Source, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := len(c.sources)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]feed.Source, n)
	copy(out, c.sources[:n])
	return out, nil
}

// RecentItems returns up to limit newest-first items for the source.
func (c *Client) RecentItems(_ context.Context, sourceID int64, limit int) ([]feed.Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.errs[sourceID]; err != nil {
		return nil, err
	}
	items := c.items[sourceID]
	n := len(items)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]feed.Item, n)
	copy(out, items[:n])
	return out, nil
}
