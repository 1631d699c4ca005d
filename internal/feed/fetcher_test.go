package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type floodOnceClient struct {
	mu       sync.Mutex
	attempts int
	wait     time.Duration
	items    []Item
}

func (c *floodOnceClient) ListSources(_ context.Context, _ int) ([]Source, error) {
	return nil, nil
}

func (c *floodOnceClient) RecentItems(_ context.Context, _ int64, _ int) ([]Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	if c.attempts == 1 {
		return nil, &FloodWaitError{RetryAfter: c.wait}
	}
	return c.items, nil
}

func TestFetcherRetriesFloodWait(t *testing.T) {
	t.Parallel()

	client := &floodOnceClient{
		wait:  50 * time.Millisecond,
		items: []Item{{ID: 7, Text: "hello"}},
	}
	f := NewFetcher(client, FetcherConfig{}, zap.NewNop())

	start := time.Now()
	items, err := f.RecentItems(context.Background(), 1, 10)
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, int64(7), items[0].ID)
	require.Equal(t, 2, client.attempts)
	require.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestFetcherCapsSingleWait(t *testing.T) {
	t.Parallel()

	client := &floodOnceClient{wait: time.Hour}
	f := NewFetcher(client, FetcherConfig{MaxWait: 20 * time.Millisecond}, zap.NewNop())

	start := time.Now()
	_, err := f.RecentItems(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Less(t, time.Since(start), time.Second)
}

type failingClient struct{}

func (failingClient) ListSources(_ context.Context, _ int) ([]Source, error) {
	return nil, errors.New("boom")
}

func (failingClient) RecentItems(_ context.Context, _ int64, _ int) ([]Item, error) {
	return nil, &PermissionError{SourceID: 9, Reason: "private"}
}

func TestFetcherDoesNotRetryOtherErrors(t *testing.T) {
	t.Parallel()

	f := NewFetcher(failingClient{}, FetcherConfig{}, zap.NewNop())

	_, err := f.ListSources(context.Background(), 5)
	require.EqualError(t, err, "boom")

	_, err = f.RecentItems(context.Background(), 9, 5)
	var perm *PermissionError
	require.ErrorAs(t, err, &perm)
	require.Equal(t, int64(9), perm.SourceID)
}

func TestFetcherWaitRespectsContext(t *testing.T) {
	t.Parallel()

	client := &floodOnceClient{wait: time.Hour}
	f := NewFetcher(client, FetcherConfig{MaxWait: time.Hour}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.RecentItems(ctx, 1, 10)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
