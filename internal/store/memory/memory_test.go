package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avoronin/oddscout/internal/signal"
	"github.com/avoronin/oddscout/internal/store"
)

func TestSignalStoreAssignsMonotonicIDs(t *testing.T) {
	t.Parallel()

	s := NewSignalStore()
	ctx := context.Background()

	var last int64
	for i := 0; i < 5; i++ {
		id, err := s.Insert(ctx, signal.Signal{League: "NHL", Pick: signal.PickHomeNoLose})
		require.NoError(t, err)
		require.Greater(t, id, last)
		last = id
	}

	recent, err := s.ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	require.Equal(t, int64(5), recent[0].ID)
	require.Equal(t, int64(4), recent[1].ID)
	require.Equal(t, int64(3), recent[2].ID)
}

func TestSignalStoreInsertForcesPending(t *testing.T) {
	t.Parallel()

	s := NewSignalStore()
	id, err := s.Insert(context.Background(), signal.Signal{Status: signal.StatusWin})
	require.NoError(t, err)

	pending, err := s.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, id, pending[0].ID)
}

func TestSignalStoreCloseLifecycle(t *testing.T) {
	t.Parallel()

	s := NewSignalStore()
	ctx := context.Background()
	id, err := s.Insert(ctx, signal.Signal{League: "NHL"})
	require.NoError(t, err)

	require.NoError(t, s.Close(ctx, id, signal.StatusWin, "Away 2 — Home 3"))

	pending, err := s.ListPending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)

	recent, err := s.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, signal.StatusWin, recent[0].Status)
	require.Equal(t, "Away 2 — Home 3", recent[0].FinalScore)
	require.NotNil(t, recent[0].ClosedAt)
}

func TestSignalStoreDoubleCloseRejectedAndUnchanged(t *testing.T) {
	t.Parallel()

	s := NewSignalStore()
	ctx := context.Background()
	id, err := s.Insert(ctx, signal.Signal{League: "NHL"})
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx, id, signal.StatusWin, "2 — 3"))

	err = s.Close(ctx, id, signal.StatusLose, "9 — 0")
	require.ErrorIs(t, err, store.ErrAlreadyClosed)

	recent, err := s.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, signal.StatusWin, recent[0].Status)
	require.Equal(t, "2 — 3", recent[0].FinalScore)
}

func TestSignalStoreCloseUnknownID(t *testing.T) {
	t.Parallel()

	s := NewSignalStore()
	err := s.Close(context.Background(), 99, signal.StatusVoid, "")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSubscriberStoreUpsertAndOverrides(t *testing.T) {
	t.Parallel()

	s := NewSubscriberStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, 100))
	require.NoError(t, s.Upsert(ctx, 200))
	require.NoError(t, s.Upsert(ctx, 100)) // repeat contact is a no-op

	ids, err := s.ListChatIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{100, 200}, ids)

	require.NoError(t, s.SetMinConfidence(ctx, 100, 70))
	require.NoError(t, s.SetLeagues(ctx, 100, []string{"NHL", "KHL"}))
	require.NoError(t, s.SetDailyTime(ctx, 100, "09:15"))

	sub, err := s.Get(ctx, 100)
	require.NoError(t, err)
	require.NotNil(t, sub.MinConfidence)
	require.Equal(t, 70, *sub.MinConfidence)
	require.Equal(t, []string{"NHL", "KHL"}, sub.Leagues)
	require.Equal(t, "09:15", sub.DailyTime)

	// The other subscriber keeps its defaults.
	other, err := s.Get(ctx, 200)
	require.NoError(t, err)
	require.Nil(t, other.MinConfidence)
	require.Empty(t, other.Leagues)
}

func TestSubscriberStoreUnknownChat(t *testing.T) {
	t.Parallel()

	s := NewSubscriberStore()
	_, err := s.Get(context.Background(), 5)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, s.SetDailyTime(context.Background(), 5, "10:00"), store.ErrNotFound)
}
