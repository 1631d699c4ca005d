package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testMatch(sourceID, itemID int64) Match {
	return Match{
		SourceID:    sourceID,
		ItemID:      itemID,
		SourceTitle: "chan",
		Text:        "text",
		CapturedAt:  time.Unix(1000, 0).UTC(),
	}
}

func TestOpenMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	s, err := Open(filepath.Join(t.TempDir(), "matches.json"), zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 0, s.Len())
	require.False(t, s.Has(1, 1))
}

func TestRecordIsIdempotent(t *testing.T) {
	t.Parallel()

	s, err := Open(filepath.Join(t.TempDir(), "matches.json"), zap.NewNop())
	require.NoError(t, err)

	require.True(t, s.Record(testMatch(1, 10)))
	require.False(t, s.Record(testMatch(1, 10)))
	require.True(t, s.Record(testMatch(2, 10)))

	require.Equal(t, 2, s.Len())
	require.True(t, s.Has(1, 10))
	require.True(t, s.Has(2, 10))
}

func TestFlushAndReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "matches.json")
	s, err := Open(path, zap.NewNop())
	require.NoError(t, err)

	s.Record(testMatch(1, 10))
	s.Record(testMatch(1, 11))
	summary := RunSummary{
		RunID:          "run-1",
		RanAt:          time.Unix(2000, 0).UTC(),
		SourcesScanned: 3,
		MatchesFound:   2,
		MatchesAdded:   2,
	}
	require.NoError(t, s.Flush(summary))

	reloaded, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 2, reloaded.Len())
	require.True(t, reloaded.Has(1, 10))
	require.Equal(t, summary, reloaded.LastRun())

	// Uniqueness across the persisted history: re-recording stays a no-op.
	require.False(t, reloaded.Record(testMatch(1, 10)))
}

func TestTornTempWriteLeavesPreviousSnapshot(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "matches.json")
	s, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	s.Record(testMatch(1, 10))
	require.NoError(t, s.Flush(RunSummary{RunID: "run-1"}))

	// Simulate a crash mid-write: garbage left at the temp location.
	require.NoError(t, os.WriteFile(path+".tmp", []byte(`{"matches": [tru`), 0o600))

	reloaded, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.Len())
	require.True(t, reloaded.Has(1, 10))
}

func TestMatchesReturnsCopy(t *testing.T) {
	t.Parallel()

	s, err := Open(filepath.Join(t.TempDir(), "matches.json"), zap.NewNop())
	require.NoError(t, err)
	s.Record(testMatch(1, 10))

	got := s.Matches()
	got[0].Text = "mutated"
	require.Equal(t, "text", s.Matches()[0].Text)
}
