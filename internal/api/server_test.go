package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avoronin/oddscout/internal/signal"
	"github.com/avoronin/oddscout/internal/snapshot"
	"github.com/avoronin/oddscout/internal/store/memory"
)

func newTestServer(t *testing.T) (*Server, *memory.SignalStore, *memory.SubscriberStore) {
	t.Helper()
	signals := memory.NewSignalStore()
	subs := memory.NewSubscriberStore()
	matches, err := snapshot.Open(filepath.Join(t.TempDir(), "matches.json"), zap.NewNop())
	require.NoError(t, err)
	return NewServer(signals, subs, matches, zap.NewNop()), signals, subs
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	server, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_Readyz(t *testing.T) {
	t.Parallel()

	server, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ready")
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	server, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_RecentSignals(t *testing.T) {
	t.Parallel()

	server, signals, _ := newTestServer(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := signals.Insert(ctx, signal.Signal{
			League:     "NHL",
			Match:      "A — B",
			Pick:       signal.PickHomeNoLose,
			Confidence: 70,
		})
		require.NoError(t, err)
	}

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/signals/recent?limit=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), signal.PickHomeNoLose)
}

func TestServer_RecentSignals_BadLimit(t *testing.T) {
	t.Parallel()

	server, _, _ := newTestServer(t)
	for _, limit := range []string{"0", "-3", "9000", "abc"} {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/signals/recent?limit="+limit, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}

func TestServer_PendingSignals(t *testing.T) {
	t.Parallel()

	server, signals, _ := newTestServer(t)
	ctx := context.Background()
	id, err := signals.Insert(ctx, signal.Signal{League: "NHL", Match: "A — B", Pick: signal.PickAwayNoLose, Confidence: 66})
	require.NoError(t, err)
	require.NoError(t, signals.Close(ctx, id, signal.StatusWin, "B 1 — A 2"))
	_, err = signals.Insert(ctx, signal.Signal{League: "NHL", Match: "C — D", Pick: signal.PickHomeNoLose, Confidence: 70})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/signals/pending", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "C — D")
	require.NotContains(t, rec.Body.String(), "A — B")
}

func TestServer_MatchSnapshot(t *testing.T) {
	t.Parallel()

	server, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/matches", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"total":0`)
}

func TestServer_Subscribers(t *testing.T) {
	t.Parallel()

	server, _, subs := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/subscribers/", bytes.NewBufferString(`{"chat_id": 42}`))
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	chatIDs, err := subs.ListChatIDs(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int64{42}, chatIDs)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/subscribers/42", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "42")

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/subscribers/999", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_AddSubscriber_Invalid(t *testing.T) {
	t.Parallel()

	server, _, _ := newTestServer(t)
	for _, body := range []string{"{invalid", `{"chat_id": 0}`} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/subscribers/", bytes.NewBufferString(body))
		server.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}
