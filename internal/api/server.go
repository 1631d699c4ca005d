// Package api exposes the HTTP interface for the signal service: health,
// Prometheus metrics, and read/manage endpoints for signals and subscribers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/avoronin/oddscout/internal/snapshot"
	"github.com/avoronin/oddscout/internal/store"
)

const defaultRecentLimit = 20

// Server wires HTTP handlers to the stores and the match snapshot.
type Server struct {
	router      chi.Router
	signals     store.SignalStore
	subscribers store.SubscriberStore
	matches     *snapshot.Store
	logger      *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	signals store.SignalStore,
	subscribers store.SubscriberStore,
	matches *snapshot.Store,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		signals:     signals,
		subscribers: subscribers,
		matches:     matches,
		logger:      logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/signals", func(r chi.Router) {
			r.Get("/recent", s.recentSignals)
			r.Get("/pending", s.pendingSignals)
		})
		r.Get("/matches", s.matchSnapshot)
		r.Route("/subscribers", func(r chi.Router) {
			r.Post("/", s.addSubscriber)
			r.Get("/{chat_id}", s.getSubscriber)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// The signal store is the only hard downstream; one cheap read proves it.
	if _, err := s.signals.ListRecent(r.Context(), 1); err != nil {
		writeError(w, http.StatusServiceUnavailable, "signal store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) recentSignals(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 200 {
			writeError(w, http.StatusBadRequest, "limit must be within [1, 200]")
			return
		}
		limit = n
	}
	signals, err := s.signals.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list signals")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"signals": signals})
}

func (s *Server) pendingSignals(w http.ResponseWriter, r *http.Request) {
	signals, err := s.signals.ListPending(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list signals")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"signals": signals})
}

func (s *Server) matchSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"total":    s.matches.Len(),
		"last_run": s.matches.LastRun(),
		"matches":  s.matches.Matches(),
	})
}

type subscriberRequest struct {
	ChatID int64 `json:"chat_id"`
}

func (s *Server) addSubscriber(w http.ResponseWriter, r *http.Request) {
	var req subscriberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChatID == 0 {
		writeError(w, http.StatusBadRequest, "chat_id required")
		return
	}
	if err := s.subscribers.Upsert(r.Context(), req.ChatID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save subscriber")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"chat_id": req.ChatID})
}

func (s *Server) getSubscriber(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chat_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chat_id")
		return
	}
	sub, err := s.subscribers.Get(r.Context(), chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "subscriber not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch subscriber")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subscriber": sub})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("response encode failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("panic", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}
