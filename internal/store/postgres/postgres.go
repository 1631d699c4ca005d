// Package postgres provides Postgres-backed store implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avoronin/oddscout/internal/signal"
	"github.com/avoronin/oddscout/internal/store"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Stores bundles the signal and subscriber stores over one pool.
type Stores struct {
	Signals     *SignalStore
	Subscribers *SubscriberStore

	pool dbConn
}

// New connects a pool and returns both stores.
func New(ctx context.Context, cfg Config) (*Stores, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewWithPool(pool), nil
}

// NewWithPool constructs the stores from an existing pool (primarily for
// testing with pgxmock).
func NewWithPool(pool dbConn) *Stores {
	return &Stores{
		Signals:     &SignalStore{pool: pool},
		Subscribers: &SubscriberStore{pool: pool},
		pool:        pool,
	}
}

// Close releases the underlying pool.
func (s *Stores) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// InitSchema creates the tables when they do not exist yet.
func (s *Stores) InitSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS signals (
	id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	league TEXT NOT NULL,
	game_id TEXT NOT NULL DEFAULT '',
	match_text TEXT NOT NULL,
	pick TEXT NOT NULL,
	confidence INT NOT NULL,
	why JSONB NOT NULL DEFAULT '[]',
	risks JSONB NOT NULL DEFAULT '[]',
	sources JSONB NOT NULL DEFAULT '[]',
	status TEXT NOT NULL DEFAULT 'PENDING',
	final_score TEXT,
	closed_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS subscribers (
	chat_id BIGINT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	min_confidence INT,
	leagues TEXT,
	daily_time TEXT
);`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// SignalStore implements store.SignalStore over Postgres.
type SignalStore struct {
	pool dbConn
}

const signalColumns = `id, created_at, league, game_id, match_text, pick, confidence,
	why, risks, sources, status, final_score, closed_at`

// Insert appends a new pending signal and returns its identifier.
func (s *SignalStore) Insert(ctx context.Context, sig signal.Signal) (int64, error) {
	why, err := json.Marshal(orEmpty(sig.Why))
	if err != nil {
		return 0, fmt.Errorf("marshal why: %w", err)
	}
	risks, err := json.Marshal(orEmpty(sig.Risks))
	if err != nil {
		return 0, fmt.Errorf("marshal risks: %w", err)
	}
	sources, err := json.Marshal(sig.Sources)
	if err != nil {
		return 0, fmt.Errorf("marshal sources: %w", err)
	}
	createdAt := sig.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	const query = `
INSERT INTO signals (created_at, league, game_id, match_text, pick, confidence, why, risks, sources, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'PENDING')
RETURNING id`
	var id int64
	err = s.pool.QueryRow(ctx, query,
		createdAt, sig.League, sig.GameID, sig.Match, sig.Pick, sig.Confidence,
		why, risks, sources,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert signal: %w", err)
	}
	return id, nil
}

// ListPending returns pending signals by descending identifier.
func (s *SignalStore) ListPending(ctx context.Context) ([]signal.Signal, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM signals WHERE status = 'PENDING' ORDER BY id DESC`, signalColumns)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()
	return scanSignals(rows)
}

// ListRecent returns at most n signals by descending identifier.
func (s *SignalStore) ListRecent(ctx context.Context, n int) ([]signal.Signal, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM signals ORDER BY id DESC LIMIT $1`, signalColumns)
	rows, err := s.pool.Query(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	defer rows.Close()
	return scanSignals(rows)
}

// Close transitions a pending signal to a terminal status. The guarded
// UPDATE touches only pending rows, so a double close never overwrites the
// first outcome.
func (s *SignalStore) Close(ctx context.Context, id int64, status signal.Status, finalScore string) error {
	const query = `
UPDATE signals SET status = $2, final_score = $3, closed_at = $4
WHERE id = $1 AND status = 'PENDING'`
	tag, err := s.pool.Exec(ctx, query, id, string(status), finalScore, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("close signal: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var current string
	err = s.pool.QueryRow(ctx, `SELECT status FROM signals WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check signal status: %w", err)
	}
	return store.ErrAlreadyClosed
}

func scanSignals(rows pgx.Rows) ([]signal.Signal, error) {
	var out []signal.Signal
	for rows.Next() {
		var (
			sig        signal.Signal
			why        []byte
			risks      []byte
			sources    []byte
			status     string
			finalScore *string
		)
		if err := rows.Scan(
			&sig.ID, &sig.CreatedAt, &sig.League, &sig.GameID, &sig.Match,
			&sig.Pick, &sig.Confidence, &why, &risks, &sources, &status,
			&finalScore, &sig.ClosedAt,
		); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		if err := json.Unmarshal(why, &sig.Why); err != nil {
			return nil, fmt.Errorf("decode why: %w", err)
		}
		if err := json.Unmarshal(risks, &sig.Risks); err != nil {
			return nil, fmt.Errorf("decode risks: %w", err)
		}
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &sig.Sources); err != nil {
				return nil, fmt.Errorf("decode sources: %w", err)
			}
		}
		sig.Status = signal.Status(status)
		if finalScore != nil {
			sig.FinalScore = *finalScore
		}
		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signals: %w", err)
	}
	return out, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// SubscriberStore implements store.SubscriberStore over Postgres. Leagues
// are kept as a comma-separated list, mirroring the delivery settings that
// subscribers set through the command surface.
type SubscriberStore struct {
	pool dbConn
}

// Upsert registers the chat on first contact; repeat contacts are no-ops.
func (s *SubscriberStore) Upsert(ctx context.Context, chatID int64) error {
	const query = `
INSERT INTO subscribers (chat_id, created_at)
VALUES ($1, $2)
ON CONFLICT (chat_id) DO NOTHING`
	if _, err := s.pool.Exec(ctx, query, chatID, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert subscriber: %w", err)
	}
	return nil
}

// Get returns one subscriber or store.ErrNotFound.
func (s *SubscriberStore) Get(ctx context.Context, chatID int64) (signal.Subscriber, error) {
	const query = `
SELECT chat_id, created_at, min_confidence, leagues, daily_time
FROM subscribers WHERE chat_id = $1`
	var (
		sub     signal.Subscriber
		leagues *string
		daily   *string
	)
	err := s.pool.QueryRow(ctx, query, chatID).Scan(
		&sub.ChatID, &sub.CreatedAt, &sub.MinConfidence, &leagues, &daily,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return signal.Subscriber{}, store.ErrNotFound
	}
	if err != nil {
		return signal.Subscriber{}, fmt.Errorf("get subscriber: %w", err)
	}
	if leagues != nil && *leagues != "" {
		sub.Leagues = strings.Split(*leagues, ",")
	}
	if daily != nil {
		sub.DailyTime = *daily
	}
	return sub, nil
}

// ListChatIDs returns every registered chat.
func (s *SubscriberStore) ListChatIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT chat_id FROM subscribers ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("list chat ids: %w", err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chat id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat ids: %w", err)
	}
	return out, nil
}

// SetMinConfidence updates the per-chat confidence floor.
func (s *SubscriberStore) SetMinConfidence(ctx context.Context, chatID int64, value int) error {
	return s.set(ctx, chatID, `UPDATE subscribers SET min_confidence = $2 WHERE chat_id = $1`, value)
}

// SetLeagues updates the per-chat league subset.
func (s *SubscriberStore) SetLeagues(ctx context.Context, chatID int64, leagues []string) error {
	return s.set(ctx, chatID, `UPDATE subscribers SET leagues = $2 WHERE chat_id = $1`,
		strings.Join(leagues, ","))
}

// SetDailyTime updates the per-chat delivery time (HH:MM).
func (s *SubscriberStore) SetDailyTime(ctx context.Context, chatID int64, hhmm string) error {
	return s.set(ctx, chatID, `UPDATE subscribers SET daily_time = $2 WHERE chat_id = $1`, hhmm)
}

func (s *SubscriberStore) set(ctx context.Context, chatID int64, query string, value any) error {
	tag, err := s.pool.Exec(ctx, query, chatID, value)
	if err != nil {
		return fmt.Errorf("update subscriber: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
