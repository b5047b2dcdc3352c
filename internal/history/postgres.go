package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pranaflow/pranaflow/internal/observe"
)

const ddlHistory = `
CREATE TABLE IF NOT EXISTS practice_sessions (
    id        TEXT         PRIMARY KEY,
    pose_id   TEXT         NOT NULL,
    pose_name TEXT         NOT NULL,
    date      TIMESTAMPTZ  NOT NULL DEFAULT now(),
    duration  INTEGER      NOT NULL,
    accuracy  DOUBLE PRECISION NOT NULL DEFAULT 0,
    completed BOOLEAN      NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS idx_practice_sessions_date
    ON practice_sessions (date DESC);

CREATE TABLE IF NOT EXISTS meditation_sessions (
    id              TEXT         PRIMARY KEY,
    date            TIMESTAMPTZ  NOT NULL DEFAULT now(),
    duration        INTEGER      NOT NULL,
    affirmation_ids TEXT[]       NOT NULL DEFAULT '{}',
    sound_id        TEXT         NOT NULL DEFAULT '',
    completed       BOOLEAN      NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS idx_meditation_sessions_date
    ON meditation_sessions (date DESC);
`

// PostgresStore mirrors the history [Store] interface onto PostgreSQL,
// selected by configuring a DSN. All operations are safe for concurrent use.
type PostgresStore struct {
	pool    *pgxpool.Pool
	metrics *observe.Metrics
}

// NewPostgresStore connects to the database at dsn and ensures the schema
// exists. Migration is idempotent and runs on every start.
func NewPostgresStore(ctx context.Context, dsn string, metrics *observe.Metrics) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres history: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres history: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlHistory); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres history: migrate: %w", err)
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &PostgresStore{pool: pool, metrics: metrics}, nil
}

// Ping verifies database connectivity. Used by the readiness check.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// AppendPractice inserts one practice record.
func (s *PostgresStore) AppendPractice(ctx context.Context, rec PracticeRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO practice_sessions (id, pose_id, pose_name, date, duration, accuracy, completed)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.PoseID, rec.PoseName, rec.Date, rec.DurationSeconds, rec.Accuracy, rec.Completed)
	if err != nil {
		s.metrics.RecordStoreError(ctx, "postgres")
		return fmt.Errorf("insert practice session: %w", err)
	}
	s.metrics.RecordPersist(ctx, "postgres", "ok")
	return nil
}

// Practices returns all practice records, newest first.
func (s *PostgresStore) Practices(ctx context.Context) ([]PracticeRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, pose_id, pose_name, date, duration, accuracy, completed
		FROM practice_sessions
		ORDER BY date DESC`)
	if err != nil {
		return nil, fmt.Errorf("query practice sessions: %w", err)
	}
	defer rows.Close()

	var out []PracticeRecord
	for rows.Next() {
		var r PracticeRecord
		if err := rows.Scan(&r.ID, &r.PoseID, &r.PoseName, &r.Date,
			&r.DurationSeconds, &r.Accuracy, &r.Completed); err != nil {
			return nil, fmt.Errorf("scan practice session: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read practice sessions: %w", err)
	}
	return out, nil
}

// ClearPractices deletes the entire practice history.
func (s *PostgresStore) ClearPractices(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM practice_sessions`); err != nil {
		s.metrics.RecordStoreError(ctx, "postgres")
		return fmt.Errorf("clear practice sessions: %w", err)
	}
	return nil
}

// AppendMeditation inserts one meditation record.
func (s *PostgresStore) AppendMeditation(ctx context.Context, rec MeditationRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO meditation_sessions (id, date, duration, affirmation_ids, sound_id, completed)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.Date, rec.DurationSeconds, rec.AffirmationIDs, rec.SoundID, rec.Completed)
	if err != nil {
		s.metrics.RecordStoreError(ctx, "postgres")
		return fmt.Errorf("insert meditation session: %w", err)
	}
	s.metrics.RecordPersist(ctx, "postgres", "ok")
	return nil
}

// Meditations returns all meditation records, newest first.
func (s *PostgresStore) Meditations(ctx context.Context) ([]MeditationRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, date, duration, affirmation_ids, sound_id, completed
		FROM meditation_sessions
		ORDER BY date DESC`)
	if err != nil {
		return nil, fmt.Errorf("query meditation sessions: %w", err)
	}
	defer rows.Close()

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (MeditationRecord, error) {
		var r MeditationRecord
		err := row.Scan(&r.ID, &r.Date, &r.DurationSeconds, &r.AffirmationIDs, &r.SoundID, &r.Completed)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("read meditation sessions: %w", err)
	}
	return out, nil
}

var _ Store = (*PostgresStore)(nil)
