// Package postgres stores the dispatch log in PostgreSQL.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/PabloGalante/folio-chat/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS dispatches (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	duration_us BIGINT NOT NULL,
	outcome     TEXT NOT NULL,
	status      INTEGER NOT NULL DEFAULT 0,
	stale       BOOLEAN NOT NULL DEFAULT FALSE,
	seq         BIGSERIAL
);
ALTER TABLE dispatches ADD COLUMN IF NOT EXISTS seq BIGSERIAL;
CREATE INDEX IF NOT EXISTS idx_dispatches_started_at ON dispatches (started_at DESC);
`

type DispatchLog struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and makes sure the dispatches table exists.
func Open(ctx context.Context, dsn string) (*DispatchLog, error) {
	if dsn == "" {
		return nil, errors.New("postgres: dsn is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "create pgx pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "apply postgres schema")
	}

	return &DispatchLog{pool: pool}, nil
}

func (l *DispatchLog) Close() error {
	l.pool.Close()
	return nil
}

func (l *DispatchLog) RecordDispatch(ctx context.Context, rec *domain.DispatchRecord) error {
	if rec == nil {
		return nil
	}

	query := `INSERT INTO dispatches (id, session_id, started_at, duration_us, outcome, status, stale)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := l.pool.Exec(ctx, query,
		string(rec.ID),
		string(rec.SessionID),
		rec.StartedAt,
		rec.Duration.Microseconds(),
		rec.Outcome,
		rec.Status,
		rec.Stale,
	)
	return errors.Wrap(err, "insert dispatch")
}

func (l *DispatchLog) RecentDispatches(ctx context.Context, limit int) ([]*domain.DispatchRecord, error) {
	query := `SELECT id, session_id, started_at, duration_us, outcome, status, stale
		FROM dispatches
		ORDER BY started_at DESC, seq DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query dispatches")
	}
	defer rows.Close()

	var out []*domain.DispatchRecord
	for rows.Next() {
		var (
			id, sessionID, outcome string
			startedAt              time.Time
			durationUS             int64
			status                 int32
			stale                  bool
		)
		if err := rows.Scan(&id, &sessionID, &startedAt, &durationUS, &outcome, &status, &stale); err != nil {
			return nil, errors.Wrap(err, "scan dispatch")
		}
		out = append(out, &domain.DispatchRecord{
			ID:        domain.DispatchID(id),
			SessionID: domain.SessionID(sessionID),
			StartedAt: startedAt,
			Duration:  time.Duration(durationUS) * time.Microsecond,
			Outcome:   outcome,
			Status:    int(status),
			Stale:     stale,
		})
	}
	return out, errors.Wrap(rows.Err(), "iterate dispatches")
}
