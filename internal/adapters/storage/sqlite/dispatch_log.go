// Package sqlite stores the dispatch log in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/PabloGalante/folio-chat/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS dispatches (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	duration_us INTEGER NOT NULL,
	outcome     TEXT NOT NULL,
	status      INTEGER NOT NULL DEFAULT 0,
	stale       INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_dispatches_started_at ON dispatches(started_at);
`

type DispatchLog struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*DispatchLog, error) {
	if path == "" {
		return nil, errors.New("sqlite: path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite %s", path)
	}
	// a single writer avoids SQLITE_BUSY between goroutines
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "apply sqlite schema")
	}

	return &DispatchLog{db: db}, nil
}

func (l *DispatchLog) Close() error {
	return l.db.Close()
}

func (l *DispatchLog) RecordDispatch(ctx context.Context, rec *domain.DispatchRecord) error {
	if rec == nil {
		return nil
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO dispatches (id, session_id, started_at, duration_us, outcome, status, stale)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(rec.ID),
		string(rec.SessionID),
		rec.StartedAt.UnixNano(),
		rec.Duration.Microseconds(),
		rec.Outcome,
		rec.Status,
		rec.Stale,
	)
	return errors.Wrap(err, "insert dispatch")
}

func (l *DispatchLog) RecentDispatches(ctx context.Context, limit int) ([]*domain.DispatchRecord, error) {
	q := `SELECT id, session_id, started_at, duration_us, outcome, status, stale
	      FROM dispatches ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query dispatches")
	}
	defer rows.Close()

	var out []*domain.DispatchRecord
	for rows.Next() {
		var (
			id, sessionID, outcome string
			startedAt, durationUS  int64
			status                 int
			stale                  bool
		)
		if err := rows.Scan(&id, &sessionID, &startedAt, &durationUS, &outcome, &status, &stale); err != nil {
			return nil, errors.Wrap(err, "scan dispatch")
		}
		out = append(out, &domain.DispatchRecord{
			ID:        domain.DispatchID(id),
			SessionID: domain.SessionID(sessionID),
			StartedAt: time.Unix(0, startedAt),
			Duration:  time.Duration(durationUS) * time.Microsecond,
			Outcome:   outcome,
			Status:    status,
			Stale:     stale,
		})
	}
	return out, errors.Wrap(rows.Err(), "iterate dispatches")
}
