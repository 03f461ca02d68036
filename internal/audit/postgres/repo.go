// Package postgres persists audit events to PostgreSQL for deployments
// that want the trail queryable beyond the JSONL file.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/marketops/tradegate/internal/audit"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	seq          BIGINT PRIMARY KEY,
	event_type   TEXT NOT NULL,
	ts           TIMESTAMPTZ NOT NULL,
	symbol       TEXT NOT NULL DEFAULT '',
	candidate_id TEXT NOT NULL DEFAULT '',
	payload      JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_audit_events_type_seq ON audit_events (event_type, seq);
CREATE INDEX IF NOT EXISTS idx_audit_events_symbol ON audit_events (symbol);`

// Repo implements audit.Sink and audit.Reader over PostgreSQL.
type Repo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRepo connects, applies the schema, and returns the repository.
func NewRepo(dsn string, timeout time.Duration) (*Repo, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect audit postgres: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply audit schema: %w", err)
	}
	return &Repo{db: db, timeout: timeout}, nil
}

// Append inserts one event. A duplicate sequence number means two
// writers share one log, which is a deployment bug worth a loud error.
func (r *Repo) Append(ctx context.Context, ev audit.Event) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events (seq, event_type, ts, symbol, candidate_id, payload)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.Seq, ev.Type, ev.Timestamp, ev.Symbol, ev.CandidateID, []byte(ev.Payload))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate audit seq %d (concurrent writer?): %w", ev.Seq, err)
		}
		return fmt.Errorf("insert audit event %d: %w", ev.Seq, err)
	}
	return nil
}

// ReadSince returns events with seq > after in ascending order.
func (r *Repo) ReadSince(ctx context.Context, after uint64) ([]audit.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var out []audit.Event
	err := r.db.SelectContext(ctx, &out, `
		SELECT seq, event_type, ts, symbol, candidate_id, payload
		FROM audit_events WHERE seq > $1 ORDER BY seq ASC`, after)
	if err != nil {
		return nil, fmt.Errorf("read audit events after %d: %w", after, err)
	}
	return out, nil
}

// LastSeq returns the highest persisted sequence number.
func (r *Repo) LastSeq(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var seq uint64
	err := r.db.GetContext(ctx, &seq, `SELECT COALESCE(MAX(seq), 0) FROM audit_events`)
	if err != nil {
		return 0, fmt.Errorf("query last audit seq: %w", err)
	}
	return seq, nil
}

// Close closes the database handle.
func (r *Repo) Close() error { return r.db.Close() }
