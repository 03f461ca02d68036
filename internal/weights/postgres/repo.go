// Package postgres stores filter-weight versions in PostgreSQL with the
// version number assigned inside the insert transaction so publishes
// stay atomic and totally ordered.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/marketops/tradegate/internal/weights"
)

const schema = `
CREATE TABLE IF NOT EXISTS filter_weights (
	version     INT PRIMARY KEY,
	parameters  JSONB NOT NULL,
	trained_at  TIMESTAMPTZ NOT NULL,
	blend_ratio DOUBLE PRECISION NOT NULL,
	samples     INT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Repo implements weights.Store over PostgreSQL.
type Repo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRepo connects, applies the schema, and returns the repository.
func NewRepo(dsn string, timeout time.Duration) (*Repo, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect weights postgres: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply weights schema: %w", err)
	}
	return &Repo{db: db, timeout: timeout}, nil
}

type row struct {
	Version    int       `db:"version"`
	Parameters []byte    `db:"parameters"`
	TrainedAt  time.Time `db:"trained_at"`
	BlendRatio float64   `db:"blend_ratio"`
	Samples    int       `db:"samples"`
}

func (r row) toVersion() (weights.Version, error) {
	var params weights.Parameters
	if err := json.Unmarshal(r.Parameters, &params); err != nil {
		return weights.Version{}, fmt.Errorf("decode weights v%d parameters: %w", r.Version, err)
	}
	return weights.Version{
		Number:     r.Version,
		Parameters: params,
		TrainedAt:  r.TrainedAt,
		BlendRatio: r.BlendRatio,
		Samples:    r.Samples,
	}, nil
}

// Active returns the highest published version.
func (r *Repo) Active(ctx context.Context) (weights.Version, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rw row
	err := r.db.GetContext(ctx, &rw, `
		SELECT version, parameters, trained_at, blend_ratio, samples
		FROM filter_weights ORDER BY version DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return weights.Version{}, false, nil
	}
	if err != nil {
		return weights.Version{}, false, fmt.Errorf("query active weights: %w", err)
	}
	v, err := rw.toVersion()
	return v, err == nil, err
}

// Get fetches one version by number.
func (r *Repo) Get(ctx context.Context, number int) (weights.Version, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rw row
	err := r.db.GetContext(ctx, &rw, `
		SELECT version, parameters, trained_at, blend_ratio, samples
		FROM filter_weights WHERE version = $1`, number)
	if errors.Is(err, sql.ErrNoRows) {
		return weights.Version{}, false, nil
	}
	if err != nil {
		return weights.Version{}, false, fmt.Errorf("query weights v%d: %w", number, err)
	}
	v, err := rw.toVersion()
	return v, err == nil, err
}

// Publish inserts the next version inside one transaction.
func (r *Repo) Publish(ctx context.Context, next weights.Version) (weights.Version, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	params, err := json.Marshal(next.Parameters)
	if err != nil {
		return weights.Version{}, fmt.Errorf("encode weight parameters: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return weights.Version{}, fmt.Errorf("begin weights publish: %w", err)
	}
	defer tx.Rollback()

	if err := tx.GetContext(ctx, &next.Number,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM filter_weights`); err != nil {
		return weights.Version{}, fmt.Errorf("assign weights version: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO filter_weights (version, parameters, trained_at, blend_ratio, samples)
		VALUES ($1, $2, $3, $4, $5)`,
		next.Number, params, next.TrainedAt, next.BlendRatio, next.Samples); err != nil {
		return weights.Version{}, fmt.Errorf("insert weights v%d: %w", next.Number, err)
	}
	if err := tx.Commit(); err != nil {
		return weights.Version{}, fmt.Errorf("commit weights v%d: %w", next.Number, err)
	}
	return next, nil
}

// Close closes the database handle.
func (r *Repo) Close() error { return r.db.Close() }
