// Package postgres provides the Postgres-backed status store.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tymekw/kotori-notify/internal/tracker"
)

const schema = `
CREATE TABLE IF NOT EXISTS status_records (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	volume TEXT NOT NULL,
	status TEXT NOT NULL,
	observed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	notified BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS status_records_item_idx
	ON status_records (title, volume, id DESC);
CREATE INDEX IF NOT EXISTS status_records_unnotified_idx
	ON status_records (id) WHERE NOT notified;
`

// pgxPool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store is the Postgres tracker.Store implementation.
type Store struct {
	pool pgxPool
}

// Open connects a pool, verifies the connection and ensures the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("storage.dsn is required for the postgres driver")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool constructs a store from an existing pool (primarily for tests).
func NewWithPool(pool pgxPool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// LatestStatus returns the highest-id record for the item.
func (s *Store) LatestStatus(ctx context.Context, title, volume string) (tracker.StatusRecord, error) {
	query := `
		SELECT id, title, volume, status, observed_at, notified
		FROM status_records
		WHERE title = $1 AND volume = $2
		ORDER BY id DESC
		LIMIT 1;
	`
	var rec tracker.StatusRecord
	err := s.pool.QueryRow(ctx, query, title, volume).Scan(
		&rec.ID,
		&rec.Title,
		&rec.Volume,
		&rec.Status,
		&rec.ObservedAt,
		&rec.Notified,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tracker.StatusRecord{}, tracker.ErrNotFound
		}
		return tracker.StatusRecord{}, fmt.Errorf("query latest status: %w", err)
	}
	return rec, nil
}

// Append inserts a new unnotified record and returns it with its assigned
// id and timestamp.
func (s *Store) Append(ctx context.Context, title, volume, status string) (tracker.StatusRecord, error) {
	query := `
		INSERT INTO status_records (title, volume, status)
		VALUES ($1, $2, $3)
		RETURNING id, observed_at;
	`
	rec := tracker.StatusRecord{Title: title, Volume: volume, Status: status}
	err := s.pool.QueryRow(ctx, query, title, volume, status).Scan(&rec.ID, &rec.ObservedAt)
	if err != nil {
		return tracker.StatusRecord{}, fmt.Errorf("insert status record: %w", err)
	}
	return rec, nil
}

// MarkNotified sets notified on the record. Updating an already-notified
// record is a no-op; an unknown id is an error.
func (s *Store) MarkNotified(ctx context.Context, id int64) error {
	query := `UPDATE status_records SET notified = TRUE WHERE id = $1;`
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark record %d notified: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark notified: record %d does not exist", id)
	}
	return nil
}

// Unnotified lists records awaiting delivery, oldest first.
func (s *Store) Unnotified(ctx context.Context) ([]tracker.StatusRecord, error) {
	query := `
		SELECT id, title, volume, status, observed_at, notified
		FROM status_records
		WHERE NOT notified
		ORDER BY id ASC;
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query unnotified records: %w", err)
	}
	defer rows.Close()

	var out []tracker.StatusRecord
	for rows.Next() {
		var rec tracker.StatusRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.Title,
			&rec.Volume,
			&rec.Status,
			&rec.ObservedAt,
			&rec.Notified,
		); err != nil {
			return nil, fmt.Errorf("scan status record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unnotified records: %w", err)
	}
	return out, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
