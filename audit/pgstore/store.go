// Package pgstore mirrors appended audit events into PostgreSQL. It is
// strictly additive: the local hash-chained audit.Log file remains the
// node's authoritative record, and a mirror failure never blocks an
// append to it.
package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/genesis-mesh/node/audit"
)

// Store writes audit.Event rows to a Postgres table for operators who
// want to query the audit trail with SQL instead of replaying the
// local log file.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and ensures the mirror table exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("audit/pgstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit/pgstore: ping: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS audit_events (
			index       BIGINT PRIMARY KEY,
			prev_hash   TEXT NOT NULL,
			this_hash   TEXT NOT NULL,
			timestamp   TIMESTAMPTZ NOT NULL,
			kind        TEXT NOT NULL,
			actor       TEXT NOT NULL,
			subject     TEXT NOT NULL,
			detail      JSONB
		)
	`)
	if err != nil {
		return fmt.Errorf("audit/pgstore: ensure schema: %w", err)
	}
	return nil
}

// Append mirrors e into the audit_events table. Index is the chain
// position and is unique, so a retried mirror of the same event is a
// harmless no-op rather than a duplicate row.
func (s *Store) Append(ctx context.Context, e audit.Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_events (index, prev_hash, this_hash, timestamp, kind, actor, subject, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (index) DO NOTHING
	`,
		e.Index,
		fmt.Sprintf("%x", e.PrevHash),
		fmt.Sprintf("%x", e.ThisHash),
		e.Timestamp,
		string(e.Kind),
		e.Actor,
		e.Subject,
		e.Detail,
	)
	if err != nil {
		return fmt.Errorf("audit/pgstore: append: %w", err)
	}
	return nil
}

// Latest returns the highest mirrored index, or -1 if the table is
// empty, so a node can resume mirroring from where it left off.
func (s *Store) Latest(ctx context.Context) (int64, error) {
	var idx int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(index), -1) FROM audit_events`).Scan(&idx)
	if err != nil && err != pgx.ErrNoRows {
		return -1, fmt.Errorf("audit/pgstore: latest: %w", err)
	}
	return idx, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
