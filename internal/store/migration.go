package store

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS transcript_segments (
		transaction_id TEXT NOT NULL,
		timestamp_ms BIGINT NOT NULL,
		channel_id TEXT NOT NULL,
		start_time DOUBLE PRECISION NOT NULL,
		end_time DOUBLE PRECISION NOT NULL,
		transcript TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (transaction_id, timestamp_ms)
	)`,
	`CREATE TABLE IF NOT EXISTS connections (
		connection_id TEXT PRIMARY KEY,
		connected_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_connections_expires ON connections (expires_at)`,
}

// RunMigration applies the schema statements in order. Every statement is
// idempotent so startup migration is safe to repeat.
func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
