// Package store persists transcript segments and the live-connection
// registry in Postgres. Every write is a key-scoped idempotent upsert or
// delete, so at-least-once redelivery of the event log is replay-safe.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"call-analytics-service/internal/models"
)

// Store provides access to the transcript table and the connection registry.
type Store struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// New creates a Store on top of an existing connection pool. ttl is the
// expiry backstop applied to connection registry rows.
func New(pool *pgxpool.Pool, ttl time.Duration) *Store {
	return &Store{pool: pool, ttl: ttl}
}

// Open connects to Postgres and runs schema migration.
func Open(ctx context.Context, url string, ttl time.Duration) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := RunMigration(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migration: %w", err)
	}
	return New(pool, ttl), nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// PutSegment upserts one finalized transcript segment keyed by
// (transactionId, timestamp). Replaying the same record overwrites the row
// with identical content.
func (s *Store) PutSegment(ctx context.Context, seg models.TranscriptSegment) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transcript_segments (transaction_id, timestamp_ms, channel_id, start_time, end_time, transcript)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (transaction_id, timestamp_ms) DO UPDATE
		 SET channel_id = EXCLUDED.channel_id,
		     start_time = EXCLUDED.start_time,
		     end_time = EXCLUDED.end_time,
		     transcript = EXCLUDED.transcript`,
		seg.TransactionID, seg.Timestamp, seg.ChannelID, seg.StartTime, seg.EndTime, seg.Transcript)
	if err != nil {
		return fmt.Errorf("upsert transcript segment: %w", err)
	}
	return nil
}

// ListSegments returns all persisted segments for one call transaction,
// ordered by timestamp.
func (s *Store) ListSegments(ctx context.Context, transactionID string) ([]models.TranscriptSegment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT transaction_id, timestamp_ms, channel_id, start_time, end_time, transcript
		 FROM transcript_segments WHERE transaction_id = $1 ORDER BY timestamp_ms ASC`,
		transactionID)
	if err != nil {
		return nil, fmt.Errorf("list transcript segments: %w", err)
	}
	defer rows.Close()

	var list []models.TranscriptSegment
	for rows.Next() {
		var seg models.TranscriptSegment
		if err := rows.Scan(&seg.TransactionID, &seg.Timestamp, &seg.ChannelID, &seg.StartTime, &seg.EndTime, &seg.Transcript); err != nil {
			return nil, fmt.Errorf("scan transcript segment: %w", err)
		}
		list = append(list, seg)
	}
	return list, rows.Err()
}

// AddConnection registers a live push connection. Adding an existing id is
// not an error and refreshes its expiry.
func (s *Store) AddConnection(ctx context.Context, connectionID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO connections (connection_id, expires_at)
		 VALUES ($1, $2)
		 ON CONFLICT (connection_id) DO UPDATE SET expires_at = EXCLUDED.expires_at`,
		connectionID, time.Now().UTC().Add(s.ttl))
	if err != nil {
		return fmt.Errorf("add connection: %w", err)
	}
	return nil
}

// RemoveConnection deregisters a push connection. Removing an absent id is a
// no-op.
func (s *Store) RemoveConnection(ctx context.Context, connectionID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM connections WHERE connection_id = $1`, connectionID)
	if err != nil {
		return fmt.Errorf("remove connection: %w", err)
	}
	return nil
}

// ListConnections returns a snapshot of live connection ids. Expired rows are
// filtered out here and cleaned up lazily; the registry is a best-effort
// cache, the push channel's send result is authoritative for aliveness.
func (s *Store) ListConnections(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT connection_id FROM connections WHERE expires_at > NOW()`)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan connection id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PruneExpiredConnections deletes registry rows past their expiry. Called
// periodically as a backstop for connections that never saw a disconnect
// signal and were never pruned by a failed send.
func (s *Store) PruneExpiredConnections(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM connections WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("prune expired connections: %w", err)
	}
	return tag.RowsAffected(), nil
}
