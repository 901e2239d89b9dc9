package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spounge-ai/audittrail/pkg/audit/domain"
)

// PostgresStore persists entries in a single audit_entries table. Frequently
// filtered fields are denormalized into indexed columns; the full entry is
// kept as jsonb and remains the source of truth on read, so query semantics
// match the other stores exactly (the SQL narrows by time range, the shared
// engine applies the rest).
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

const createAuditTable = `
CREATE TABLE IF NOT EXISTS audit_entries (
	id              text PRIMARY KEY,
	ts              timestamptz NOT NULL,
	event_type      text NOT NULL,
	action          text NOT NULL,
	outcome         text NOT NULL,
	actor_id        text,
	resource_type   text,
	resource_id     text,
	chain_seq       bigint,
	chain_hash      text,
	chain_prev_hash text,
	entry           jsonb NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_entries_ts_idx ON audit_entries (ts DESC);
CREATE INDEX IF NOT EXISTS audit_entries_type_idx ON audit_entries (event_type);
CREATE INDEX IF NOT EXISTS audit_entries_actor_idx ON audit_entries (actor_id);`

const insertAuditEntry = `
INSERT INTO audit_entries
	(id, ts, event_type, action, outcome, actor_id, resource_type, resource_id,
	 chain_seq, chain_hash, chain_prev_hash, entry)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

const selectAuditEntries = `
SELECT entry FROM audit_entries
WHERE ($1::timestamptz IS NULL OR ts >= $1)
  AND ($2::timestamptz IS NULL OR ts <= $2)
ORDER BY ts DESC`

// NewPostgresStore connects to the given DSN and bootstraps the
// audit_entries table.
func NewPostgresStore(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	if dsn == "" {
		return nil, domain.ErrMissingDSN
	}
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, createAuditTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create audit_entries table: %w", err)
	}
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Write inserts the entry.
func (s *PostgresStore) Write(ctx context.Context, entry *domain.AuditEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	var seq *int
	var hash, prevHash *string
	if entry.Chain != nil {
		seq = &entry.Chain.Sequence
		hash = &entry.Chain.Hash
		prevHash = &entry.Chain.PreviousHash
	}

	_, err = s.pool.Exec(ctx, insertAuditEntry,
		entry.ID,
		entry.Timestamp,
		string(entry.Event.Type),
		entry.Event.Action,
		string(entry.Event.Outcome),
		entry.Event.NormalizedActorID(),
		entry.Event.NormalizedResourceType(),
		entry.Event.NormalizedResourceID(),
		seq,
		hash,
		prevHash,
		payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// Query narrows by time range in SQL, then delegates the remaining filters
// and pagination to the shared engine.
func (s *PostgresStore) Query(ctx context.Context, q domain.Query) (*domain.QueryResult, error) {
	rows, err := s.pool.Query(ctx, selectAuditEntries, q.From, q.To)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.AuditEntry
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		var entry domain.AuditEntry
		if err := json.Unmarshal(payload, &entry); err != nil {
			s.logger.Warn("skipping undecodable audit entry", "error", err)
			continue
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit entries: %w", err)
	}
	return applyQuery(entries, q), nil
}

// Purge deletes entries older than the given instant.
func (s *PostgresStore) Purge(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM audit_entries WHERE ts < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge audit entries: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
