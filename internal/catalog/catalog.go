// Package catalog owns the PostgreSQL-backed document metadata table that
// sits alongside the three retrieval cores. EHASH and IIDX only ever see a
// doc_id (an opaque int64 key); catalog is what tells the rest of the
// platform what that doc_id means — its title, size, indexing status, and
// when it was last (re)indexed.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/sapj/retrieval-cores/pkg/postgres"
)

// schema creates the documents table if it does not already exist. Columns
// beyond the catalog's own (title, content_size, status, indexed_at) mirror what
// the ingestion publisher already writes at insert time.
const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id              BIGSERIAL PRIMARY KEY,
	title           TEXT NOT NULL,
	content_hash    TEXT NOT NULL,
	content_size    INTEGER NOT NULL,
	shard_id        INTEGER NOT NULL,
	idempotency_key TEXT UNIQUE,
	status          TEXT NOT NULL DEFAULT 'PENDING',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	indexed_at      TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS documents_created_at_idx ON documents (created_at DESC);
CREATE INDEX IF NOT EXISTS documents_status_idx ON documents (status);
`

// Record is a document's catalog entry.
type Record struct {
	ID          int64
	Title       string
	ContentSize int
	ShardID     int
	Status      string
	CreatedAt   time.Time
	IndexedAt   *time.Time
}

// Catalog reads and writes the documents table.
type Catalog struct {
	db     *postgres.Client
	logger *slog.Logger
}

// New wraps a postgres.Client as a Catalog.
func New(db *postgres.Client) *Catalog {
	return &Catalog{
		db:     db,
		logger: slog.Default().With("component", "catalog"),
	}
}

// EnsureSchema creates the documents table and its indexes if absent. Safe
// to call on every service startup.
func (c *Catalog) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("applying catalog schema: %w", err)
	}
	return nil
}

// MarkIndexed flips a document's status to INDEXED and stamps indexed_at.
// Called by the indexer after a successful Engine.IndexDocument.
func (c *Catalog) MarkIndexed(ctx context.Context, docID int64) error {
	_, err := c.db.DB.ExecContext(ctx,
		`UPDATE documents SET status = 'INDEXED', indexed_at = NOW() WHERE id = $1`, docID)
	if err != nil {
		return fmt.Errorf("marking document %d indexed: %w", docID, err)
	}
	return nil
}

// MarkFailed flips a document's status to FAILED.
func (c *Catalog) MarkFailed(ctx context.Context, docID int64) error {
	_, err := c.db.DB.ExecContext(ctx,
		`UPDATE documents SET status = 'FAILED' WHERE id = $1`, docID)
	if err != nil {
		return fmt.Errorf("marking document %d failed: %w", docID, err)
	}
	return nil
}

// Get fetches a single document's catalog record.
func (c *Catalog) Get(ctx context.Context, docID int64) (*Record, error) {
	var rec Record
	var indexedAt sql.NullTime
	err := c.db.DB.QueryRowContext(ctx,
		`SELECT id, title, content_size, shard_id, status, created_at, indexed_at
		 FROM documents WHERE id = $1`, docID,
	).Scan(&rec.ID, &rec.Title, &rec.ContentSize, &rec.ShardID, &rec.Status, &rec.CreatedAt, &indexedAt)
	if err != nil {
		return nil, fmt.Errorf("fetching document %d: %w", docID, err)
	}
	if indexedAt.Valid {
		rec.IndexedAt = &indexedAt.Time
	}
	return &rec, nil
}

// List returns a paginated, most-recent-first slice of catalog records.
func (c *Catalog) List(ctx context.Context, limit, offset int) ([]Record, error) {
	rows, err := c.db.DB.QueryContext(ctx,
		`SELECT id, title, content_size, shard_id, status, created_at, indexed_at
		 FROM documents ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var indexedAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.ContentSize, &rec.ShardID, &rec.Status, &rec.CreatedAt, &indexedAt); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		if indexedAt.Valid {
			rec.IndexedAt = &indexedAt.Time
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecencyOf returns created_at timestamps for a set of doc_ids, used by the
// ranker to re-order a boolean result set by recency without IIDX itself
// knowing anything about ranking. Missing doc_ids (e.g. a reload gap) are
// simply absent from the returned map; callers treat them as oldest.
func (c *Catalog) RecencyOf(ctx context.Context, docIDs []int64) (map[int64]time.Time, error) {
	if len(docIDs) == 0 {
		return map[int64]time.Time{}, nil
	}
	rows, err := c.db.DB.QueryContext(ctx,
		`SELECT id, created_at FROM documents WHERE id = ANY($1)`, pq.Array(docIDs))
	if err != nil {
		return nil, fmt.Errorf("fetching recency for %d documents: %w", len(docIDs), err)
	}
	defer rows.Close()

	out := make(map[int64]time.Time, len(docIDs))
	for rows.Next() {
		var id int64
		var createdAt time.Time
		if err := rows.Scan(&id, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning recency row: %w", err)
		}
		out[id] = createdAt
	}
	return out, rows.Err()
}
