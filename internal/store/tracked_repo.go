package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const trackedSchema = `
CREATE TABLE IF NOT EXISTS tracked_rows (
	dataset TEXT NOT NULL,
	table_name TEXT NOT NULL,
	row_num INTEGER NOT NULL,
	row_hash TEXT NOT NULL,
	last_seen_at TIMESTAMP NOT NULL,
	PRIMARY KEY (table_name, row_num)
);

CREATE INDEX IF NOT EXISTS idx_tracked_rows_dataset ON tracked_rows(dataset);
`

// TrackedRepo stores the per-row content fingerprints for incremental
// targets. Full-sync targets never have entries here.
type TrackedRepo struct {
	db *sqlx.DB
}

func NewTrackedRepo(db *sqlx.DB) (*TrackedRepo, error) {
	if _, err := db.Exec(trackedSchema); err != nil {
		return nil, fmt.Errorf("init tracked_rows schema: %w", err)
	}
	return &TrackedRepo{db: db}, nil
}

// MapForTable returns row number -> hash for every tracked row of a table.
func (r *TrackedRepo) MapForTable(ctx context.Context, table string) (map[int64]string, error) {
	q := r.db.Rebind("SELECT row_num, row_hash FROM tracked_rows WHERE table_name = ?")
	rows, err := r.db.QueryxContext(ctx, q, table)
	if err != nil {
		return nil, fmt.Errorf("query tracked rows for %s: %w", table, err)
	}
	defer rows.Close()

	out := make(map[int64]string)
	for rows.Next() {
		var rowNum int64
		var hash string
		if err := rows.Scan(&rowNum, &hash); err != nil {
			return nil, fmt.Errorf("scan tracked row: %w", err)
		}
		out[rowNum] = hash
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracked rows: %w", err)
	}
	return out, nil
}

// UpsertBatch writes a batch of fingerprints on the given executor, so the
// caller can run it inside the same transaction as the data rows.
func (r *TrackedRepo) UpsertBatch(ctx context.Context, ext sqlx.ExtContext, entries []TrackedRow) error {
	if len(entries) == 0 {
		return nil
	}

	q := ext.Rebind(`
		INSERT INTO tracked_rows (dataset, table_name, row_num, row_hash, last_seen_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (table_name, row_num) DO UPDATE SET
			dataset = excluded.dataset,
			row_hash = excluded.row_hash,
			last_seen_at = excluded.last_seen_at`)
	now := time.Now().UTC()
	for _, e := range entries {
		seen := e.LastSeenAt
		if seen.IsZero() {
			seen = now
		}
		if _, err := ext.ExecContext(ctx, q, e.Dataset, e.TableName, e.RowNum, e.RowHash, seen); err != nil {
			return fmt.Errorf("upsert tracked row %s#%d: %w", e.TableName, e.RowNum, err)
		}
	}
	return nil
}

// DeleteRow removes one fingerprint on the given executor.
func (r *TrackedRepo) DeleteRow(ctx context.Context, ext sqlx.ExtContext, table string, rowNum int64) error {
	q := ext.Rebind("DELETE FROM tracked_rows WHERE table_name = ? AND row_num = ?")
	if _, err := ext.ExecContext(ctx, q, table, rowNum); err != nil {
		return fmt.Errorf("delete tracked row %s#%d: %w", table, rowNum, err)
	}
	return nil
}

// DeleteTable drops all fingerprints of a table, used when its binding is removed.
func (r *TrackedRepo) DeleteTable(ctx context.Context, table string) error {
	q := r.db.Rebind("DELETE FROM tracked_rows WHERE table_name = ?")
	if _, err := r.db.ExecContext(ctx, q, table); err != nil {
		return fmt.Errorf("delete tracked rows for %s: %w", table, err)
	}
	return nil
}

// Count returns the number of tracked rows for a table.
func (r *TrackedRepo) Count(ctx context.Context, table string) (int, error) {
	var n int
	q := r.db.Rebind("SELECT COUNT(*) FROM tracked_rows WHERE table_name = ?")
	if err := r.db.GetContext(ctx, &n, q, table); err != nil {
		return 0, fmt.Errorf("count tracked rows for %s: %w", table, err)
	}
	return n, nil
}
