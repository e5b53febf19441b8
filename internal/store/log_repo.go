package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const logSchema = `
CREATE TABLE IF NOT EXISTS sync_logs (
	id TEXT PRIMARY KEY,
	table_name TEXT NOT NULL,
	folder TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL,
	completed_at TIMESTAMP,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	rows_inserted INTEGER NOT NULL DEFAULT 0,
	rows_updated INTEGER NOT NULL DEFAULT 0,
	rows_deleted INTEGER NOT NULL DEFAULT 0,
	rows_total INTEGER NOT NULL DEFAULT 0,
	error_text TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_sync_logs_table ON sync_logs(table_name);
CREATE INDEX IF NOT EXISTS idx_sync_logs_started ON sync_logs(started_at);
`

// RunCounts carries the per-run row counters into a finalized log entry.
type RunCounts struct {
	Inserted int
	Updated  int
	Deleted  int
	Total    int
}

// LogRepo is the append-only record of run attempts.
type LogRepo struct {
	db *sqlx.DB
}

func NewLogRepo(db *sqlx.DB) (*LogRepo, error) {
	if _, err := db.Exec(logSchema); err != nil {
		return nil, fmt.Errorf("init sync_logs schema: %w", err)
	}
	return &LogRepo{db: db}, nil
}

// Start opens the single running entry for a run and returns its id.
func (r *LogRepo) Start(ctx context.Context, table, folder string) (string, error) {
	id := uuid.NewString()
	q := r.db.Rebind(`
		INSERT INTO sync_logs (id, table_name, folder, status, started_at)
		VALUES (?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q, id, table, folder, StatusRunning, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("open sync log for %s: %w", table, err)
	}
	return id, nil
}

// Finalize moves a running entry to a terminal status. The entry is
// immutable afterwards; the guard on status makes a double finalize a no-op.
func (r *LogRepo) Finalize(ctx context.Context, id, status string, counts RunCounts, errText string, elapsed time.Duration) error {
	now := time.Now().UTC()
	q := r.db.Rebind(`
		UPDATE sync_logs
		SET status = ?, completed_at = ?, duration_ms = ?,
		    rows_inserted = ?, rows_updated = ?, rows_deleted = ?, rows_total = ?, error_text = ?
		WHERE id = ? AND status = ?`)
	_, err := r.db.ExecContext(ctx, q,
		status, now, elapsed.Milliseconds(),
		counts.Inserted, counts.Updated, counts.Deleted, counts.Total, errText,
		id, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("finalize sync log %s: %w", id, err)
	}
	return nil
}

// Recent returns entries most-recent-first, optionally filtered by table.
func (r *LogRepo) Recent(ctx context.Context, table string, limit int) ([]*SyncLog, error) {
	if limit <= 0 {
		limit = 50
	}

	var logs []*SyncLog
	var err error
	if table != "" {
		q := r.db.Rebind("SELECT * FROM sync_logs WHERE table_name = ? ORDER BY started_at DESC LIMIT ?")
		err = r.db.SelectContext(ctx, &logs, q, table, limit)
	} else {
		q := r.db.Rebind("SELECT * FROM sync_logs ORDER BY started_at DESC LIMIT ?")
		err = r.db.SelectContext(ctx, &logs, q, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list sync logs: %w", err)
	}
	return logs, nil
}

// Get returns a single entry by id, or nil when absent.
func (r *LogRepo) Get(ctx context.Context, id string) (*SyncLog, error) {
	var logs []*SyncLog
	q := r.db.Rebind("SELECT * FROM sync_logs WHERE id = ?")
	if err := r.db.SelectContext(ctx, &logs, q, id); err != nil {
		return nil, fmt.Errorf("get sync log %s: %w", id, err)
	}
	if len(logs) == 0 {
		return nil, nil
	}
	return logs[0], nil
}

// DeleteOlderThan is the retention sweep. It only touches finalized entries.
func (r *LogRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	q := r.db.Rebind("DELETE FROM sync_logs WHERE started_at < ? AND status != ?")
	res, err := r.db.ExecContext(ctx, q, cutoff, StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("sync log retention sweep: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
