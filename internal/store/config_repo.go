package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const configSchema = `
CREATE TABLE IF NOT EXISTS sync_configs (
	table_name TEXT PRIMARY KEY,
	spreadsheet_id TEXT NOT NULL,
	sheet_name TEXT NOT NULL,
	folder TEXT NOT NULL DEFAULT '',
	start_row INTEGER NOT NULL DEFAULT 1,
	has_header INTEGER NOT NULL DEFAULT 1,
	incremental INTEGER NOT NULL DEFAULT 0,
	last_sync_at TIMESTAMP,
	last_checksum TEXT NOT NULL DEFAULT '',
	skip_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

// ConfigRepo persists the table-to-sheet bindings.
type ConfigRepo struct {
	db *sqlx.DB
}

func NewConfigRepo(db *sqlx.DB) (*ConfigRepo, error) {
	if _, err := db.Exec(configSchema); err != nil {
		return nil, fmt.Errorf("init sync_configs schema: %w", err)
	}
	return &ConfigRepo{db: db}, nil
}

// GetByTable returns the config for a table, or nil when absent.
func (r *ConfigRepo) GetByTable(ctx context.Context, table string) (*SyncConfig, error) {
	var cfg SyncConfig
	q := r.db.Rebind("SELECT * FROM sync_configs WHERE table_name = ?")
	if err := r.db.GetContext(ctx, &cfg, q, table); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query sync config %s: %w", table, err)
	}
	return &cfg, nil
}

func (r *ConfigRepo) List(ctx context.Context) ([]*SyncConfig, error) {
	var configs []*SyncConfig
	if err := r.db.SelectContext(ctx, &configs, "SELECT * FROM sync_configs ORDER BY table_name"); err != nil {
		return nil, fmt.Errorf("list sync configs: %w", err)
	}
	return configs, nil
}

// Upsert creates or replaces the binding for cfg.TableName.
func (r *ConfigRepo) Upsert(ctx context.Context, cfg *SyncConfig) error {
	now := time.Now().UTC()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now
	if cfg.StartRow < 1 {
		cfg.StartRow = 1
	}

	q := r.db.Rebind(`
		INSERT INTO sync_configs
			(table_name, spreadsheet_id, sheet_name, folder, start_row, has_header, incremental,
			 last_sync_at, last_checksum, skip_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (table_name) DO UPDATE SET
			spreadsheet_id = excluded.spreadsheet_id,
			sheet_name = excluded.sheet_name,
			folder = excluded.folder,
			start_row = excluded.start_row,
			has_header = excluded.has_header,
			incremental = excluded.incremental,
			updated_at = excluded.updated_at`)
	_, err := r.db.ExecContext(ctx, q,
		cfg.TableName, cfg.SpreadsheetID, cfg.SheetName, cfg.Folder, cfg.StartRow,
		cfg.HasHeader, cfg.Incremental, cfg.LastSyncAt, cfg.LastChecksum, cfg.SkipCount,
		cfg.CreatedAt, cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert sync config %s: %w", cfg.TableName, err)
	}
	return nil
}

// MarkSynced records a successful write cycle: new checksum, skip counter reset.
func (r *ConfigRepo) MarkSynced(ctx context.Context, table, checksum string, at time.Time) error {
	q := r.db.Rebind(`
		UPDATE sync_configs
		SET last_sync_at = ?, last_checksum = ?, skip_count = 0, updated_at = ?
		WHERE table_name = ?`)
	_, err := r.db.ExecContext(ctx, q, at, checksum, at, table)
	if err != nil {
		return fmt.Errorf("mark synced %s: %w", table, err)
	}
	return nil
}

// MarkSkipped records a no-op cycle: checksum unchanged, skip counter bumped.
func (r *ConfigRepo) MarkSkipped(ctx context.Context, table string, at time.Time) error {
	q := r.db.Rebind(`
		UPDATE sync_configs
		SET last_sync_at = ?, skip_count = skip_count + 1, updated_at = ?
		WHERE table_name = ?`)
	_, err := r.db.ExecContext(ctx, q, at, at, table)
	if err != nil {
		return fmt.Errorf("mark skipped %s: %w", table, err)
	}
	return nil
}

func (r *ConfigRepo) Delete(ctx context.Context, table string) error {
	q := r.db.Rebind("DELETE FROM sync_configs WHERE table_name = ?")
	if _, err := r.db.ExecContext(ctx, q, table); err != nil {
		return fmt.Errorf("delete sync config %s: %w", table, err)
	}
	return nil
}
