package store

import "time"

// Run/job statuses shared by sync logs and cron jobs.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// SyncConfig binds one target table to one sheet of a spreadsheet.
type SyncConfig struct {
	TableName     string     `db:"table_name" json:"tableName"`
	SpreadsheetID string     `db:"spreadsheet_id" json:"spreadsheetId"`
	SheetName     string     `db:"sheet_name" json:"sheetName"`
	Folder        string     `db:"folder" json:"folder,omitempty"`
	StartRow      int64      `db:"start_row" json:"startRow"`
	HasHeader     bool       `db:"has_header" json:"hasHeader"`
	Incremental   bool       `db:"incremental" json:"incremental"`
	LastSyncAt    *time.Time `db:"last_sync_at" json:"lastSyncAt,omitempty"`
	LastChecksum  string     `db:"last_checksum" json:"lastChecksum,omitempty"`
	SkipCount     int        `db:"skip_count" json:"skipCount"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}

// TrackedRow is the per-row fingerprint backing incremental diffing.
// At most one entry exists per (table, sheet row number).
type TrackedRow struct {
	Dataset    string    `db:"dataset" json:"dataset"`
	TableName  string    `db:"table_name" json:"tableName"`
	RowNum     int64     `db:"row_num" json:"rowNum"`
	RowHash    string    `db:"row_hash" json:"rowHash"`
	LastSeenAt time.Time `db:"last_seen_at" json:"lastSeenAt"`
}

// SyncLog is one append-only entry per run attempt. Finalized entries are
// immutable; only the retention sweep ever deletes them.
type SyncLog struct {
	ID           string     `db:"id" json:"id"`
	TableName    string     `db:"table_name" json:"tableName"`
	Folder       string     `db:"folder" json:"folder,omitempty"`
	Status       string     `db:"status" json:"status"`
	StartedAt    time.Time  `db:"started_at" json:"startedAt"`
	CompletedAt  *time.Time `db:"completed_at" json:"completedAt,omitempty"`
	DurationMS   int64      `db:"duration_ms" json:"durationMs"`
	RowsInserted int        `db:"rows_inserted" json:"rowsInserted"`
	RowsUpdated  int        `db:"rows_updated" json:"rowsUpdated"`
	RowsDeleted  int        `db:"rows_deleted" json:"rowsDeleted"`
	RowsTotal    int        `db:"rows_total" json:"rowsTotal"`
	ErrorText    string     `db:"error_text" json:"errorText,omitempty"`
}

// CronJob is a scheduled sync definition owned by the orchestrator.
// Status is nil when the job is idle and has never run or was reclaimed.
type CronJob struct {
	ID        string     `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	Folder    string     `db:"folder" json:"folder,omitempty"`
	TableName string     `db:"table_name" json:"tableName"`
	Schedule  string     `db:"schedule" json:"schedule"`
	Enabled   bool       `db:"enabled" json:"enabled"`
	Status    *string    `db:"status" json:"status,omitempty"`
	LastRunAt *time.Time `db:"last_run_at" json:"lastRunAt,omitempty"`
	NextRunAt *time.Time `db:"next_run_at" json:"nextRunAt,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
}

// IsRunning reports whether the job is currently marked running.
func (j *CronJob) IsRunning() bool {
	return j.Status != nil && *j.Status == StatusRunning
}
