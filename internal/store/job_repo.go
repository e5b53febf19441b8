package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const jobSchema = `
CREATE TABLE IF NOT EXISTS cron_jobs (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	folder TEXT NOT NULL DEFAULT '',
	table_name TEXT NOT NULL,
	schedule TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	status TEXT,
	last_run_at TIMESTAMP,
	next_run_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cron_jobs_enabled ON cron_jobs(enabled);
CREATE INDEX IF NOT EXISTS idx_cron_jobs_status ON cron_jobs(status);
`

// JobRepo persists the scheduled sync definitions.
type JobRepo struct {
	db *sqlx.DB
}

func NewJobRepo(db *sqlx.DB) (*JobRepo, error) {
	if _, err := db.Exec(jobSchema); err != nil {
		return nil, fmt.Errorf("init cron_jobs schema: %w", err)
	}
	return &JobRepo{db: db}, nil
}

func (r *JobRepo) Create(ctx context.Context, job *CronJob) error {
	now := time.Now().UTC()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.CreatedAt = now
	job.UpdatedAt = now

	q := r.db.Rebind(`
		INSERT INTO cron_jobs (id, name, folder, table_name, schedule, enabled, status,
			last_run_at, next_run_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q,
		job.ID, job.Name, job.Folder, job.TableName, job.Schedule, job.Enabled, job.Status,
		job.LastRunAt, job.NextRunAt, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create cron job %s: %w", job.Name, err)
	}
	return nil
}

func (r *JobRepo) GetByName(ctx context.Context, name string) (*CronJob, error) {
	var job CronJob
	q := r.db.Rebind("SELECT * FROM cron_jobs WHERE name = ?")
	if err := r.db.GetContext(ctx, &job, q, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query cron job %s: %w", name, err)
	}
	return &job, nil
}

func (r *JobRepo) List(ctx context.Context) ([]*CronJob, error) {
	var jobs []*CronJob
	if err := r.db.SelectContext(ctx, &jobs, "SELECT * FROM cron_jobs ORDER BY name"); err != nil {
		return nil, fmt.Errorf("list cron jobs: %w", err)
	}
	return jobs, nil
}

func (r *JobRepo) ListEnabled(ctx context.Context) ([]*CronJob, error) {
	var jobs []*CronJob
	q := r.db.Rebind("SELECT * FROM cron_jobs WHERE enabled = ? ORDER BY name")
	if err := r.db.SelectContext(ctx, &jobs, q, true); err != nil {
		return nil, fmt.Errorf("list enabled cron jobs: %w", err)
	}
	return jobs, nil
}

// TryClaim atomically transitions a job to running. Exactly one caller wins
// when a scheduled tick races a manual trigger; the affected-row count tells
// them apart.
func (r *JobRepo) TryClaim(ctx context.Context, id string) (bool, error) {
	now := time.Now().UTC()
	q := r.db.Rebind(`
		UPDATE cron_jobs
		SET status = ?, last_run_at = ?, updated_at = ?
		WHERE id = ? AND (status IS NULL OR status != ?)`)
	res, err := r.db.ExecContext(ctx, q, StatusRunning, now, now, id, StatusRunning)
	if err != nil {
		return false, fmt.Errorf("claim cron job %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim cron job %s: %w", id, err)
	}
	return n == 1, nil
}

// Finish records the terminal status of a run and the next fire time.
func (r *JobRepo) Finish(ctx context.Context, id, status string, nextRun *time.Time) error {
	q := r.db.Rebind(`
		UPDATE cron_jobs
		SET status = ?, next_run_at = ?, updated_at = ?
		WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, q, status, nextRun, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("finish cron job %s: %w", id, err)
	}
	return nil
}

// SetEnabled flips the enabled flag without touching run state.
func (r *JobRepo) SetEnabled(ctx context.Context, id string, enabled bool) error {
	q := r.db.Rebind("UPDATE cron_jobs SET enabled = ?, updated_at = ? WHERE id = ?")
	if _, err := r.db.ExecContext(ctx, q, enabled, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("set cron job %s enabled=%v: %w", id, enabled, err)
	}
	return nil
}

// ForceFail moves a running job straight to failed and clears its next fire
// time, so a stale in-flight run cannot block future schedules.
func (r *JobRepo) ForceFail(ctx context.Context, id string) error {
	q := r.db.Rebind(`
		UPDATE cron_jobs
		SET status = ?, next_run_at = NULL, updated_at = ?
		WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, q, StatusFailed, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("force fail cron job %s: %w", id, err)
	}
	return nil
}

// ResetStuck reclaims jobs left running past the threshold, typically after
// a crash. Their status goes back to idle so the scheduler picks them up again.
func (r *JobRepo) ResetStuck(ctx context.Context, olderThan time.Time) (int64, error) {
	q := r.db.Rebind(`
		UPDATE cron_jobs
		SET status = NULL, updated_at = ?
		WHERE status = ? AND COALESCE(updated_at, created_at) < ?`)
	res, err := r.db.ExecContext(ctx, q, time.Now().UTC(), StatusRunning, olderThan)
	if err != nil {
		return 0, fmt.Errorf("reset stuck cron jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset stuck cron jobs: %w", err)
	}
	return n, nil
}

func (r *JobRepo) Delete(ctx context.Context, id string) error {
	q := r.db.Rebind("DELETE FROM cron_jobs WHERE id = ?")
	if _, err := r.db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("delete cron job %s: %w", id, err)
	}
	return nil
}
