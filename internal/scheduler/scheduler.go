package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gridbase/sheetsync/internal/engine"
	"github.com/gridbase/sheetsync/internal/store"
)

var (
	ErrJobNotFound = errors.New("cron job not found")
	ErrJobRunning  = errors.New("cron job already running")
)

// SyncRunner executes one sync cycle. Satisfied by *engine.Engine.
type SyncRunner interface {
	Run(ctx context.Context, table string, mode engine.Mode) (*engine.Result, error)
}

const (
	// DefaultTick is the scheduler's evaluation cadence.
	DefaultTick = 30 * time.Second
	// DefaultStuckAfter is how long a job may sit in running before the
	// sweep reclaims it as orphaned.
	DefaultStuckAfter = 15 * time.Minute
	// retentionSweepEvery spaces out the sync-log retention pass.
	retentionSweepEvery = 1 * time.Hour
)

// Config tunes the scheduler loop.
type Config struct {
	Tick         time.Duration
	StuckAfter   time.Duration
	LogRetention time.Duration // 0 disables the retention sweep
}

func (c *Config) defaults() {
	if c.Tick <= 0 {
		c.Tick = DefaultTick
	}
	if c.StuckAfter <= 0 {
		c.StuckAfter = DefaultStuckAfter
	}
}

// Scheduler drives the cron jobs: it evaluates schedules on a fixed tick,
// claims due jobs atomically, runs them through the sync engine, and
// reclaims orphaned running entries.
type Scheduler struct {
	cfg    Config
	jobs   *store.JobRepo
	logs   *store.LogRepo
	runner SyncRunner

	wake chan struct{}
	wg   sync.WaitGroup
}

func New(cfg Config, jobs *store.JobRepo, logs *store.LogRepo, runner SyncRunner) *Scheduler {
	cfg.defaults()
	return &Scheduler{
		cfg:    cfg,
		jobs:   jobs,
		logs:   logs,
		runner: runner,
		wake:   make(chan struct{}, 1),
	}
}

// Start blocks, evaluating due jobs on every tick until ctx is cancelled.
// In-flight runs are waited for before it returns.
func (s *Scheduler) Start(ctx context.Context) error {
	slog.Info("scheduler started", "tick", s.cfg.Tick, "stuckAfter", s.cfg.StuckAfter)

	// reclaim anything orphaned by a previous crash before the first tick
	if n, err := s.jobs.ResetStuck(ctx, time.Now().UTC().Add(-s.cfg.StuckAfter)); err != nil {
		slog.Error("startup stuck sweep", "error", err)
	} else if n > 0 {
		slog.Warn("reclaimed stuck cron jobs", "count", n)
	}

	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	lastRetention := time.Now()
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			slog.Info("scheduler stopped")
			return nil
		case <-ticker.C:
		case <-s.wake:
		}

		s.tick(ctx)

		if s.cfg.LogRetention > 0 && time.Since(lastRetention) >= retentionSweepEvery {
			lastRetention = time.Now()
			s.sweepLogs(ctx)
		}
	}
}

// Reload nudges the loop to re-evaluate immediately, e.g. after a job
// definition changed.
func (s *Scheduler) Reload() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now().UTC()

	if _, err := s.jobs.ResetStuck(ctx, now.Add(-s.cfg.StuckAfter)); err != nil {
		slog.Error("stuck sweep", "error", err)
	}

	jobs, err := s.jobs.ListEnabled(ctx)
	if err != nil {
		slog.Error("list enabled cron jobs", "error", err)
		return
	}

	for _, job := range jobs {
		if job.IsRunning() {
			continue
		}
		sched, err := Parse(job.Schedule)
		if err != nil {
			slog.Error("unparseable job schedule", "job", job.Name, "schedule", job.Schedule, "error", err)
			continue
		}
		if !sched.Due(job.NextRunAt, now) {
			continue
		}

		claimed, err := s.jobs.TryClaim(ctx, job.ID)
		if err != nil {
			slog.Error("claim cron job", "job", job.Name, "error", err)
			continue
		}
		if !claimed {
			continue
		}

		s.wg.Add(1)
		go func(job *store.CronJob, sched *Schedule) {
			defer s.wg.Done()
			s.execute(ctx, job, sched)
		}(job, sched)
	}
}

// execute runs one claimed job to completion. A failing job never takes the
// loop down with it.
func (s *Scheduler) execute(ctx context.Context, job *store.CronJob, sched *Schedule) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("cron job panicked", "job", job.Name, "panic", r)
			next := sched.Next(time.Now().UTC())
			if err := s.jobs.Finish(ctx, job.ID, store.StatusFailed, &next); err != nil {
				slog.Error("finish panicked cron job", "job", job.Name, "error", err)
			}
		}
	}()

	slog.Info("cron job run", "job", job.Name, "table", job.TableName)

	status := store.StatusSuccess
	if _, err := s.runner.Run(ctx, job.TableName, engine.ModeAuto); err != nil {
		slog.Error("cron job failed", "job", job.Name, "table", job.TableName, "error", err)
		status = store.StatusFailed
	}

	next := sched.Next(time.Now().UTC())
	if err := s.jobs.Finish(ctx, job.ID, status, &next); err != nil {
		slog.Error("finish cron job", "job", job.Name, "error", err)
	}
}

// RunNow triggers a job synchronously, outside its schedule. It loses the
// claim race to a concurrent scheduled run and reports ErrJobRunning.
func (s *Scheduler) RunNow(ctx context.Context, name string) (*engine.Result, error) {
	job, err := s.jobs.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	claimed, err := s.jobs.TryClaim(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, fmt.Errorf("%w: %s", ErrJobRunning, name)
	}

	res, runErr := s.runner.Run(ctx, job.TableName, engine.ModeAuto)

	status := store.StatusSuccess
	if runErr != nil {
		status = store.StatusFailed
	}
	var next *time.Time
	if sched, perr := Parse(job.Schedule); perr == nil {
		n := sched.Next(time.Now().UTC())
		next = &n
	}
	if err := s.jobs.Finish(ctx, job.ID, status, next); err != nil {
		slog.Error("finish cron job", "job", job.Name, "error", err)
	}
	if runErr != nil {
		return nil, runErr
	}
	return res, nil
}

// Stop force-fails a running job: the in-flight run keeps executing, but the
// job record no longer blocks future claims and its next fire time is cleared.
func (s *Scheduler) Stop(ctx context.Context, name string) error {
	job, err := s.jobs.GetByName(ctx, name)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if !job.IsRunning() {
		return nil
	}
	return s.jobs.ForceFail(ctx, job.ID)
}

// Disable turns a job off. A running job is force-failed at the same time so
// the stale running marker cannot survive the disable.
func (s *Scheduler) Disable(ctx context.Context, name string) error {
	job, err := s.jobs.GetByName(ctx, name)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if err := s.jobs.SetEnabled(ctx, job.ID, false); err != nil {
		return err
	}
	if job.IsRunning() {
		if err := s.jobs.ForceFail(ctx, job.ID); err != nil {
			return err
		}
	}
	return nil
}

// Enable turns a job back on and recomputes its next fire time from now.
func (s *Scheduler) Enable(ctx context.Context, name string) error {
	job, err := s.jobs.GetByName(ctx, name)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if err := s.jobs.SetEnabled(ctx, job.ID, true); err != nil {
		return err
	}
	s.Reload()
	return nil
}

// ClearStuck reclaims running jobs older than the stuck threshold on demand.
func (s *Scheduler) ClearStuck(ctx context.Context) (int64, error) {
	return s.jobs.ResetStuck(ctx, time.Now().UTC().Add(-s.cfg.StuckAfter))
}

func (s *Scheduler) sweepLogs(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.cfg.LogRetention)
	n, err := s.logs.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("sync log retention sweep", "error", err)
		return
	}
	if n > 0 {
		slog.Info("pruned old sync logs", "count", n, "cutoff", cutoff)
	}
}
