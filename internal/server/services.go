package server

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/gridbase/sheetsync/internal/db"
	"github.com/gridbase/sheetsync/internal/dialect"
	"github.com/gridbase/sheetsync/internal/engine"
	"github.com/gridbase/sheetsync/internal/scheduler"
	"github.com/gridbase/sheetsync/internal/sheets"
	"github.com/gridbase/sheetsync/internal/store"
)

type Services struct {
	DB        *sqlx.DB
	Configs   *store.ConfigRepo
	Logs      *store.LogRepo
	Tracked   *store.TrackedRepo
	Jobs      *store.JobRepo
	Engine    *engine.Engine
	Scheduler *scheduler.Scheduler
}

func NewServices(ctx context.Context, config *Config) (*Services, error) {
	database, err := db.Open(config.DB.Driver, config.DB.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	d, err := dialect.ForDriver(config.DB.Driver)
	if err != nil {
		database.Close()
		return nil, err
	}

	reader, err := sheets.NewReader(ctx, config.Sheets.CredentialsFile)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("create sheets reader: %w", err)
	}

	return newServices(config, database, d, reader)
}

// newServices wires the repos, engine and scheduler over an open database.
// Split out so tests can inject an in-memory database and a fake reader.
func newServices(config *Config, database *sqlx.DB, d dialect.Dialect, reader sheets.RangeReader) (*Services, error) {
	configs, err := store.NewConfigRepo(database)
	if err != nil {
		database.Close()
		return nil, err
	}
	logs, err := store.NewLogRepo(database)
	if err != nil {
		database.Close()
		return nil, err
	}
	tracked, err := store.NewTrackedRepo(database)
	if err != nil {
		database.Close()
		return nil, err
	}
	jobs, err := store.NewJobRepo(database)
	if err != nil {
		database.Close()
		return nil, err
	}

	eng := engine.New(database, d, reader, configs, logs, tracked)

	sched := scheduler.New(scheduler.Config{
		Tick:         config.Scheduler.Tick,
		StuckAfter:   config.Scheduler.StuckAfter,
		LogRetention: config.Scheduler.LogRetention,
	}, jobs, logs, eng)

	return &Services{
		DB:        database,
		Configs:   configs,
		Logs:      logs,
		Tracked:   tracked,
		Jobs:      jobs,
		Engine:    eng,
		Scheduler: sched,
	}, nil
}

func (s *Services) Shutdown(ctx context.Context) error {
	if err := s.DB.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
