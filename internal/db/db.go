package db

import (
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/gridbase/sheetsync/internal/utils"
)

// SQLite pragmas for optimal performance
const defaultPragma = `
PRAGMA journal_mode=WAL;
PRAGMA busy_timeout=5000;
PRAGMA foreign_keys=ON;
PRAGMA temp_store=MEMORY;
PRAGMA cache_size=8000;
`

// config holds internal configuration for DB creation
type config struct {
	path            string
	pragmas         string
	maxOpenConns    int
	maxIdleConns    int
	connMaxLifetime time.Duration
}

// Option defines a function that configures the DB
type Option func(*config)

// WithPath sets the path for the SQLite database.
// Use ":memory:" for an in-memory database.
func WithPath(path string) Option {
	return func(c *config) {
		c.path = path
	}
}

// WithPragmas replaces the default SQLite pragmas.
func WithPragmas(pragmas string) Option {
	return func(c *config) {
		c.pragmas = pragmas
	}
}

// WithMaxOpenConns sets the maximum number of open connections
func WithMaxOpenConns(n int) Option {
	return func(c *config) {
		c.maxOpenConns = n
	}
}

// WithMaxIdleConns sets the maximum number of idle connections
func WithMaxIdleConns(n int) Option {
	return func(c *config) {
		c.maxIdleConns = n
	}
}

// WithConnMaxLifetime sets the maximum lifetime of a connection
func WithConnMaxLifetime(d time.Duration) Option {
	return func(c *config) {
		c.connMaxLifetime = d
	}
}

// NewSqliteDB creates a new sqlx.DB backed by SQLite with the provided options.
func NewSqliteDB(opts ...Option) (*sqlx.DB, error) {
	cfg := &config{
		path:         ":memory:",
		pragmas:      defaultPragma,
		maxOpenConns: 0, // unlimited
		maxIdleConns: 2,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	// Ensure parent directory exists for file-based DBs
	var dsn string
	if cfg.path != ":memory:" {
		if err := utils.EnsureParent(cfg.path); err != nil {
			return nil, fmt.Errorf("ensure parent directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_txlock=immediate&mode=rwc", cfg.path)
	} else {
		dsn = ":memory:"
	}

	slog.Info("db", "driver", "sqlite3", "path", cfg.path)
	database, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	applyPool(database, cfg)

	if _, err := database.Exec(cfg.pragmas); err != nil {
		database.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	return database, nil
}

// NewPostgresDB creates a new sqlx.DB backed by Postgres via the pgx stdlib driver.
func NewPostgresDB(dsn string, opts ...Option) (*sqlx.DB, error) {
	cfg := &config{
		maxOpenConns: 8,
		maxIdleConns: 2,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	slog.Info("db", "driver", "pgx")
	database, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	applyPool(database, cfg)
	return database, nil
}

// Open dispatches on the configured driver name.
func Open(driver, dsn string, opts ...Option) (*sqlx.DB, error) {
	switch driver {
	case "sqlite3", "sqlite":
		return NewSqliteDB(append([]Option{WithPath(dsn)}, opts...)...)
	case "pgx", "postgres", "postgresql":
		return NewPostgresDB(dsn, opts...)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func applyPool(database *sqlx.DB, cfg *config) {
	if cfg.maxOpenConns > 0 {
		database.SetMaxOpenConns(cfg.maxOpenConns)
	}
	if cfg.maxIdleConns > 0 {
		database.SetMaxIdleConns(cfg.maxIdleConns)
	}
	if cfg.connMaxLifetime > 0 {
		database.SetConnMaxLifetime(cfg.connMaxLifetime)
	}
}
