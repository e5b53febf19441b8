package server

import "time"

const DefaultAddr = "localhost:8080"

type Config struct {
	DB        DBConfig        `mapstructure:"db"`
	Sheets    SheetsConfig    `mapstructure:"sheets"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type DBConfig struct {
	// Driver is "sqlite3" or "pgx".
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type SheetsConfig struct {
	// CredentialsFile points at a service-account key. Empty means
	// application default credentials.
	CredentialsFile string `mapstructure:"credentials_file"`
}

type HTTPConfig struct {
	Addr     string `mapstructure:"addr"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
	// ServiceToken guards the control API. Empty disables auth.
	ServiceToken string `mapstructure:"service_token"`
}

type SchedulerConfig struct {
	Tick         time.Duration `mapstructure:"tick"`
	StuckAfter   time.Duration `mapstructure:"stuck_after"`
	LogRetention time.Duration `mapstructure:"log_retention"`
}
