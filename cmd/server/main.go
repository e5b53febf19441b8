package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gridbase/sheetsync/internal/server"
	"github.com/gridbase/sheetsync/internal/utils"
	"github.com/gridbase/sheetsync/internal/version"
)

var rootCmd = &cobra.Command{
	Use:     "sheetsync",
	Short:   "SheetSync Server CLI",
	Version: version.Detailed(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		cmd.SilenceUsage = true

		if cfg.Sheets.CredentialsFile != "" {
			resolved, err := utils.ResolvePath(cfg.Sheets.CredentialsFile)
			if err != nil {
				return err
			}
			if !utils.FileExists(resolved) {
				return fmt.Errorf("credentials file not found: %s", resolved)
			}
			cfg.Sheets.CredentialsFile = resolved
		}

		svc, err := server.NewServices(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		s, err := server.New(cfg, svc)
		if err != nil {
			return err
		}

		defer slog.Info("Bye!")
		return s.Start(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("bind", "b", server.DefaultAddr, "Address to bind the server")
	rootCmd.Flags().String("db-driver", "sqlite3", "Database driver (sqlite3 or pgx)")
	rootCmd.Flags().String("db-dsn", "data/sheetsync.db", "Database DSN or file path")
	rootCmd.Flags().String("credentials", "", "Path to a Google service-account key file")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a config file")
}

func main() {
	// optional .env for local development
	godotenv.Load()

	handler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*server.Config, error) {
	if cmd.Flag("config").Changed {
		viper.SetConfigFile(cmd.Flag("config").Value.String())
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/sheetsync")
		viper.SetConfigName("sheetsync")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		var notFound viper.ConfigFileNotFoundError
		if !enoent && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("http.addr", cmd.Flags().Lookup("bind"))
	viper.BindPFlag("db.driver", cmd.Flags().Lookup("db-driver"))
	viper.BindPFlag("db.dsn", cmd.Flags().Lookup("db-dsn"))
	viper.BindPFlag("sheets.credentials_file", cmd.Flags().Lookup("credentials"))

	// defaults register the keys so env overrides survive Unmarshal
	viper.SetDefault("http.cert_file", "")
	viper.SetDefault("http.key_file", "")
	viper.SetDefault("http.service_token", "")
	viper.SetDefault("scheduler.tick", "30s")
	viper.SetDefault("scheduler.stuck_after", "15m")
	viper.SetDefault("scheduler.log_retention", "720h")

	viper.SetEnvPrefix("SHEETSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg server.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal: %w", err)
	}
	return &cfg, nil
}
