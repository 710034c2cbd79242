package main

import (
	"fmt"
	"os"

	"github.com/SergeiKhy/scanme-analytics/internal/config"
	"github.com/SergeiKhy/scanme-analytics/internal/logger"
	"github.com/SergeiKhy/scanme-analytics/internal/repository"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "scanctl",
	Short: "Operate the scan analytics database from the command line",
	Long: `scanctl applies the schema and prints scan analytics for a QR code
straight from PostgreSQL, using the same configuration as the API server.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".env", "path to the .env configuration file")

	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newBreakdownCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env is everything a subcommand needs; close releases the pool.
type env struct {
	cfg    *config.Config
	db     *repository.PostgresDB
	logger *zap.Logger
}

func (e *env) close() {
	e.db.Close()
	_ = e.logger.Sync()
}

func setup() (*env, error) {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Level, "console", "scanctl")
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	db, err := repository.NewPostgresDB(cfg.DB)
	if err != nil {
		return nil, err
	}

	return &env{cfg: cfg, db: db, logger: log}, nil
}
