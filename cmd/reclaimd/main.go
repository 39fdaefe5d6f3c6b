// Package main provides reclaimd, the token-account dashboard and batch
// closure service:
//   - serve: HTTP API over dashboard sessions and closure workflows
//   - migrate: apply PostgreSQL and ClickHouse schema migrations
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solana-rent-reclaim/internal/config"
	"solana-rent-reclaim/internal/logging"
)

var (
	cfgFile string
	envFile string

	// v collects defaults, the config file, RECLAIM_* variables and bound flags.
	v = config.New()

	rootCmd = &cobra.Command{
		Use:           "reclaimd",
		Short:         "Token account dashboard and rent reclaim service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("postgres-dsn", "", "PostgreSQL connection string for closure receipts")
	rootCmd.PersistentFlags().String("clickhouse-dsn", "", "ClickHouse connection string for reclaim events")

	v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	v.BindPFlag("storage.postgres_dsn", rootCmd.PersistentFlags().Lookup("postgres-dsn"))
	v.BindPFlag("storage.clickhouse_dsn", rootCmd.PersistentFlags().Lookup("clickhouse-dsn"))

	rootCmd.AddCommand(serveCmd, migrateCmd)
}

// loadConfig reads the env file and config file and builds the logger.
func loadConfig(validate bool) (*config.Config, *zap.Logger, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, nil, err
	}
	load := config.Read
	if validate {
		load = config.Load
	}
	cfg, err := load(v, cfgFile)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(logging.Config{
		Level:       cfg.Log.Level,
		Environment: cfg.Log.Environment,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}
