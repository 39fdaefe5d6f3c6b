package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solana-rent-reclaim/internal/storage/migrations"
	pgstore "solana-rent-reclaim/internal/storage/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply PostgreSQL and ClickHouse schema migrations",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Storage.PostgresDSN == "" && cfg.Storage.ClickhouseDSN == "" {
		return errors.New("nothing to migrate: set storage.postgres_dsn and/or storage.clickhouse_dsn")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		pool, err := pgstore.NewPool(ctx, dsn, cfg.Storage.PostgresMaxConns)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		err = migrations.RunPostgresMigrations(ctx, pool, logger.Named("migrate"))
		pool.Close()
		if err != nil {
			return err
		}
	}

	if dsn := cfg.Storage.ClickhouseDSN; dsn != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, dsn, logger.Named("migrate"))
		if err != nil {
			return err
		}
		conn.Close()
	}

	logger.Info("migrations applied",
		zap.Bool("postgres", cfg.Storage.PostgresDSN != ""),
		zap.Bool("clickhouse", cfg.Storage.ClickhouseDSN != ""),
	)
	return nil
}
