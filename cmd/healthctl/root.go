package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"example.com/healthanalysis/internal/config"
	"example.com/healthanalysis/internal/logger"
)

var (
	cfg          config.Config
	lg           *logger.Logger
	postgresFlag string
)

var rootCmd = &cobra.Command{
	Use:   "healthctl",
	Short: "Operational tooling for the health analysis service",
	Long: `healthctl runs maintenance tasks against the health analysis database.

  healthctl migrate            # apply pending schema migrations
  healthctl seed               # upsert the built-in condition and exercise catalog
  healthctl dlq retry          # re-queue due dead-letter entries once
  healthctl dlq retry --watch  # keep re-queueing on DLQ_POLL_INTERVAL

Configuration is read from the environment (and .env) like the API process.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if postgresFlag != "" {
			cfg.PostgresURL = postgresFlag
		}
		var err error
		lg, err = logger.New(cfg.LogMode)
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if lg != nil {
			lg.Sync()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&postgresFlag, "postgres-url", "", "override POSTGRES_URL")
}

// withPool runs fn with a connected pool and a context cancelled on SIGINT or SIGTERM.
func withPool(fn func(ctx context.Context, pool *pgxpool.Pool) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return fn(ctx, pool)
}
