package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"example.com/healthanalysis/internal/outbox"
	httptransport "example.com/healthanalysis/internal/transport/http"
)

const defaultDLQBatchSize = 50

var (
	dlqWatch     bool
	dlqBatchSize int
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect and retry dead-lettered outbox events",
}

var dlqRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-queue dead-letter entries whose retry time has passed",
	Long: `Retry moves due dead-letter entries back into the outbox so the dispatcher
publishes them again. Entries that exhausted DLQ_MAX_RETRIES are quarantined.
With --watch the command keeps running on DLQ_POLL_INTERVAL and exposes
Prometheus metrics on METRICS_ADDRESS when set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if dlqBatchSize <= 0 {
			return errors.New("--batch-size must be positive")
		}
		return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
			manager := outbox.NewDLQManager(pool, lg.With("component", "dlq"), cfg.DLQMaxRetries, cfg.DLQBaseDelay)
			if !dlqWatch {
				requeued, err := manager.RunOnce(ctx, dlqBatchSize)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "requeued %d entries\n", requeued)
				return nil
			}

			lg.Info("dlq manager started", "interval", cfg.DLQPollInterval, "max_retries", cfg.DLQMaxRetries)
			g, ctx := errgroup.WithContext(ctx)
			if cfg.MetricsAddress != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.Handler())
				metricsCfg := httptransport.DefaultServerConfig(cfg.MetricsAddress)
				srv := httptransport.NewServer(metricsCfg, mux)
				g.Go(func() error { return httptransport.Serve(ctx, srv, metricsCfg.ShutdownTimeout, lg) })
			}
			g.Go(func() error { return manager.Watch(ctx, cfg.DLQPollInterval, dlqBatchSize) })
			return g.Wait()
		})
	},
}

func init() {
	dlqRetryCmd.Flags().BoolVar(&dlqWatch, "watch", false, "keep retrying on DLQ_POLL_INTERVAL until interrupted")
	dlqRetryCmd.Flags().IntVar(&dlqBatchSize, "batch-size", defaultDLQBatchSize, "maximum entries handled per pass")
	dlqCmd.AddCommand(dlqRetryCmd)
	rootCmd.AddCommand(dlqCmd)
}
