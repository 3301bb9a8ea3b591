package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"example.com/healthanalysis/internal/api"
	"example.com/healthanalysis/internal/auth"
	"example.com/healthanalysis/internal/cache"
	"example.com/healthanalysis/internal/catalog"
	"example.com/healthanalysis/internal/config"
	"example.com/healthanalysis/internal/domain"
	"example.com/healthanalysis/internal/logger"
	"example.com/healthanalysis/internal/outbox"
	"example.com/healthanalysis/internal/persistence/memory"
	"example.com/healthanalysis/internal/persistence/postgres"
	httptransport "example.com/healthanalysis/internal/transport/http"
)

func main() {
	cfg := config.Load()

	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Fatal("health analysis api exited", "error", err)
	}
}

func run(ctx context.Context, cfg config.Config, lg *logger.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	var store domain.Store
	if cfg.UsesPostgres() {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()
		store = postgres.NewStore(pool)

		if cfg.OutboxEnabled {
			producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
			defer func() {
				if err := producer.Close(); err != nil {
					lg.Warn("kafka producer close failed", "error", err)
				}
			}()
			registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
			dispatcher := outbox.NewDispatcher(pool, producer, registry, lg.With("component", "outbox"), cfg.OutboxPollInterval, cfg.OutboxBatchSize)
			g.Go(func() error { return dispatcher.Run(ctx) })
		}
	} else {
		mem, err := memory.NewSeededStore(catalog.Default())
		if err != nil {
			return fmt.Errorf("seed memory store: %w", err)
		}
		store = mem
		lg.Warn("using in-memory storage; data is lost on restart")
	}

	opts := []domain.Option{domain.WithLogger(lg.With("component", "service"))}
	if cfg.RedisAddr != "" {
		analyticsCache, err := cache.NewRedisAnalyticsCache(ctx, cfg.RedisAddr, cfg.AnalyticsCacheTTL, lg)
		if err != nil {
			lg.Warn("analytics cache disabled", "error", err)
		} else {
			defer analyticsCache.Close()
			opts = append(opts, domain.WithAnalyticsCache(analyticsCache))
		}
	}
	service := domain.NewService(store, opts...)

	mux := http.NewServeMux()
	api.NewHandler(service, lg.With("component", "api")).RegisterRoutes(mux)
	if cfg.MetricsAddress == "" {
		mux.Handle("/metrics", promhttp.Handler())
	} else {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsCfg := httptransport.DefaultServerConfig(cfg.MetricsAddress)
		metricsSrv := httptransport.NewServer(metricsCfg, metricsMux)
		g.Go(func() error {
			return httptransport.Serve(ctx, metricsSrv, metricsCfg.ShutdownTimeout, lg)
		})
	}

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	handler := httptransport.Chain(mux,
		httptransport.Recover(lg),
		httptransport.RequestLogger(lg),
		httptransport.CORS(cfg.CORSOrigin),
		authMiddleware.Wrap,
	)

	serverCfg := httptransport.DefaultServerConfig(cfg.HTTPAddress)
	server := httptransport.NewServer(serverCfg, handler)
	g.Go(func() error {
		return httptransport.Serve(ctx, server, serverCfg.ShutdownTimeout, lg)
	})

	return g.Wait()
}
