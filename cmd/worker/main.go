package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lojinha-dev/storefront-api/internal/config"
	"github.com/lojinha-dev/storefront-api/internal/events"
	"github.com/lojinha-dev/storefront-api/internal/inventory"
	"github.com/lojinha-dev/storefront-api/internal/lock"
	"github.com/lojinha-dev/storefront-api/internal/notify"
	"github.com/lojinha-dev/storefront-api/internal/obs"
	"github.com/lojinha-dev/storefront-api/internal/queue"
	"github.com/lojinha-dev/storefront-api/internal/resilience"
	"github.com/lojinha-dev/storefront-api/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(envOrDefault("LOG_FORMAT", "json"), envOrDefault("LOG_LEVEL", "info")).
		With().Str("component", "worker").Logger()

	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	st := store.NewStore(pool)
	bus := &events.Bus{Store: st}

	taskQueue := queue.Enqueuer{
		R:           redisClient,
		Prefix:      cfg.QueueRedisPrefix,
		DedupTTL:    cfg.IdempotencyTTL,
		MaxAttempts: cfg.QueueMaxAttempts,
	}
	dispatcher := &notify.Dispatcher{
		Q:     st,
		Queue: taskQueue,
		Client: &resilience.HTTPClient{
			Client: &http.Client{
				Timeout:   cfg.WebhookTimeout,
				Transport: otelhttp.NewTransport(http.DefaultTransport),
			},
			Breaker:     resilience.NewBreaker(cfg.CircuitMinRequests, cfg.CircuitFailureRate, cfg.CircuitOpenFor),
			BaseBackoff: time.Second,
			MaxAttempts: 1,
			Jitter:      0.2,
			Timeout:     cfg.WebhookTimeout,
		},
		MaxAttempts: cfg.WebhookMaxAttempts,
		Enabled:     cfg.WebhooksEnabled,
		Locker:      lock.Locker{R: redisClient},
		LockTTL:     cfg.QueueSoftDeadline,
		Logger:      logger,
	}
	if cfg.WebhooksEnabled {
		bus.Notifiers = append(bus.Notifiers, dispatcher)
	}

	invSvc := &inventory.Service{
		Q:                 st,
		Tx:                inventoryTxRunner{st},
		Lock:              lock.Locker{R: redisClient},
		Events:            bus,
		Logger:            logger,
		LowStockThreshold: cfg.LowStockThreshold,
	}

	deliveryWorker := queue.Worker{
		R:                 redisClient,
		Prefix:            cfg.QueueRedisPrefix,
		Kind:              notify.TaskKind,
		Concurrency:       cfg.QueueConcurrency,
		VisibilityTimeout: cfg.QueueVisibilityTimeout,
		SoftDeadline:      cfg.QueueSoftDeadline,
		RetryBase:         time.Second,
		RetryJitter:       0.2,
		Store:             queue.NewStore(pool),
		Logger:            &logger,
		Handler:           dispatcher.HandleTask,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		runAuditLoop(ctx, invSvc, cfg.AuditInterval, logger)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runLowStockLoop(ctx, invSvc, cfg.LowStockInterval, logger)
	}()

	logger.Info().Msg("worker starting")
	if err := deliveryWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker stopped with error")
	}
	wg.Wait()
	logger.Info().Msg("worker shutdown complete")
}

// runAuditLoop periodically reconciles stock counters against the movement
// ledger and reports mismatches.
func runAuditLoop(ctx context.Context, svc *inventory.Service, interval time.Duration, logger zerolog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := svc.Audit(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("inventory audit failed")
				continue
			}
			logger.Info().
				Int("stores", report.StoresChecked).
				Int("mismatches", len(report.Mismatches)).
				Msg("inventory audit complete")
		}
	}
}

func runLowStockLoop(ctx context.Context, svc *inventory.Service, interval time.Duration, logger zerolog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := svc.CheckLowStock(ctx); err != nil {
				logger.Error().Err(err).Msg("low stock scan failed")
			}
		}
	}
}

type inventoryTxRunner struct{ s *store.Store }

func (r inventoryTxRunner) InTx(ctx context.Context, fn func(inventory.Store) error) error {
	return r.s.InTx(ctx, func(q *store.Queries) error { return fn(q) })
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "storefront-worker"
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
