package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lojinha-dev/storefront-api/internal/cart"
	"github.com/lojinha-dev/storefront-api/internal/catalog"
	"github.com/lojinha-dev/storefront-api/internal/common"
	"github.com/lojinha-dev/storefront-api/internal/config"
	"github.com/lojinha-dev/storefront-api/internal/coupon"
	"github.com/lojinha-dev/storefront-api/internal/events"
	"github.com/lojinha-dev/storefront-api/internal/health"
	"github.com/lojinha-dev/storefront-api/internal/inventory"
	"github.com/lojinha-dev/storefront-api/internal/lock"
	"github.com/lojinha-dev/storefront-api/internal/notify"
	"github.com/lojinha-dev/storefront-api/internal/obs"
	"github.com/lojinha-dev/storefront-api/internal/order"
	"github.com/lojinha-dev/storefront-api/internal/payment"
	"github.com/lojinha-dev/storefront-api/internal/queue"
	"github.com/lojinha-dev/storefront-api/internal/ratelimit"
	"github.com/lojinha-dev/storefront-api/internal/security"
	"github.com/lojinha-dev/storefront-api/internal/shipping"
	"github.com/lojinha-dev/storefront-api/internal/store"
	"github.com/lojinha-dev/storefront-api/internal/tenant"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("load config")
	}

	logger := obs.NewLogger(envOrDefault("LOG_FORMAT", "json"), envOrDefault("LOG_LEVEL", "info"))

	if err := runMigrations(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if enabled, _ := strconv.ParseBool(cfg.TracingEnabled); enabled {
		shutdownTracer, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   "storefront-api",
			Endpoint:      cfg.TracingEndpoint,
			Exporter:      cfg.TracingExporter,
			SamplingRatio: cfg.TracingSampleRate,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("tracing init failed, continuing without")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdownTracer(shutdownCtx)
			}()
		}
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database url")
	}
	poolCfg.ConnConfig.Tracer = obs.PGXTracer{}
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "storefront-api"
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()
	if err := pingWithTimeout(ctx, 5*time.Second, pool.Ping); err != nil {
		logger.Fatal().Err(err).Msg("ping postgres")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		logger.Warn().Err(err).Msg("redis tracing instrumentation failed")
	}
	if err := redisotel.InstrumentMetrics(rdb); err != nil {
		logger.Warn().Err(err).Msg("redis metrics instrumentation failed")
	}
	if err := pingWithTimeout(ctx, 5*time.Second, func(c context.Context) error { return rdb.Ping(c).Err() }); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	st := store.NewStore(pool)
	locker := lock.Locker{R: rdb}

	bus := &events.Bus{Store: st}

	enqueuer := queue.Enqueuer{
		R:           rdb,
		Prefix:      cfg.QueueRedisPrefix,
		DedupTTL:    cfg.IdempotencyTTL,
		MaxAttempts: cfg.QueueMaxAttempts,
	}
	dispatcher := &notify.Dispatcher{
		Q:           st,
		Queue:       enqueuer,
		MaxAttempts: cfg.WebhookMaxAttempts,
		Enabled:     cfg.WebhooksEnabled,
		Logger:      logger,
	}
	if cfg.WebhooksEnabled {
		bus.Notifiers = append(bus.Notifiers, dispatcher)
	}

	invSvc := &inventory.Service{
		Q:                 st,
		Tx:                inventoryTxRunner{st},
		Lock:              locker,
		Events:            bus,
		Logger:            logger,
		LowStockThreshold: cfg.LowStockThreshold,
	}
	orderSvc := &order.Service{
		Q:        st,
		Tx:       orderTxRunner{st},
		Validate: validator.New(),
		Events:   bus,
		Logger:   logger,
		Now:      time.Now,
	}
	catalogSvc := &catalog.Service{
		Q:      st,
		Cache:  catalog.NewCache(rdb, cfg.CatalogCacheTTL),
		Logger: logger,
	}
	shippingSvc := &shipping.Service{Q: st}
	couponSvc := &coupon.Service{Q: st, Now: time.Now}
	cartSvc := &cart.Service{Q: st, Shipping: shippingSvc, Coupons: couponSvc}
	paymentSvc := &payment.Service{Q: st, Orders: orderSvc, Events: bus, Logger: logger}

	catalogH := &catalog.Handler{Svc: catalogSvc}
	cartH := &cart.Handler{Svc: cartSvc}
	shippingH := &shipping.Handler{Svc: shippingSvc}
	couponH := &coupon.Handler{Svc: couponSvc}
	orderH := &order.Handler{Svc: orderSvc}
	inventoryH := &inventory.Handler{Svc: invSvc}
	paymentH := &payment.Handler{Svc: paymentSvc, WebhookSecret: cfg.PixWebhookSecret}
	webhookH := &notify.Handler{Q: st}
	queueAdminH := &queue.AdminHandler{
		Store:             queue.NewStore(pool),
		Queue:             enqueuer,
		Logger:            logger,
		VisibilityTimeout: cfg.QueueVisibilityTimeout,
	}

	var defaultStore uuid.UUID
	if cfg.DefaultStoreID != "" {
		defaultStore, err = uuid.Parse(cfg.DefaultStoreID)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse DEFAULT_STORE_ID")
		}
	}
	resolver := tenant.NewResolver("X-Store-ID", defaultStore)

	idem := common.Idem{R: rdb, TTL: cfg.IdempotencyTTL}
	checkoutLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: rdb, Prefix: cfg.QueueRedisPrefix + ":rl"},
		Config: ratelimit.Config{
			Key: func(r *http.Request) string {
				storeID, _ := tenant.FromContext(r.Context())
				return "checkout:" + storeID.String()
			},
			Window: cfg.CheckoutRateWindow,
			Max:    cfg.CheckoutRateMax,
		},
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter error") },
	}

	httpMetrics := obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBucketsCSV), nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	r.Use(obs.TracingMiddleware)
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key", "X-Store-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if cfg.SecurityHeaders {
		r.Use(security.Headers{Enable: true, EnableHSTS: cfg.EnableHSTS, HSTSMaxAge: 31536000}.Middleware)
	}
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	healthH := health.Handler{Checker: readinessChecker{db: pool, redis: rdb}}
	r.Get("/healthz", healthH.Live)
	r.Get("/readyz", healthH.Ready)
	r.Handle("/metrics", promhttp.Handler())
	if envBool("OBS_ENABLE_PPROF", true) {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), os.Getenv("PPROF_USER"), os.Getenv("PPROF_PASS")))
	}

	r.Route("/v1", func(api chi.Router) {
		// PSP settlement callback carries no store header; the charge is
		// resolved by transaction id.
		api.Post("/payments/pix/webhook", paymentH.Webhook)

		api.Group(func(api chi.Router) {
			api.Use(resolver.Middleware)

			api.Route("/products", func(pr chi.Router) {
				pr.Post("/", catalogH.Create)
				pr.Get("/", catalogH.List)
				pr.Get("/{id}", catalogH.Get)
				pr.Delete("/{id}", catalogH.Delete)
			})

			api.Post("/cart/breakdown", cartH.Breakdown)

			api.Route("/shipping", func(sh chi.Router) {
				sh.Get("/settings", shippingH.GetSettings)
				sh.Put("/settings", shippingH.PutSettings)
				sh.Post("/quote", shippingH.Quote)
			})

			api.Route("/coupons", func(cp chi.Router) {
				cp.Post("/", couponH.Create)
				cp.Get("/", couponH.List)
				cp.Post("/validate", couponH.Validate)
				cp.Post("/{id}/deactivate", couponH.Deactivate)
			})

			api.Route("/orders", func(or chi.Router) {
				or.With(checkoutLimit.Middleware, idem.Middleware).Post("/", orderH.Create)
				or.Get("/", orderH.List)
				or.Get("/{id}", orderH.Get)
				or.Post("/{id}/cancel", orderH.Cancel)
				or.Patch("/{id}/status", orderH.UpdateStatus)
				or.Post("/{id}/confirm-payment", orderH.ConfirmPayment)
				or.Post("/{id}/pix-charge", paymentH.CreateCharge)
			})

			api.Get("/payments/pix/settings", paymentH.GetSettings)
			api.Put("/payments/pix/settings", paymentH.PutSettings)
			api.Get("/payments/pix/qr/{txid}", paymentH.QRCode)

			api.Route("/inventory", func(inv chi.Router) {
				inv.Post("/adjust", inventoryH.Adjust)
				inv.Get("/low-stock", inventoryH.LowStock)
				inv.Get("/movements", inventoryH.Movements)
			})

			api.Route("/webhooks", func(wh chi.Router) {
				wh.Post("/", webhookH.Create)
				wh.Get("/", webhookH.List)
				wh.Delete("/{id}", webhookH.Delete)
			})

			api.Route("/admin/queue", func(q chi.Router) {
				q.Get("/dlq", queueAdminH.ListDLQ)
				q.Post("/dlq/replay", queueAdminH.ReplayDLQ)
				q.Get("/stats", queueAdminH.Stats)
			})
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("env", cfg.AppEnv).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()
	health.SetReady(true)

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}

	health.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("http server stopped")
}

// orderTxRunner bridges the shared pgx store to the order package's
// transactional interface.
type orderTxRunner struct{ s *store.Store }

func (r orderTxRunner) InTx(ctx context.Context, fn func(order.Store) error) error {
	return r.s.InTx(ctx, func(q *store.Queries) error { return fn(q) })
}

type inventoryTxRunner struct{ s *store.Store }

func (r inventoryTxRunner) InTx(ctx context.Context, fn func(inventory.Store) error) error {
	return r.s.InTx(ctx, func(q *store.Queries) error { return fn(q) })
}

func runMigrations(databaseURL string) error {
	dir := envOrDefault("MIGRATIONS_DIR", "migrations")
	m, err := migrate.New("file://"+dir, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func pingWithTimeout(ctx context.Context, timeout time.Duration, ping func(context.Context) error) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return ping(pingCtx)
}

// readinessChecker probes the stateful dependencies for /readyz.
type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(pingCtx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(pingCtx).Err()
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
