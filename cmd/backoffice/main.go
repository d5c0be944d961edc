package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/odyssey-erp/backoffice/internal/app"
	"github.com/odyssey-erp/backoffice/internal/auth"
	"github.com/odyssey-erp/backoffice/internal/observability"
	"github.com/odyssey-erp/backoffice/internal/platform/cache"
	"github.com/odyssey-erp/backoffice/internal/platform/db"
	"github.com/odyssey-erp/backoffice/internal/queues"
	queueshttp "github.com/odyssey-erp/backoffice/internal/queues/http"
	"github.com/odyssey-erp/backoffice/internal/shared"
	"github.com/odyssey-erp/backoffice/internal/tenancy"
	"github.com/odyssey-erp/backoffice/internal/upstream"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "backoffice_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	metrics := observability.NewMetrics()
	upstreamMetrics := upstream.NewMetrics(metrics.Registerer())
	queueMetrics := queues.NewMetrics(metrics.Registerer())

	authService := auth.NewService(auth.NewRepository(dbpool))
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	tenancyService := tenancy.NewService(
		tenancy.NewRepository(dbpool),
		tenancy.NewModuleCache(redisClient, cfg.ModuleCacheTTL),
		upstreamMetrics,
		cfg.UpstreamTimeout,
	)
	tenancyMiddleware := tenancy.Middleware{Service: tenancyService, Logger: logger}

	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	queueService := queues.NewService(queues.Options{
		FetchLimit:   cfg.UpstreamFetchLimit,
		DefaultLimit: cfg.QueueDefaultLimit,
		MaxLimit:     cfg.QueueMaxLimit,
	}, idempotencyStore, queueMetrics, logger)
	queueHandler := queueshttp.NewHandler(queueService, func(ctx context.Context) (queues.Caller, int64, error) {
		client, tenantID, err := tenancyService.ClientFromContext(ctx)
		if err != nil {
			return nil, 0, err
		}
		return client, tenantID, nil
	}, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		AuthHandler:    authHandler,
		QueueHandler:   queueHandler,
		Flows:          queues.Flows(),
		ModuleGuard:    tenancyMiddleware.RequireModule,
		Metrics:        metrics,
	})

	go pruneIdempotencyKeys(ctx, logger, idempotencyStore, cfg.IdempotencyRetention)

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// pruneIdempotencyKeys drops expired keys hourly until ctx is done.
func pruneIdempotencyKeys(ctx context.Context, logger *slog.Logger, store *shared.IdempotencyStore, retention time.Duration) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.Cleanup(ctx, retention); err != nil {
				logger.Warn("prune idempotency keys", slog.Any("error", err))
			}
		}
	}
}
