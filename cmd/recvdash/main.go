package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/ledgerbridge/recvdash/internal/app"
	"github.com/ledgerbridge/recvdash/internal/dashboard"
	dashhttp "github.com/ledgerbridge/recvdash/internal/dashboard/http"
	"github.com/ledgerbridge/recvdash/internal/ledger"
	"github.com/ledgerbridge/recvdash/internal/observability"
	"github.com/ledgerbridge/recvdash/internal/platform/cache"
	"github.com/ledgerbridge/recvdash/internal/platform/db"
	"github.com/ledgerbridge/recvdash/jobs"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	// The snapshot cache degrades to direct ledger loads without Redis, so a
	// missing cache is a warning, not a startup failure.
	var redisClient *redis.Client
	if client, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	ledgerClient := ledger.NewClient(cfg.LedgerBaseURL, cfg.LedgerTimeout, logger)
	snapshotCache := dashboard.NewSnapshotCache(redisClient, cfg.SnapshotTTL)
	service := dashboard.NewService(ledgerClient, snapshotCache)
	prefs := dashboard.NewPrefRepository(dbpool)

	metrics := observability.NewMetrics()
	registry := dashboard.NewSessionRegistry(ledgerClient, logger, cfg.SessionMaxIdle)
	registry.WithObserver(metrics)

	dashboardHandler := dashhttp.NewHandler(logger, service, registry, prefs)
	dashboardHandler.WithMetrics(metrics)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		DashboardHandler: dashboardHandler,
		JobsHandler:      jobsHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
