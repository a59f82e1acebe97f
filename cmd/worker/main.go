package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/opticore-pos/opticore/internal/app"
	jobmetrics "github.com/opticore-pos/opticore/internal/jobs"
	"github.com/opticore-pos/opticore/internal/quotes"
	"github.com/opticore-pos/opticore/internal/reports"
	"github.com/opticore-pos/opticore/internal/shared"
	"github.com/opticore-pos/opticore/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	auditLogger := shared.NewAuditLogger(pool)
	approvalQueue := shared.NewApprovalQueue(pool, logger)

	quoteRepo := quotes.NewRepository(pool)
	quoteService := quotes.NewService(quoteRepo, approvalQueue, auditLogger, nil, logger, quotes.ServiceConfig{
		TaxRate:      cfg.TaxRate,
		ExpiryWindow: cfg.QuoteExpiryWindow,
	})

	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)

	jobMetrics := jobmetrics.NewMetrics(nil)
	expiryHandler := jobs.NewQuoteExpiryHandler(quoteService, reportCache, logger, jobMetrics)
	presentedHandler := jobs.NewQuotePresentedHandler(pool, logger)

	idemStore := shared.NewIdempotencyStore(pool)
	cleanupHandler := jobs.NewIdempotencyCleanupHandler(idemStore, logger, jobMetrics)

	expiryTask, err := jobs.NewQuoteExpiryTask(time.Now())
	if err != nil {
		logger.Error("build quote expiry task", slog.Any("error", err))
		os.Exit(1)
	}

	cleanupTask, err := jobs.NewIdempotencyCleanupTask()
	if err != nil {
		logger.Error("build idempotency cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskQuoteExpiry, Handler: expiryHandler.Handle},
			{Type: jobs.TaskTypeQuotePresented, Handler: presentedHandler.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupHandler.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 3 * * *", Task: expiryTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
