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
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/opticore-pos/opticore/internal/app"
	"github.com/opticore-pos/opticore/internal/approvals"
	"github.com/opticore-pos/opticore/internal/audit"
	"github.com/opticore-pos/opticore/internal/auth"
	"github.com/opticore-pos/opticore/internal/catalog"
	"github.com/opticore-pos/opticore/internal/customers"
	"github.com/opticore-pos/opticore/internal/observability"
	"github.com/opticore-pos/opticore/internal/quotes"
	"github.com/opticore-pos/opticore/internal/quotes/pof"
	"github.com/opticore-pos/opticore/internal/quotes/secondpair"
	"github.com/opticore-pos/opticore/internal/rbac"
	"github.com/opticore-pos/opticore/internal/reports"
	"github.com/opticore-pos/opticore/internal/shared"
	"github.com/opticore-pos/opticore/internal/users"
	"github.com/opticore-pos/opticore/jobs"
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

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "opticore_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	auditLogger := shared.NewAuditLogger(dbpool)
	approvalQueue := shared.NewApprovalQueue(dbpool, logger)
	idemStore := shared.NewIdempotencyStore(dbpool)

	rbacService := rbac.NewService(dbpool)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	metrics := observability.NewMetrics()

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	notifier := jobs.NewNotifier(jobClient)

	authService := auth.NewService(auth.NewRepository(dbpool))
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	customerRepo := customers.NewRepository(dbpool)
	customerService := customers.NewService(customerRepo)
	customerHandler := customers.NewHandler(logger, customerService, rbacMiddleware)

	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo, auditLogger)
	catalogHandler := catalog.NewHandler(logger, catalogService, rbacMiddleware)

	quoteRepo := quotes.NewRepository(dbpool)
	quoteService := quotes.NewService(quoteRepo, approvalQueue, auditLogger, notifier, logger, quotes.ServiceConfig{
		TaxRate:      cfg.TaxRate,
		ExpiryWindow: cfg.QuoteExpiryWindow,
	})
	quoteHandler := quotes.NewHandler(logger, quoteService, rbacService, idemStore, metrics, rbacMiddleware)

	secondPairRepo := secondpair.NewRepository(dbpool)
	secondPairService := secondpair.NewService(secondPairRepo, quoteRepo, secondpair.NewTxRunner(dbpool), auditLogger, logger)
	secondPairHandler := secondpair.NewHandler(logger, secondPairService, idemStore, rbacMiddleware)

	pofService := pof.NewService(quoteRepo, quoteService.Pricer(), auditLogger, logger, pof.Config{
		ServiceFee:    cfg.POFServiceFee,
		MinFrameValue: cfg.POFMinFrameValue,
	})
	pofHandler := pof.NewHandler(logger, pofService, rbacMiddleware)

	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	if err := reportCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("report cache invalidation listener", slog.Any("error", err))
	}
	reportService := reports.NewService(dbpool)
	reportHandler := reports.NewHandler(logger, reportService, reportCache, rbacMiddleware)

	approvalsHandler := approvals.NewHandler(logger, approvalQueue, rbacMiddleware)

	auditHandler := audit.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool)), rbacMiddleware)

	userService := users.NewService(users.NewRepository(dbpool), rbacService, auditLogger)
	userHandler := users.NewHandler(logger, userService, rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SessionManager:    sessionManager,
		CSRFManager:       csrfManager,
		AuthHandler:       authHandler,
		CustomersHandler:  customerHandler,
		CatalogHandler:    catalogHandler,
		QuotesHandler:     quoteHandler,
		SecondPairHandler: secondPairHandler,
		POFHandler:        pofHandler,
		ReportsHandler:    reportHandler,
		ApprovalsHandler:  approvalsHandler,
		UsersHandler:      userHandler,
		AuditHandler:      auditHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
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
