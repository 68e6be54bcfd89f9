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

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/accounting/reports"
	"github.com/meridian-erp/meridian-erp/internal/accounting/sysaccounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/types"
	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/assets"
	"github.com/meridian-erp/meridian-erp/internal/audit"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/payroll"
	"github.com/meridian-erp/meridian-erp/internal/platform/cache"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/purchasing"
	"github.com/meridian-erp/meridian-erp/internal/sales"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/internal/treasury"
	"github.com/meridian-erp/meridian-erp/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	typeList, err := types.NewRepository(pool).List(ctx)
	if err != nil {
		logger.Error("load account types", slog.Any("error", err))
		os.Exit(1)
	}
	registry, err := types.NewRegistry(typeList)
	if err != nil {
		logger.Error("build type registry", slog.Any("error", err))
		os.Exit(1)
	}

	auditLogger := shared.NewAuditLogger(pool)

	accountsRepo := accounts.NewRepository(pool)
	accountsService := accounts.NewService(accountsRepo, registry, accounts.ServiceConfig{})
	accountsHandler := accounts.NewHandler(logger, accountsService)

	sysRepo := sysaccounts.NewRepository(pool)
	sysService := sysaccounts.NewService(sysRepo, accountsRepo)
	sysHandler := sysaccounts.NewHandler(logger, sysService)

	kinds := journals.NewKindSet(
		sales.SourceKindInvoice,
		purchasing.SourceKindInvoice,
		payroll.SourceKindSlip,
		treasury.SourceKindMovement,
		assets.SourceKindDepreciation,
		inventory.SourceKindMovement,
	)
	journalsRepo := journals.NewRepository(pool)
	journalsService := journals.NewService(journalsRepo, registry, kinds, auditLogger)
	journalsHandler := journals.NewHandler(logger, journalsService)

	reportsCache := reports.NewCache(redisClient, 30*time.Second)
	reportsService := reports.NewService(accountsRepo, reports.NewRepository(pool)).WithCache(reportsCache)
	reportsHandler := reports.NewHandler(logger, reportsService)

	salesService := sales.NewService(logger, sales.NewRepository(pool), journalsService, sysService)
	salesHandler := sales.NewHandler(logger, salesService)

	purchasingService := purchasing.NewService(logger, purchasing.NewRepository(pool), journalsService, sysService)
	purchasingHandler := purchasing.NewHandler(logger, purchasingService)

	payrollService := payroll.NewService(logger, payroll.NewRepository(pool), journalsService, sysService)
	payrollHandler := payroll.NewHandler(logger, payrollService)

	treasuryService := treasury.NewService(logger, treasury.NewRepository(pool), journalsService, sysService)
	treasuryHandler := treasury.NewHandler(logger, treasuryService)

	assetsService := assets.NewService(logger, assets.NewRepository(pool), journalsService, sysService)
	assetsHandler := assets.NewHandler(logger, assetsService)

	inventoryService := inventory.NewService(logger, inventory.NewRepository(pool), journalsService, sysService)
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	auditHandler := audit.NewHandler(logger, audit.NewService(audit.NewRepository(pool)))

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AccountsHandler:    accountsHandler,
		JournalsHandler:    journalsHandler,
		ReportsHandler:     reportsHandler,
		SysAccountsHandler: sysHandler,
		SalesHandler:       salesHandler,
		PurchasingHandler:  purchasingHandler,
		PayrollHandler:     payrollHandler,
		TreasuryHandler:    treasuryHandler,
		AssetsHandler:      assetsHandler,
		InventoryHandler:   inventoryHandler,
		AuditHandler:       auditHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
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
