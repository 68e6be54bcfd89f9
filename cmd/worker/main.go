package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
	"github.com/meridian-erp/meridian-erp/internal/accounting/reports"
	"github.com/meridian-erp/meridian-erp/internal/accounting/sysaccounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/types"
	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/assets"
	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	kinds := journals.NewKindSet(assets.SourceKindDepreciation)
	journalsService := journals.NewService(journals.NewRepository(pool), registry, kinds, shared.NewAuditLogger(pool))

	accountsRepo := accounts.NewRepository(pool)
	sysService := sysaccounts.NewService(sysaccounts.NewRepository(pool), accountsRepo)
	assetsService := assets.NewService(logger, assets.NewRepository(pool), journalsService, sysService)

	reportsService := reports.NewService(accountsRepo, reports.NewRepository(pool))

	metrics := jobmetrics.NewMetrics(nil)
	scanner := jobs.NewIntegrityScanner(logger, jobs.NewScanSource(pool), reportsService, metrics)

	integrityTask, err := jobs.NewLedgerIntegrityTask(jobs.LedgerIntegrityPayload{})
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}
	depreciationTask, err := jobs.NewDepreciationRunTask(jobs.DepreciationRunPayload{})
	if err != nil {
		logger.Error("build depreciation task", slog.Any("error", err))
		os.Exit(1)
	}

	var cron []jobs.CronRegistration
	if cfg.IntegrityCron != "" {
		cron = append(cron, jobs.CronRegistration{
			Spec: cfg.IntegrityCron, Task: integrityTask,
			Options: []asynq.Option{asynq.MaxRetry(3)},
		})
	}
	if cfg.DepreciationCron != "" {
		cron = append(cron, jobs.CronRegistration{
			Spec: cfg.DepreciationCron, Task: depreciationTask,
			Options: []asynq.Option{asynq.MaxRetry(3)},
		})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDepreciationRun, Handler: jobs.NewDepreciationHandler(logger, assetsService, metrics)},
			{Type: jobs.TaskLedgerIntegrity, Handler: jobs.NewLedgerIntegrityHandler(logger, scanner, metrics)},
		},
		Cron: cron,
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
