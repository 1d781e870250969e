package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tillpoint/tillpoint/internal/analytics"
	"github.com/tillpoint/tillpoint/internal/app"
	"github.com/tillpoint/tillpoint/internal/platform/cache"
	"github.com/tillpoint/tillpoint/internal/platform/db"
	"github.com/tillpoint/tillpoint/jobs"
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

	analyticsService := analytics.NewService(analytics.NewRepository(pool), redisClient, logger,
		cfg.DashboardCacheTTL, cfg.LowStockThreshold)

	reconciler := jobs.NewStockReconciler(pool, logger)
	warmup := jobs.NewDashboardWarmup(func(ctx context.Context) error {
		_, err := analyticsService.Refresh(ctx)
		return err
	}, logger)

	// the nightly run reports drift only; repairs are enqueued by an operator
	reconcileTask, err := jobs.NewStockReconcileTask(time.Now(), false)
	if err != nil {
		logger.Error("build reconcile task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewDashboardWarmupTask(time.Now())
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskStockReconcile, Handler: reconciler.Handle},
			{Type: jobs.TaskDashboardWarmup, Handler: warmup.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 2 * * *", Task: reconcileTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "45 5 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started")
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker exit", slog.Any("error", err))
		os.Exit(1)
	}
}
