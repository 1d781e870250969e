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
	"golang.org/x/sync/errgroup"

	"github.com/tillpoint/tillpoint/internal/analytics"
	"github.com/tillpoint/tillpoint/internal/app"
	"github.com/tillpoint/tillpoint/internal/customers"
	"github.com/tillpoint/tillpoint/internal/inventory"
	"github.com/tillpoint/tillpoint/internal/masterdata/categories"
	"github.com/tillpoint/tillpoint/internal/masterdata/products"
	"github.com/tillpoint/tillpoint/internal/masterdata/suppliers"
	"github.com/tillpoint/tillpoint/internal/platform/cache"
	"github.com/tillpoint/tillpoint/internal/platform/db"
	"github.com/tillpoint/tillpoint/internal/procurement"
	"github.com/tillpoint/tillpoint/internal/sales"
	"github.com/tillpoint/tillpoint/internal/shared"
	"github.com/tillpoint/tillpoint/internal/users"
	"github.com/tillpoint/tillpoint/jobs"
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
		logger.Warn("redis unavailable, dashboard cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	audit := shared.NewAuditLogger(pool)
	idempotency := shared.NewIdempotencyStore(pool)

	productsService := products.NewService(products.NewRepository(pool))
	productsHandler := products.NewHandler(logger, productsService)
	categoriesHandler := categories.NewHandler(logger, categories.NewRepository(pool))
	suppliersHandler := suppliers.NewHandler(logger, suppliers.NewRepository(pool))

	customersService := customers.NewService(customers.NewRepository(pool), audit)
	customersHandler := customers.NewHandler(logger, customersService)

	usersService := users.NewService(users.NewRepository(pool))
	usersHandler := users.NewHandler(logger, usersService)

	inventoryService := inventory.NewService(inventory.NewRepository(pool), audit)
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	procurementService := procurement.NewService(procurement.NewRepository(pool), audit)
	procurementHandler := procurement.NewHandler(logger, procurementService)

	salesService := sales.NewService(sales.NewRepository(pool), audit, idempotency)
	salesHandler := sales.NewHandler(logger, salesService)

	analyticsService := analytics.NewService(analytics.NewRepository(pool), redisClient, logger,
		cfg.DashboardCacheTTL, cfg.LowStockThreshold)
	analyticsHandler := analytics.NewHandler(logger, analyticsService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		ProductsHandler:    productsHandler,
		CategoriesHandler:  categoriesHandler,
		SuppliersHandler:   suppliersHandler,
		CustomersHandler:   customersHandler,
		UsersHandler:       usersHandler,
		InventoryHandler:   inventoryHandler,
		ProcurementHandler: procurementHandler,
		SalesHandler:       salesHandler,
		AnalyticsHandler:   analyticsHandler,
		JobHandler:         jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
