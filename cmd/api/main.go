package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/tindahan/marketplace-backend/api/routes"
	checkoutsvc "github.com/tindahan/marketplace-backend/internal/checkout"
	"github.com/tindahan/marketplace-backend/internal/orders"
	"github.com/tindahan/marketplace-backend/pkg/cache"
	"github.com/tindahan/marketplace-backend/pkg/clock"
	"github.com/tindahan/marketplace-backend/pkg/config"
	"github.com/tindahan/marketplace-backend/pkg/db"
	"github.com/tindahan/marketplace-backend/pkg/logger"
	"github.com/tindahan/marketplace-backend/pkg/metrics"
	"github.com/tindahan/marketplace-backend/pkg/migrate"
	"github.com/tindahan/marketplace-backend/pkg/outbox"
	"github.com/tindahan/marketplace-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, redisClient.Close())
	}()

	fees, err := cfg.Orders.DeliveryFees()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	orderMetrics := metrics.NewOrderMetrics(reg)

	clk := clock.System{}
	lock := orders.NewLockPolicy(cfg.Orders.EditLockWindow)
	ordersRepo := orders.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.Deps{
		Orders:       ordersRepo,
		Tx:           dbClient,
		Outbox:       outboxSvc,
		Clock:        clk,
		Lock:         lock,
		DeliveryFees: fees,
		StoreTimeout: cfg.Orders.StoreTimeout,
		Metrics:      orderMetrics,
		Logger:       logg,
	})
	if err != nil {
		return err
	}

	ordersService, err := orders.NewService(orders.Deps{
		Repo:             ordersRepo,
		Tx:               dbClient,
		Outbox:           outboxSvc,
		Clock:            clk,
		Lock:             lock,
		MaxWriteAttempts: cfg.Orders.MaxWriteAttempts,
		StoreTimeout:     cfg.Orders.StoreTimeout,
		RevenueCache:     cache.New[orders.RevenueReport](cache.NewRedis(redisClient), cfg.Orders.ReportCacheTTL, logg),
		Metrics:          orderMetrics,
		Logger:           logg,
	})
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"lock_window": cfg.Orders.EditLockWindow.String(),
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Redis:       redisClient,
			Idempotency: redisClient,
			Checkout:    checkoutService,
			Orders:      ordersService,
			Gatherer:    reg,
			Now:         clk.Now,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
