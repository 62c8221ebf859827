package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/cron"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/sessionstore"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/instance"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	requireResource(logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	recorder := metrics.NewRecorder(prometheus.DefaultRegisterer)
	conn := dbClient.DB()

	ledger, err := inventory.NewLedger(conn)
	requireResource(logg, "inventory ledger", err)
	guestState, err := sessionstore.New(redisClient, cfg.Session)
	requireResource(logg, "session store", err)

	cartService, err := cart.NewService(cart.ServiceParams{
		Durable:   cart.NewDurableStore(cart.NewRepository(conn)),
		Ephemeral: cart.NewEphemeralStore(guestState),
		Catalog:   catalog.NewRepository(conn),
		Stock:     ledger,
		Metrics:   recorder,
		Logger:    logg,
	})
	requireResource(logg, "cart service", err)
	addressService, err := address.NewService(address.NewRepository(conn), dbClient)
	requireResource(logg, "address service", err)

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:      orders.NewRepository(conn),
		Tx:        dbClient,
		Cart:      cartService,
		Addresses: addressService,
		Customers: users.NewRepository(conn),
		Stock:     ledger,
		Pricing:   cfg.Checkout,
		Metrics:   recorder,
		Logger:    logg,
	})
	requireResource(logg, "orders service", err)

	pendingJob, err := cron.NewPendingOrdersJob(cron.PendingOrdersJobParams{
		Logger:    logg,
		Orders:    ordersService,
		TTL:       cfg.Cron.PendingOrderTTL,
		BatchSize: cfg.Cron.BatchSize,
	})
	requireResource(logg, "pending orders job", err)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron:"+envOrLocal(cfg.App.Env)), cfg.Cron.LockTTL)
	requireResource(logg, "cron lock", err)

	registry, err := cron.NewRegistry(pendingJob)
	requireResource(logg, "cron registry", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  recorder,
		Interval: cfg.Cron.Interval,
	})
	requireResource(logg, "cron service", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Cron.Interval.String(),
		"instance": instance.ID(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func envOrLocal(env string) string {
	if env == "" {
		return "local"
	}
	return env
}

func requireResource(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to bootstrap "+resource, err)
	os.Exit(1)
}
