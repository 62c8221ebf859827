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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/favorites"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/sessionstore"
	"github.com/angelmondragon/storefront-backend/internal/transfer"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/instance"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
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

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(registry)

	guestSessions, err := session.NewGuestManager(redisClient, cfg.Session)
	requireResource(logg, "guest sessions", err)
	guestState, err := sessionstore.New(redisClient, cfg.Session)
	requireResource(logg, "session store", err)

	conn := dbClient.DB()
	catalogRepo := catalog.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	favoritesRepo := favorites.NewRepository(conn)
	usersRepo := users.NewRepository(conn)

	ledger, err := inventory.NewLedger(conn)
	requireResource(logg, "inventory ledger", err)

	cartService, err := cart.NewService(cart.ServiceParams{
		Durable:   cart.NewDurableStore(cartRepo),
		Ephemeral: cart.NewEphemeralStore(guestState),
		Catalog:   catalogRepo,
		Stock:     ledger,
		Metrics:   recorder,
		Logger:    logg,
	})
	requireResource(logg, "cart service", err)

	favoritesService, err := favorites.NewService(favorites.ServiceParams{
		Repo:     favoritesRepo,
		Guests:   guestState,
		Products: catalogRepo,
	})
	requireResource(logg, "favorites service", err)

	transferService, err := transfer.NewService(transfer.ServiceParams{
		Tx:        dbClient,
		Guests:    guestState,
		Catalog:   catalogRepo,
		Carts:     cartRepo,
		Favorites: favoritesRepo,
		Metrics:   recorder,
		Logger:    logg,
	})
	requireResource(logg, "transfer service", err)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       usersRepo,
		Transfer:       transferService,
		GuestSessions:  guestSessions,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	requireResource(logg, "auth service", err)

	addressService, err := address.NewService(address.NewRepository(conn), dbClient)
	requireResource(logg, "address service", err)

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:      orders.NewRepository(conn),
		Tx:        dbClient,
		Cart:      cartService,
		Addresses: addressService,
		Customers: usersRepo,
		Stock:     ledger,
		Pricing:   cfg.Checkout,
		Metrics:   recorder,
		Logger:    logg,
	})
	requireResource(logg, "orders service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:    cfg,
			Logger:    logg,
			DB:        dbClient,
			Cache:     redisClient,
			Guests:    guestSessions,
			Metrics:   recorder,
			Exporter:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			Auth:      authService,
			Cart:      cartService,
			Favorites: favoritesService,
			Addresses: addressService,
			Orders:    ordersService,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func requireResource(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to bootstrap "+resource, err)
	os.Exit(1)
}
