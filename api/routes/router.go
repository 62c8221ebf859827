package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/favorites"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Cache is the Redis surface the HTTP layer needs for throttling and replays.
type Cache interface {
	db.Pinger
	redis.IdempotencyStore
	middleware.WindowLimiter
}

// Deps are the collaborators the router wires into handlers. Nil services
// produce 500 "unavailable" handlers; a nil Cache disables idempotency and
// rate limiting.
type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        db.Pinger
	Cache     Cache
	Guests    middleware.GuestResolver
	Metrics   *metrics.Recorder
	Exporter  http.Handler
	Auth      auth.Service
	Cart      cart.Service
	Favorites favorites.Service
	Addresses address.Service
	Orders    orders.Service
}

func NewRouter(deps Deps) http.Handler {
	var (
		cfg              = deps.Config
		logg             = deps.Logger
		guestSessions    = deps.Guests
		authService      = deps.Auth
		cartService      = deps.Cart
		favoritesService = deps.Favorites
		addressService   = deps.Addresses
		ordersService    = deps.Orders
	)

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.Metrics),
		middleware.CORS(cfg.App.CORSOrigins...),
		middleware.Timeout(cfg.Checkout.RequestTimeout),
	)

	var (
		idempotencyStore redis.IdempotencyStore
		limiter          middleware.WindowLimiter
	)
	readiness := map[string]controllers.Pinger{"db": deps.DB}
	if deps.Cache != nil {
		idempotencyStore = deps.Cache
		limiter = deps.Cache
		readiness["redis"] = deps.Cache
	}

	sessionOpts := middleware.GuestSessionOptions{
		TTL:          cfg.Session.GuestTTL,
		CookieSecure: cfg.Session.CookieSecure,
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness, logg))
	})
	if deps.Exporter != nil {
		r.Method(http.MethodGet, "/metrics", deps.Exporter)
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookcontrollers.PaymentWebhook(ordersService, cfg.Webhooks.PaymentSecret, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(middleware.GuestSession(guestSessions, sessionOpts, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, limiter, logg)).Post("/login", controllers.AuthLogin(authService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, limiter, logg)).Post("/register", controllers.AuthRegister(authService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(cfg.JWT, logg))
		r.Use(middleware.GuestSession(guestSessions, sessionOpts, logg))
		r.Use(middleware.RateLimit(limiter, cfg.RateLimit.Limit, cfg.RateLimit.Window, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(cartService, logg))
			r.Post("/", controllers.CartAdd(cartService, logg))
			r.Delete("/", controllers.CartClear(cartService, logg))
			r.Get("/validate", controllers.CartValidate(cartService, logg))
			r.Put("/{variantId}", controllers.CartUpdate(cartService, logg))
			r.Delete("/{variantId}", controllers.CartRemove(cartService, logg))
		})

		r.Route("/favorites", func(r chi.Router) {
			r.Get("/", controllers.FavoritesList(favoritesService, logg))
			r.Post("/", controllers.FavoritesAdd(favoritesService, logg))
			r.Get("/{productId}", controllers.FavoritesCheck(favoritesService, logg))
			r.Delete("/{productId}", controllers.FavoritesRemove(favoritesService, logg))
		})

		r.Post("/checkout", controllers.Checkout(ordersService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.Auth(cfg.JWT, logg)).Get("/", ordercontrollers.List(ordersService, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(ordersService, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(ordersService, logg))
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Get("/", controllers.AddressList(addressService, logg))
			r.Post("/", controllers.AddressCreate(addressService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
		r.Use(middleware.Idempotency(idempotencyStore, logg))
		r.Post("/orders/{orderId}/fulfill", ordercontrollers.Fulfill(ordersService, logg))
	})

	return r
}
