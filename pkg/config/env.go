package config

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres   = "postgres"
	DriverSQLite     = "sqlite"
	DefaultSQLiteDSN = "file:storefront.db?cache=shared"

	EnvAppEnv                = "STOREFRONT_APP_ENV"
	EnvPort                  = "STOREFRONT_APP_PORT"
	EnvDBDSN                 = "STOREFRONT_DB_DSN"
	EnvDBHost                = "STOREFRONT_DB_HOST"
	EnvDBUser                = "STOREFRONT_DB_USER"
	EnvDBName                = "STOREFRONT_DB_NAME"
	EnvRedisURL              = "STOREFRONT_REDIS_URL"
	EnvJWTSecret             = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer             = "STOREFRONT_JWT_ISSUER"
	EnvJWTExpMins            = "STOREFRONT_JWT_EXPIRATION_MINUTES"
	EnvUseSQLite             = "STOREFRONT_USE_SQLITE"
	EnvGuestCartTTL          = "STOREFRONT_GUEST_CART_TTL"
	EnvGuestFavoritesTTL     = "STOREFRONT_GUEST_FAVORITES_TTL"
	EnvShippingFlatRate      = "STOREFRONT_SHIPPING_FLAT_RATE"
	EnvFreeShippingThreshold = "STOREFRONT_FREE_SHIPPING_THRESHOLD"
	EnvTaxRate               = "STOREFRONT_TAX_RATE"
	EnvPaymentWebhookSecret  = "STOREFRONT_PAYMENT_WEBHOOK_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
