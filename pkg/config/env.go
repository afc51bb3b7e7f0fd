package config

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv    = "STOREFRONT_APP_ENV"
	EnvPort      = "STOREFRONT_APP_PORT"
	EnvLogLevel  = "STOREFRONT_LOG_LEVEL"
	EnvLogFormat = "STOREFRONT_LOG_FORMAT"

	EnvDBDSN  = "STOREFRONT_DB_DSN"
	EnvDBHost = "STOREFRONT_DB_HOST"
	EnvDBUser = "STOREFRONT_DB_USER"
	EnvDBName = "STOREFRONT_DB_NAME"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvJWTSecret  = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer  = "STOREFRONT_JWT_ISSUER"
	EnvJWTExpMins = "STOREFRONT_JWT_EXPIRATION_MINUTES"

	EnvUseSQLite = "STOREFRONT_USE_SQLITE"

	EnvRestockCodeSecret = "STOREFRONT_RESTOCK_CODE_SECRET"
	EnvRestockCodeTTL    = "STOREFRONT_RESTOCK_CODE_TTL"
	EnvRestockCodeLength = "STOREFRONT_RESTOCK_CODE_LENGTH"

	EnvSMTPHost = "STOREFRONT_SMTP_HOST"
)

const (
	defaultSQLiteDSN       = "file:storefront.db?_foreign_keys=on&_busy_timeout=5000"
	minRestockCodeLength   = 8
	minRestockSecretLength = 16
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
