package config

const (
	EnvPrefix = "VERTEX"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	defaultSQLiteDSN = "file:vertex.db?_foreign_keys=on"
)

// Env var names referenced by tests and error messages.
const (
	EnvAppEnv                 = "VERTEX_APP_ENV"
	EnvPort                   = "VERTEX_APP_PORT"
	EnvDBDSN                  = "VERTEX_DB_DSN"
	EnvDBDriver               = "VERTEX_DB_DRIVER"
	EnvDBHost                 = "VERTEX_DB_HOST"
	EnvDBUser                 = "VERTEX_DB_USER"
	EnvDBName                 = "VERTEX_DB_NAME"
	EnvUseSQLite              = "VERTEX_USE_SQLITE"
	EnvRedisURL               = "VERTEX_REDIS_URL"
	EnvJWTSecret              = "VERTEX_JWT_SECRET"
	EnvJWTIssuer              = "VERTEX_JWT_ISSUER"
	EnvJWTExpMins             = "VERTEX_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "VERTEX_REFRESH_TOKEN_TTL_MINUTES"
	EnvTelegramBotToken       = "TELEGRAM_BOT_TOKEN"
	EnvTelegramWebhookSecret  = "TELEGRAM_WEBHOOK_SECRET"
	EnvPairingTokenTTL        = "VERTEX_PAIRING_TOKEN_TTL"
	EnvCreditsPerUnit         = "VERTEX_CREDITS_PER_UNIT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
