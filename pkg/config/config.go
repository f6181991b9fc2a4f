package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	HTTP          HTTPConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Telegram      TelegramConfig
	Pairing       PairingConfig
	Billing       BillingConfig
	Outbox        OutboxConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var err error
	switch strings.ToLower(c.DB.Driver) {
	case DBDriverPostgres, DBDriverSQLite:
	default:
		err = multierr.Append(err, fmt.Errorf("%s must be %q or %q", EnvDBDriver, DBDriverPostgres, DBDriverSQLite))
	}
	if c.Billing.CreditsPerUnit <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvCreditsPerUnit))
	}
	if c.Pairing.TokenTTL <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvPairingTokenTTL))
	}
	if c.App.IsProd() && c.Telegram.BotToken != "" && c.Telegram.WebhookSecret == "" {
		err = multierr.Append(err, fmt.Errorf("%s is required when the bot is enabled in production", EnvTelegramWebhookSecret))
	}
	return err
}

type AppConfig struct {
	Env          string `envconfig:"VERTEX_APP_ENV" required:"true"`
	Port         string `envconfig:"VERTEX_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VERTEX_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VERTEX_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"VERTEX_LOG_FORMAT" default:"json"`
}

// HTTPConfig covers the public API surface only.
type HTTPConfig struct {
	// CORSOrigins is a comma separated allow list.
	CORSOrigins []string `envconfig:"VERTEX_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"VERTEX_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"VERTEX_DB_DSN"`
	Driver string `envconfig:"VERTEX_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VERTEX_DB_HOST"`
	LegacyPort     int    `envconfig:"VERTEX_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VERTEX_DB_USER"`
	LegacyPassword string `envconfig:"VERTEX_DB_PASSWORD"`
	LegacyName     string `envconfig:"VERTEX_DB_NAME"`
	LegacySSLMode  string `envconfig:"VERTEX_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VERTEX_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VERTEX_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VERTEX_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VERTEX_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"VERTEX_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VERTEX_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VERTEX_REDIS_ADDR"`
	Password     string        `envconfig:"VERTEX_REDIS_PASSWORD"`
	DB           int           `envconfig:"VERTEX_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VERTEX_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VERTEX_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VERTEX_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VERTEX_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VERTEX_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"VERTEX_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"VERTEX_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"VERTEX_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"VERTEX_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"VERTEX_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"VERTEX_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"VERTEX_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"VERTEX_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"VERTEX_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"VERTEX_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"VERTEX_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"VERTEX_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"VERTEX_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"VERTEX_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"VERTEX_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
	APIWindow          time.Duration `envconfig:"VERTEX_API_RATE_LIMIT_WINDOW" default:"1m"`
	APIUserLimit       int           `envconfig:"VERTEX_API_RATE_LIMIT_USER_LIMIT" default:"120"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"VERTEX_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"VERTEX_AUTO_MIGRATE" default:"false"`
}

// TelegramConfig keeps the bot credentials under the names the bot platform
// documentation uses, without the service prefix.
type TelegramConfig struct {
	BotToken      string        `envconfig:"TELEGRAM_BOT_TOKEN"`
	WebhookSecret string        `envconfig:"TELEGRAM_WEBHOOK_SECRET"`
	APIEndpoint   string        `envconfig:"VERTEX_TELEGRAM_API_ENDPOINT"`
	WebhookURL    string        `envconfig:"VERTEX_TELEGRAM_WEBHOOK_URL"`
	UpdateTTL     time.Duration `envconfig:"VERTEX_TELEGRAM_UPDATE_TTL" default:"24h"`
	SendTimeout   time.Duration `envconfig:"VERTEX_TELEGRAM_SEND_TIMEOUT" default:"10s"`
}

// Enabled reports whether outbound bot messages can be sent.
func (t TelegramConfig) Enabled() bool {
	return strings.TrimSpace(t.BotToken) != ""
}

type PairingConfig struct {
	TokenTTL time.Duration `envconfig:"VERTEX_PAIRING_TOKEN_TTL" default:"10m"`
}

type BillingConfig struct {
	CreditsPerUnit    int           `envconfig:"VERTEX_CREDITS_PER_UNIT" default:"10"`
	DefaultCurrency   string        `envconfig:"VERTEX_DEFAULT_CURRENCY" default:"USD"`
	InvoicePendingTTL time.Duration `envconfig:"VERTEX_INVOICE_PENDING_TTL" default:"24h"`
}

type OutboxConfig struct {
	BatchSize      int    `envconfig:"VERTEX_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"VERTEX_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"VERTEX_OUTBOX_MAX_ATTEMPTS" default:"10"`
	MetricsAddr    string `envconfig:"VERTEX_NOTIFIER_METRICS_ADDR" default:":9092"`
}

type CronConfig struct {
	Interval              time.Duration `envconfig:"VERTEX_CRON_INTERVAL" default:"1h"`
	Tick                  time.Duration `envconfig:"VERTEX_CRON_TICK" default:"1m"`
	InvoiceExpiryEvery    time.Duration `envconfig:"VERTEX_CRON_INVOICE_EXPIRY_EVERY" default:"10m"`
	NotificationRetention int           `envconfig:"VERTEX_CRON_NOTIFICATION_RETENTION_DAYS" default:"30"`
	OutboxRetention       int           `envconfig:"VERTEX_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	MetricsAddr           string        `envconfig:"VERTEX_CRON_METRICS_ADDR" default:":9091"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if strings.EqualFold(db.Driver, DBDriverSQLite) {
		db.DSN = defaultSQLiteDSN
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
