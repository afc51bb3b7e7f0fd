package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App                 AppConfig
	Service             ServiceConfig
	HTTP                HTTPConfig
	DB                  DBConfig
	Redis               RedisConfig
	JWT                 JWTConfig
	RedemptionRateLimit RedemptionRateLimitConfig
	FeatureFlags        FeatureFlagsConfig
	Restock             RestockConfig
	SMTP                SMTPConfig
	Mailer              MailerConfig
	Cron                CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.App.validate(); err != nil {
		return nil, err
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Restock.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(a.LogFormat)) {
	case "json", "console":
		return nil
	}
	return fmt.Errorf("%s must be json or console, got %q", EnvLogFormat, a.LogFormat)
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOREFRONT_SERVICE_KIND" default:"api"`
}

// HTTPConfig covers the API listener and browser access from the admin console.
type HTTPConfig struct {
	AllowedOrigins  []string      `envconfig:"STOREFRONT_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	ReadTimeout     time.Duration `envconfig:"STOREFRONT_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"STOREFRONT_HTTP_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"STOREFRONT_HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig covers verification of access tokens minted by the identity service.
type JWTConfig struct {
	Secret            string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" default:"60"`
}

type RedemptionRateLimitConfig struct {
	Window    time.Duration `envconfig:"STOREFRONT_REDEEM_RATE_LIMIT_WINDOW" default:"10m"`
	IPLimit   int           `envconfig:"STOREFRONT_REDEEM_RATE_LIMIT_IP_LIMIT" default:"30"`
	UserLimit int           `envconfig:"STOREFRONT_REDEEM_RATE_LIMIT_USER_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STOREFRONT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

// RestockConfig drives supplier restock code issuance. CodeSecret is optional;
// without it codes are stored as hash only and cancellation notices fall back to the hint.
type RestockConfig struct {
	CodeSecret     string        `envconfig:"STOREFRONT_RESTOCK_CODE_SECRET"`
	CodeTTL        time.Duration `envconfig:"STOREFRONT_RESTOCK_CODE_TTL" default:"168h"`
	CodeLength     int           `envconfig:"STOREFRONT_RESTOCK_CODE_LENGTH" default:"10"`
	IdempotencyTTL time.Duration `envconfig:"STOREFRONT_RESTOCK_IDEMPOTENCY_TTL" default:"24h"`
}

// EncryptionEnabled reports whether a dedicated code secret is configured.
func (r RestockConfig) EncryptionEnabled() bool {
	return strings.TrimSpace(r.CodeSecret) != ""
}

func (r RestockConfig) validate() error {
	if r.CodeTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvRestockCodeTTL)
	}
	if r.CodeLength < minRestockCodeLength {
		return fmt.Errorf("%s must be at least %d", EnvRestockCodeLength, minRestockCodeLength)
	}
	if r.EncryptionEnabled() && len(r.CodeSecret) < minRestockSecretLength {
		return fmt.Errorf("%s must be at least %d characters", EnvRestockCodeSecret, minRestockSecretLength)
	}
	return nil
}

type SMTPConfig struct {
	Host     string        `envconfig:"STOREFRONT_SMTP_HOST"`
	Port     int           `envconfig:"STOREFRONT_SMTP_PORT" default:"587"`
	User     string        `envconfig:"STOREFRONT_SMTP_USER"`
	Password string        `envconfig:"STOREFRONT_SMTP_PASSWORD"`
	From     string        `envconfig:"STOREFRONT_SMTP_FROM" default:"no-reply@storefront.local"`
	Timeout  time.Duration `envconfig:"STOREFRONT_SMTP_TIMEOUT" default:"10s"`
}

// Enabled reports whether outbound email is configured at all.
func (s SMTPConfig) Enabled() bool {
	return strings.TrimSpace(s.Host) != ""
}

type MailerConfig struct {
	BreakerFailureThreshold int           `envconfig:"STOREFRONT_MAILER_BREAKER_FAILURES" default:"5"`
	BreakerOpenTimeout      time.Duration `envconfig:"STOREFRONT_MAILER_BREAKER_OPEN_TIMEOUT" default:"60s"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"STOREFRONT_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"STOREFRONT_CRON_LOCK_TTL" default:"10m"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
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
