package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const defaultJWTSecret = "dev-secret"

// Config aggregates runtime configuration for the portal gateway.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Guard     GuardConfig
	RateLimit RateLimitConfig
	Bootstrap BootstrapConfig
	Audit     AuditConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string `env:"APP_NAME" envDefault:"umkm-portal"`
	Env                   string `env:"APP_ENV" envDefault:"development"`
	Host                  string `env:"APP_HOST" envDefault:"0.0.0.0"`
	Port                  string `env:"APP_PORT" envDefault:"8080"`
	Version               string `env:"APP_VERSION" envDefault:"dev"`
	RequestTimeoutSeconds int    `env:"HTTP_REQUEST_TIMEOUT_SECONDS" envDefault:"30"`
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string `env:"POSTGRES_DSN"`
	MaxConns       int32  `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
	MinConns       int32  `env:"POSTGRES_MIN_CONNS" envDefault:"2"`
	RunMigrations  bool   `env:"POSTGRES_RUN_MIGRATIONS" envDefault:"true"`
	ConnMaxIdleSec int32  `env:"POSTGRES_CONN_MAX_IDLE_SECONDS" envDefault:"30"`
	ConnMaxLifeSec int32  `env:"POSTGRES_CONN_MAX_LIFE_SECONDS" envDefault:"300"`
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string `env:"AUTH_JWT_SECRET" envDefault:"dev-secret"`
	AccessTokenTTLMinutes int    `env:"AUTH_ACCESS_TOKEN_TTL_MINUTES" envDefault:"60"`
	BcryptCost            int    `env:"AUTH_BCRYPT_COST" envDefault:"12"`
	CookieName            string `env:"AUTH_COOKIE_NAME" envDefault:"auth-token"`
	CookieSecure          bool   `env:"AUTH_COOKIE_SECURE" envDefault:"false"`
}

// GuardConfig drives the route guard and page forwarding.
type GuardConfig struct {
	UpstreamURL    string `env:"GUARD_UPSTREAM_URL"`
	AdminLoginPath string `env:"GUARD_ADMIN_LOGIN_PATH" envDefault:"/auth/login"`
	UMKMLoginPath  string `env:"GUARD_UMKM_LOGIN_PATH" envDefault:"/umkm/login"`
}

// RateLimitConfig bounds login and registration attempts per client IP.
type RateLimitConfig struct {
	AuthPerMinute float64       `env:"RATE_LIMIT_AUTH_PER_MINUTE" envDefault:"30"`
	AuthBurst     int           `env:"RATE_LIMIT_AUTH_BURST" envDefault:"10"`
	IdleTTL       time.Duration `env:"RATE_LIMIT_IDLE_TTL" envDefault:"10m"`
}

// BootstrapConfig seeds the first super admin when both values are set.
type BootstrapConfig struct {
	AdminEmail    string `env:"BOOTSTRAP_ADMIN_EMAIL"`
	AdminPassword string `env:"BOOTSTRAP_ADMIN_PASSWORD"`
	AdminName     string `env:"BOOTSTRAP_ADMIN_NAME" envDefault:"Super Admin"`
}

// AuditConfig holds audit sink settings.
type AuditConfig struct {
	Enabled bool `env:"AUDIT_ENABLED" envDefault:"true"`
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate applies guardrails that env tags cannot express.
func (c *Config) Validate() error {
	if c.App.Env == "production" && (c.Auth.JWTSecret == "" || c.Auth.JWTSecret == defaultJWTSecret) {
		return errors.New("AUTH_JWT_SECRET must be set in production")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET is empty")
	}
	if c.Guard.AdminLoginPath == "" || c.Guard.UMKMLoginPath == "" {
		return errors.New("guard login paths must not be empty")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the lifetime of issued access tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	if a.AccessTokenTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// ClientConfig configures the portalctl command line client.
type ClientConfig struct {
	APIURL             string `env:"PORTAL_API_URL" envDefault:"http://localhost:8080/api"`
	StateDir           string `env:"PORTAL_STATE_DIR"`
	HTTPTimeoutSeconds int    `env:"PORTAL_HTTP_TIMEOUT_SECONDS" envDefault:"15"`
	LogLevel           string `env:"PORTAL_LOG_LEVEL" envDefault:"warn"`
}

// LoadClient reads the client configuration. homeDir supplies the default
// state directory when PORTAL_STATE_DIR is unset.
func LoadClient(homeDir string) (*ClientConfig, error) {
	_ = godotenv.Load()

	var cfg ClientConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.StateDir == "" {
		if homeDir == "" {
			return nil, errors.New("PORTAL_STATE_DIR is unset and no home directory is known")
		}
		cfg.StateDir = filepath.Join(homeDir, ".umkm-portal")
	}
	return &cfg, nil
}

// HTTPTimeout returns the Auth API request timeout.
func (c ClientConfig) HTTPTimeout() time.Duration {
	if c.HTTPTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}
