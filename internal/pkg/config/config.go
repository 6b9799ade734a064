package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	JWT      JWTConfig
	Lockout  LockoutConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Mail     MailConfig
	HTTP     HTTPConfig
	ResetTTL time.Duration `env:"PASSWORD_RESET_TTL, default=1h"`
}

type JWTConfig struct {
	Secret     string        `env:"JWT_SECRET"`
	Issuer     string        `env:"JWT_ISSUER,      default=medivex-identity"`
	AccessTTL  time.Duration `env:"JWT_ACCESS_TTL,  default=15m"`
	RefreshTTL time.Duration `env:"JWT_REFRESH_TTL, default=168h"`
}

type LockoutConfig struct {
	MaxAttempts int           `env:"LOCKOUT_MAX_ATTEMPTS, default=5"`
	Duration    time.Duration `env:"LOCKOUT_DURATION,     default=30m"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=identity_service"`
}

type RedisConfig struct {
	Addr             string `env:"REDIS_ADDR,            default=localhost:6379"`
	DB               int    `env:"REDIS_DB,              default=0"`
	Password         string `env:"REDIS_PASSWORD"`
	RevocationPrefix string `env:"REVOCATION_KEY_PREFIX, default=blacklist:"`
}

type MailConfig struct {
	Workers int    `env:"MAIL_WORKERS, default=2"`
	From    string `env:"MAIL_FROM,    default=no-reply@medivex.local"`
}

type HTTPConfig struct {
	// AuthRateLimit is requests per second per client IP on public auth routes.
	AuthRateLimit float64 `env:"AUTH_RATE_LIMIT, default=10"`
}

// IsDevelopment reports whether human-readable logs should be used.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration through lookuper and validates it.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.JWT.Secret == "":
		return errors.New("JWT_SECRET is required")
	case c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0:
		return errors.New("token lifetimes must be positive")
	case c.JWT.AccessTTL >= c.JWT.RefreshTTL:
		return errors.New("JWT_ACCESS_TTL must be shorter than JWT_REFRESH_TTL")
	case c.Lockout.MaxAttempts <= 0:
		return errors.New("LOCKOUT_MAX_ATTEMPTS must be positive")
	case c.Redis.RevocationPrefix == "":
		return errors.New("REVOCATION_KEY_PREFIX must not be empty")
	}
	return nil
}
