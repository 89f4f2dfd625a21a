// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// Env is the application environment ("development", "production", "test").
	Env string `mapstructure:"APP_ENV"`
	// HTTPAddr is the address the REST API listens on (e.g. :3000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address of the gRPC health server; empty disables it.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// APIBasePath prefixes every REST route (e.g. /api/v1).
	APIBasePath string `mapstructure:"API_BASE_PATH"`
	// LogLevel is the zap level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// StoreDriver selects the persistence backend: postgres or memory.
	StoreDriver string `mapstructure:"STORE_DRIVER"`
	// DatabaseURL is the Postgres DSN; required when StoreDriver is postgres.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// JWTSecret is the HS256 signing secret. Ignored when a key pair is configured.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "24h").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// SessionTTLRaw is the lifetime of a session row, independent of the access token TTL.
	SessionTTLRaw string `mapstructure:"SESSION_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// PasswordMinLength is the minimum accepted length for new passwords.
	PasswordMinLength int `mapstructure:"PASSWORD_MIN_LENGTH"`

	// RedisURL enables the shared rate limiter (e.g. redis://localhost:6379/0). Empty uses an in-process limiter.
	RedisURL             string `mapstructure:"REDIS_URL"`
	RateLimitWindowRaw   string `mapstructure:"RATE_LIMIT_WINDOW"`
	RateLimitMax         int    `mapstructure:"RATE_LIMIT_MAX"`
	LoginRateLimitWindow string `mapstructure:"LOGIN_RATE_LIMIT_WINDOW"`
	LoginRateLimitMax    int    `mapstructure:"LOGIN_RATE_LIMIT_MAX"`

	// SessionSweepIntervalRaw is how often the worker expires stale sessions.
	SessionSweepIntervalRaw string `mapstructure:"SESSION_SWEEP_INTERVAL"`

	// ActivityKafkaBrokers is a comma-separated list of Kafka brokers; when set, activity entries are also published.
	ActivityKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// ActivityKafkaTopic is the Kafka topic for activity entries.
	ActivityKafkaTopic string `mapstructure:"KAFKA_ACTIVITY_TOPIC"`
	// KafkaGroupID is the consumer group ID for the worker's Loki forwarder.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL is the Loki base URL for the worker (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`

	// OTLPEndpoint enables OpenTelemetry export when set (e.g. localhost:4317).
	OTLPEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure    bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Seed-only: initial administrator account.
	SeedAdminCode     string `mapstructure:"SEED_ADMIN_CODE"`
	SeedAdminName     string `mapstructure:"SEED_ADMIN_NAME"`
	SeedAdminEmail    string `mapstructure:"SEED_ADMIN_EMAIL"`
	SeedAdminPassword string `mapstructure:"SEED_ADMIN_PASSWORD"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", ":3000")
	v.SetDefault("GRPC_ADDR", "")
	v.SetDefault("API_BASE_PATH", "/api/v1")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "CHANCAFE-Q")
	v.SetDefault("JWT_AUDIENCE", "chancafe-app")
	v.SetDefault("JWT_ACCESS_TTL", "24h")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("PASSWORD_MIN_LENGTH", 6)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("RATE_LIMIT_WINDOW", "15m")
	v.SetDefault("RATE_LIMIT_MAX", 100)
	v.SetDefault("LOGIN_RATE_LIMIT_WINDOW", "15m")
	v.SetDefault("LOGIN_RATE_LIMIT_MAX", 5)
	v.SetDefault("SESSION_SWEEP_INTERVAL", "1h")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_ACTIVITY_TOPIC", "chancafe.activity")
	v.SetDefault("KAFKA_GROUP_ID", "chancafe-activity-worker")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", true)
	v.SetDefault("OTEL_SERVICE_NAME", "chancafe-q-backend")
	v.SetDefault("SEED_ADMIN_CODE", "ADMIN001")
	v.SetDefault("SEED_ADMIN_NAME", "Administrador")
	v.SetDefault("SEED_ADMIN_EMAIL", "admin@chancafe.com")
	v.SetDefault("SEED_ADMIN_PASSWORD", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL must be set when STORE_DRIVER=postgres")
		}
	case StoreDriverMemory:
		if c.IsProduction() {
			return errors.New("config: STORE_DRIVER=memory must not be used when APP_ENV=production")
		}
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.JWTSecret == "" && (c.JWTPrivateKey == "" || c.JWTPublicKey == "") {
		return errors.New("config: JWT_SECRET or JWT_PRIVATE_KEY/JWT_PUBLIC_KEY must be set")
	}
	if c.JWTIssuer == "" || c.JWTAudience == "" {
		return errors.New("config: JWT_ISSUER and JWT_AUDIENCE must be set")
	}
	for name, raw := range map[string]string{
		"JWT_ACCESS_TTL":          c.JWTAccessTTL,
		"JWT_REFRESH_TTL":         c.JWTRefreshTTL,
		"SESSION_TTL":             c.SessionTTLRaw,
		"RATE_LIMIT_WINDOW":       c.RateLimitWindowRaw,
		"LOGIN_RATE_LIMIT_WINDOW": c.LoginRateLimitWindow,
		"SESSION_SWEEP_INTERVAL":  c.SessionSweepIntervalRaw,
	} {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return fmt.Errorf("config: %s must be a positive duration, got %q", name, raw)
		}
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if c.PasswordMinLength <= 0 {
		c.PasswordMinLength = 6
	}
	if c.RateLimitMax <= 0 || c.LoginRateLimitMax <= 0 {
		return errors.New("config: RATE_LIMIT_MAX and LOGIN_RATE_LIMIT_MAX must be positive")
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c != nil && c.Env == "production"
}

// IsDevelopment reports whether APP_ENV is development.
func (c *Config) IsDevelopment() bool {
	return c != nil && c.Env == "development"
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 24h if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.JWTAccessTTL, 24*time.Hour)
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return parseDuration(c.JWTRefreshTTL, 168*time.Hour)
}

// SessionTTL parses SessionTTLRaw. Returns 24h if unset or invalid.
func (c *Config) SessionTTL() time.Duration {
	return parseDuration(c.SessionTTLRaw, 24*time.Hour)
}

// RateLimitWindow parses RateLimitWindowRaw. Returns 15m if unset or invalid.
func (c *Config) RateLimitWindow() time.Duration {
	return parseDuration(c.RateLimitWindowRaw, 15*time.Minute)
}

// LoginRateLimitWindowDuration parses LoginRateLimitWindow. Returns 15m if unset or invalid.
func (c *Config) LoginRateLimitWindowDuration() time.Duration {
	return parseDuration(c.LoginRateLimitWindow, 15*time.Minute)
}

// SessionSweepInterval parses SessionSweepIntervalRaw. Returns 1h if unset or invalid.
func (c *Config) SessionSweepInterval() time.Duration {
	return parseDuration(c.SessionSweepIntervalRaw, time.Hour)
}

// ActivityKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list disables activity streaming.
func (c *Config) ActivityKafkaBrokersList() []string {
	if c == nil || c.ActivityKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.ActivityKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
