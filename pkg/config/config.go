package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/aryan0dhankhar/productcatalog/pkg/database"
)

// Store drivers accepted in STORE_DRIVER
const (
	StorePostgres = database.DriverPostgres
	StoreSQLite   = database.DriverSQLite
	StoreMemory   = "memory"
)

const devJWTSecret = "dev-secret-change-me"

// Config holds the application configuration
type Config struct {
	Environment        string   `env:"ENVIRONMENT" envDefault:"development"`
	ServerPort         int      `env:"SERVER_PORT" envDefault:"4000"`
	LogLevel           string   `env:"LOG_LEVEL" envDefault:"info"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:3000"`
	// TrustedProxies are addresses or CIDR ranges whose X-Forwarded-For
	// headers are believed. Empty means client addresses come from the peer.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	StoreDriver       string        `env:"STORE_DRIVER" envDefault:"sqlite"`
	DatabaseURL       string        `env:"DATABASE_URL"`
	SQLitePath        string        `env:"SQLITE_PATH" envDefault:"productcatalog.db"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`

	// RedisURL is optional. Without it caches, rate limits and the
	// invalidation feed stay local to one instance.
	RedisURL string `env:"REDIS_URL"`

	JWTSecret string        `env:"JWT_SECRET"`
	JWTIssuer string        `env:"JWT_ISSUER" envDefault:"productcatalog"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`

	AWSRegion          string `env:"AWS_REGION" envDefault:"eu-north-1"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Bucket           string `env:"S3_BUCKET_NAME"`
	S3Endpoint         string `env:"S3_ENDPOINT"`

	UploadMaxBytes int64         `env:"UPLOAD_MAX_BYTES" envDefault:"5242880"`
	LoginRateLimit int           `env:"LOGIN_RATE_LIMIT" envDefault:"10"`
	APIRateLimit   int           `env:"API_RATE_LIMIT" envDefault:"300"`
	StatsInterval  time.Duration `env:"STATS_INTERVAL" envDefault:"1m"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// Both set creates this admin at startup unless the email is taken.
	BootstrapAdminEmail    string `env:"BOOTSTRAP_ADMIN_EMAIL"`
	BootstrapAdminPassword string `env:"BOOTSTRAP_ADMIN_PASSWORD"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.JWTSecret == "" && !cfg.IsProduction() {
		cfg.JWTSecret = devJWTSecret
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) validate() error {
	var errs []error

	switch c.StoreDriver {
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE_DRIVER=postgres"))
		}
	case StoreSQLite, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid SERVER_PORT %d", c.ServerPort))
	}
	if c.UploadMaxBytes <= 0 {
		errs = append(errs, errors.New("UPLOAD_MAX_BYTES must be positive"))
	}
	if c.LoginRateLimit <= 0 {
		errs = append(errs, errors.New("LOGIN_RATE_LIMIT must be positive"))
	}
	if c.APIRateLimit <= 0 {
		errs = append(errs, errors.New("API_RATE_LIMIT must be positive"))
	}
	if c.JWTExpiry <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRY must be positive"))
	}
	if c.StatsInterval <= 0 {
		errs = append(errs, errors.New("STATS_INTERVAL must be positive"))
	}
	if c.IsProduction() && (c.JWTSecret == "" || c.JWTSecret == devJWTSecret) {
		errs = append(errs, errors.New("JWT_SECRET is required in production"))
	}

	return errors.Join(errs...)
}

// Database returns the connection settings for the SQL stores
func (c *Config) Database() *database.Config {
	return &database.Config{
		Driver:          c.StoreDriver,
		URL:             c.DatabaseURL,
		SQLitePath:      c.SQLitePath,
		MaxOpenConns:    c.DBMaxOpenConns,
		MaxIdleConns:    c.DBMaxIdleConns,
		ConnMaxLifetime: c.DBConnMaxLifetime,
	}
}
