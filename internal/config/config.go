// Package config reads service settings from the environment, loading a
// .env file first when one exists.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"

	devSecret = "dev-secret-change-me"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	HTTPPort string
	Env      string
	LogLevel string

	Catalog

	StoreBackend string
	MongoURI     string
	MongoDBName  string

	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string

	JWTSecret    string
	SessionKey   string
	CookieSecure bool

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Catalog locates the SQLite catalog. shopctl needs only these settings.
type Catalog struct {
	DBPath         string
	MigrationsPath string
}

// LoadCatalog reads the catalog settings the same way Load does, without
// validating the server-only ones.
func LoadCatalog(files ...string) Catalog {
	_ = godotenv.Load(files...)
	return catalogFromEnv()
}

func catalogFromEnv() Catalog {
	return Catalog{
		DBPath:         getEnv("DB_PATH", "./catalog.db"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "./internal/catalog/migrations"),
	}
}

// Load reads the configuration. Files are applied in order and never
// override variables already set in the process environment.
func Load(files ...string) (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load(files...)

	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		Env:             getEnv("APP_ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Catalog:         catalogFromEnv(),
		StoreBackend:    getEnv("STORE_BACKEND", BackendMongo),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:     getEnv("MONGO_DB_NAME", "storefront"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:    splitList(getEnv("KAFKA_BROKERS", "")),
		JWTSecret:       getEnv("JWT_SECRET", devSecret),
		SessionKey:      getEnv("SESSION_KEY", devSecret),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}

	var err error
	if cfg.CookieSecure, err = getBool("COOKIE_SECURE", false); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendMongo, BackendMemory:
	default:
		return fmt.Errorf("%w: STORE_BACKEND must be %q or %q, got %q", ErrInvalidConfig, BackendMongo, BackendMemory, c.StoreBackend)
	}
	if c.IsProduction() {
		if c.JWTSecret == devSecret || c.SessionKey == devSecret {
			return fmt.Errorf("%w: JWT_SECRET and SESSION_KEY must be set in production", ErrInvalidConfig)
		}
		if len(c.SessionKey) < 32 {
			return fmt.Errorf("%w: SESSION_KEY must be at least 32 bytes", ErrInvalidConfig)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive duration, got %q", ErrInvalidConfig, key, raw)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
