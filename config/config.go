package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Feed     FeedConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig holds storage settings. Driver selects PostgreSQL or the embedded SQLite store.
type DatabaseConfig struct {
	Driver     string
	URL        string // if set, used as-is (e.g. postgres://localhost:5432/portal?sslmode=disable)
	Host       string
	Port       string
	User       string
	Password   string
	DBName     string
	SSLMode    string
	MaxConns   int
	SQLitePath string
}

// RedisConfig holds Redis connection settings. Empty Addr disables cross-instance fan-out.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// FeedConfig holds community feed settings.
type FeedConfig struct {
	Limit      int    // messages returned by a full load
	MaxLimit   int    // upper bound for a client-supplied limit
	TimeFormat string // layout of the display time in incremental fetches
	Timezone   string
	PollRPS    float64 // per-user incremental fetch rate
	PollBurst  int
}

// Location resolves Timezone, falling back to UTC.
func (c FeedConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", DriverPostgres),
			URL:        os.Getenv("DATABASE_URL"),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnv("DB_PORT", "5432"),
			User:       getEnv("DB_USER", "postgres"),
			Password:   getEnv("DB_PASSWORD", "postgres"),
			DBName:     getEnv("DB_NAME", "portal"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			MaxConns:   getEnvInt("DB_MAX_CONNS", 0),
			SQLitePath: getEnv("SQLITE_PATH", "portal.db"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		Feed: FeedConfig{
			Limit:      getEnvInt("FEED_LIMIT", 50),
			MaxLimit:   getEnvInt("FEED_MAX_LIMIT", 200),
			TimeFormat: getEnv("FEED_TIME_FORMAT", "15:04"),
			Timezone:   getEnv("FEED_TIMEZONE", "UTC"),
			PollRPS:    getEnvFloat("FEED_POLL_RPS", 2),
			PollBurst:  getEnvInt("FEED_POLL_BURST", 5),
		},
	}

	switch cfg.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}
	if cfg.Feed.Limit <= 0 {
		return nil, fmt.Errorf("FEED_LIMIT must be positive, got %d", cfg.Feed.Limit)
	}
	if cfg.Feed.MaxLimit < cfg.Feed.Limit {
		cfg.Feed.MaxLimit = cfg.Feed.Limit
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
