package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultDatabaseURL = "file:championships.db?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
	DefaultSweepCron   = "*/5 * * * *"
)

type Config struct {
	DBDriver    string
	DatabaseURL string
	ServerPort  int
	LogLevel    slog.Level

	SweepEnabled bool
	SweepCron    string

	CORSOrigins []string
}

// Load reads the configuration from the environment, after loading a .env file if there is one.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() (*Config, error) {
	driver := firstNonEmpty(os.Getenv("DB_DRIVER"), "sqlite3")
	if driver != "sqlite3" && driver != "postgres" {
		return nil, fmt.Errorf("DB_DRIVER must be sqlite3 or postgres, got %q", driver)
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		if driver == "postgres" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
		}
		dbURL = DefaultDatabaseURL
	}

	port, err := strconv.Atoi(firstNonEmpty(os.Getenv("SERVER_PORT"), "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(firstNonEmpty(os.Getenv("LOG_LEVEL"), "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL environment variable: %w", err)
	}

	sweepEnabled := true
	if v := os.Getenv("SWEEP_ENABLED"); v != "" {
		sweepEnabled, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SWEEP_ENABLED environment variable: %w", err)
		}
	}

	return &Config{
		DBDriver:     driver,
		DatabaseURL:  dbURL,
		ServerPort:   port,
		LogLevel:     level,
		SweepEnabled: sweepEnabled,
		SweepCron:    firstNonEmpty(os.Getenv("SWEEP_CRON"), DefaultSweepCron),
		CORSOrigins:  splitList(firstNonEmpty(os.Getenv("CORS_ORIGINS"), "*")),
	}, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
