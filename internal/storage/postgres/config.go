package postgres

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds PostgreSQL connection configuration, grounded on the
// teacher's internal/infrastructure/database/postgres/config.go.
type Config struct {
	Host              string
	Port              int
	Database          string
	User              string
	Password          string
	SSLMode           string
	MaxOpenConns      int
	MaxIdleConns      int
	ConnMaxLifetime   time.Duration
	ConnMaxIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// NewConfigFromEnv builds a Config from environment variables.
func NewConfigFromEnv() *Config {
	return &Config{
		Host:              getEnv("LEDGER_DB_HOST", "localhost"),
		Port:              getEnvAsInt("LEDGER_DB_PORT", 5432),
		Database:          getEnv("LEDGER_DB_NAME", "ledger"),
		User:              getEnv("LEDGER_DB_USER", "ledger"),
		Password:          getEnv("LEDGER_DB_PASSWORD", "ledger"),
		SSLMode:           getEnv("LEDGER_DB_SSLMODE", "disable"),
		MaxOpenConns:      getEnvAsInt("LEDGER_DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:      getEnvAsInt("LEDGER_DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime:   getEnvAsDuration("LEDGER_DB_CONN_MAX_LIFETIME", 30*time.Minute),
		ConnMaxIdleTime:   getEnvAsDuration("LEDGER_DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		HealthCheckPeriod: getEnvAsDuration("LEDGER_DB_HEALTH_CHECK_PERIOD", time.Minute),
	}
}

// ConnectionString builds a PostgreSQL connection string.
func (c *Config) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
