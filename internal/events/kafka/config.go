package kafka

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

// Config holds Kafka producer configuration, grounded on the teacher's
// internal/infrastructure/messaging/kafka/config.go.
type Config struct {
	Brokers           []string
	ClientID          string
	EnableIdempotence bool
	CompressionType   string
	RequiredAcks      string
	MaxRetries        int
	RetryBackoff      time.Duration
}

// NewConfigFromEnv builds a Config from environment variables.
func NewConfigFromEnv() *Config {
	brokers := strings.Split(getEnv("LEDGER_KAFKA_BROKERS", "localhost:9092"), ",")
	return &Config{
		Brokers:           brokers,
		ClientID:          getEnv("LEDGER_KAFKA_CLIENT_ID", "ledger-engine"),
		EnableIdempotence: getEnvBool("LEDGER_KAFKA_ENABLE_IDEMPOTENCE", false),
		CompressionType:   getEnv("LEDGER_KAFKA_COMPRESSION", "snappy"),
		RequiredAcks:      getEnv("LEDGER_KAFKA_REQUIRED_ACKS", "all"),
		MaxRetries:        getEnvInt("LEDGER_KAFKA_MAX_RETRIES", 5),
		RetryBackoff:      getEnvDuration("LEDGER_KAFKA_RETRY_BACKOFF", 100*time.Millisecond),
	}
}

// ToSaramaConfig converts Config into a sarama.Config.
func (c *Config) ToSaramaConfig() (*sarama.Config, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.Idempotent = c.EnableIdempotence
	cfg.Producer.Retry.Max = c.MaxRetries
	cfg.Producer.Retry.Backoff = c.RetryBackoff

	if c.EnableIdempotence {
		cfg.Net.MaxOpenRequests = 1
	} else {
		cfg.Net.MaxOpenRequests = 5
	}

	switch c.RequiredAcks {
	case "all", "-1":
		cfg.Producer.RequiredAcks = sarama.WaitForAll
	case "1":
		cfg.Producer.RequiredAcks = sarama.WaitForLocal
	case "0":
		cfg.Producer.RequiredAcks = sarama.NoResponse
	default:
		return nil, fmt.Errorf("invalid required acks value: %s", c.RequiredAcks)
	}

	switch c.CompressionType {
	case "none":
		cfg.Producer.Compression = sarama.CompressionNone
	case "gzip":
		cfg.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
	default:
		return nil, fmt.Errorf("invalid compression type: %s", c.CompressionType)
	}

	cfg.ClientID = c.ClientID
	cfg.Version = sarama.V3_0_0_0
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
