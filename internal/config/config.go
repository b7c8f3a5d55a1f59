package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is loaded from the environment, with a .env file honored when
// present. An empty DatabaseURL selects the in-memory stores; an empty
// QueuePath keeps the offline queue in memory too.
type Config struct {
	ListenAddr string

	DatabaseURL string
	QueuePath   string

	GatewayURL     string
	GatewayAPIKey  string
	GatewayTimeout time.Duration

	PollInterval  time.Duration
	ProbeInterval time.Duration

	KafkaBrokers []string

	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:  getEnv("LISTEN_ADDR", ":8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		QueuePath:   getEnv("OFFLINE_QUEUE_PATH", ""),

		GatewayURL:    getEnv("REPORTING_GATEWAY_URL", ""),
		GatewayAPIKey: getEnv("REPORTING_GATEWAY_API_KEY", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	var err error
	if cfg.GatewayTimeout, err = getDuration("REPORTING_GATEWAY_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = getDuration("REPORT_POLL_INTERVAL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ProbeInterval, err = getDuration("CONNECTIVITY_PROBE_INTERVAL", 15*time.Second); err != nil {
		return nil, err
	}

	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		for _, broker := range strings.Split(brokers, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, broker)
			}
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("REPORT_POLL_INTERVAL must be positive")
	}
	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("REPORTING_GATEWAY_TIMEOUT must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
