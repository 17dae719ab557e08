package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything both binaries read from the environment
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	OpsToken string `env:"OPS_TOKEN" envDefault:"dev-token"`

	DBConnStr  string `env:"DB_CONN_STR"`
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName     string `env:"DB_NAME" envDefault:"gigswap"`

	GatewayBaseURL    string        `env:"GATEWAY_BASE_URL" envDefault:"http://localhost:9090"`
	GatewayAPIKey     string        `env:"GATEWAY_API_KEY" envDefault:""`
	GatewayTimeout    time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"10s"`
	GatewayMaxRetries int           `env:"GATEWAY_MAX_RETRIES" envDefault:"2"`
	GatewayRateLimit  float64       `env:"GATEWAY_RATE_LIMIT" envDefault:"25"`
	UseFakeGateway    bool          `env:"USE_FAKE_GATEWAY" envDefault:"false"`

	FeePercent    float64       `env:"FEE_PERCENT" envDefault:"5"`
	Currency      string        `env:"CURRENCY" envDefault:"usd"`
	ReleaseWindow time.Duration `env:"RELEASE_WINDOW" envDefault:"48h"`

	SchedulerInterval   time.Duration `env:"SCHEDULER_INTERVAL" envDefault:"1h"`
	SchedulerRunAtStart bool          `env:"SCHEDULER_RUN_AT_START" envDefault:"true"`

	NotifyWindow time.Duration `env:"NOTIFY_WINDOW" envDefault:"5m"`
	NotifyLimit  int           `env:"NOTIFY_LIMIT" envDefault:"3"`
}

// Load parses configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// DSN returns the postgres connection string, assembled from the individual
// variables unless DB_CONN_STR overrides it
func (c *Config) DSN() string {
	if c.DBConnStr != "" {
		return c.DBConnStr
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}
