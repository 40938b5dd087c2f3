package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration, sourced from the environment.
type Config struct {
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	HTTPListenAddr string `envconfig:"HTTP_LISTEN_ADDR" default:":8080"`
	PublicBaseURL  string `envconfig:"PUBLIC_BASE_URL" default:""`
	PublicBasePath string `envconfig:"PUBLIC_BASE_PATH" default:""`

	// DatabaseDriver selects the repository backend: "postgres" or "sqlite".
	DatabaseDriver string `envconfig:"DATABASE_DRIVER" default:"postgres"`
	DatabaseURL    string `envconfig:"DATABASE_URL" default:""`
	DatabaseSchema string `envconfig:"DATABASE_SCHEMA" default:""`
	SQLitePath     string `envconfig:"SQLITE_PATH" default:"data/bejofood.db"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisTLS      bool   `envconfig:"REDIS_TLS" default:"false"`

	TelegramBotToken      string        `envconfig:"TELEGRAM_BOT_TOKEN" default:""`
	TelegramWebhookSecret string        `envconfig:"TELEGRAM_WEBHOOK_SECRET" default:""`
	TelegramTimeout       time.Duration `envconfig:"TELEGRAM_TIMEOUT" default:"30s"`

	MidtransBaseURL   string        `envconfig:"MIDTRANS_BASE_URL" default:"https://api.sandbox.midtrans.com"`
	MidtransServerKey string        `envconfig:"MIDTRANS_SERVER_KEY" default:""`
	MidtransAcquirer  string        `envconfig:"MIDTRANS_ACQUIRER" default:"gopay"`
	MidtransTimeout   time.Duration `envconfig:"MIDTRANS_TIMEOUT" default:"15s"`

	OrderPrefix   string        `envconfig:"ORDER_PREFIX" default:"BF"`
	PaymentExpiry time.Duration `envconfig:"PAYMENT_EXPIRY" default:"15m"`
	NotifyTimeout time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"10s"`
	MenuCacheTTL  time.Duration `envconfig:"MENU_CACHE_TTL" default:"5m"`

	MetricsNamespace string `envconfig:"METRICS_NAMESPACE" default:"bejofood"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DatabaseDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if c.MidtransServerKey == "" {
		return fmt.Errorf("MIDTRANS_SERVER_KEY is required")
	}
	return nil
}

// IsProduction reports whether the app runs with production settings.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
