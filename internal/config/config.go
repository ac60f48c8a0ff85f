// Package config reads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	DBDriver    string `env:"DB_DRIVER" envDefault:"postgres"`
	PostgresURL string `env:"POSTGRES_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"paygate.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	JWTSecret       string `env:"JWT_SECRET"`
	TelegramAPIBase string `env:"TELEGRAM_API_BASE" envDefault:"https://api.telegram.org"`
	Timezone        string `env:"APP_TIMEZONE" envDefault:"America/Sao_Paulo"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	AlertInterval     time.Duration `env:"ALERT_INTERVAL" envDefault:"1m"`
	DownsellInterval  time.Duration `env:"DOWNSELL_INTERVAL" envDefault:"1m"`
	DownsellBatchSize int           `env:"DOWNSELL_BATCH_SIZE" envDefault:"200"`

	Dispatch DispatchConfig
}

// DispatchConfig sizes the job dispatcher and its retry policy.
type DispatchConfig struct {
	Workers        int           `env:"DISPATCH_WORKERS" envDefault:"8"`
	QueueSize      int           `env:"DISPATCH_QUEUE_SIZE" envDefault:"1024"`
	MaxAttempts    int           `env:"DISPATCH_MAX_ATTEMPTS" envDefault:"3"`
	AttemptTimeout time.Duration `env:"DISPATCH_ATTEMPT_TIMEOUT" envDefault:"60s"`
	RetryBackoff   time.Duration `env:"DISPATCH_RETRY_BACKOFF" envDefault:"2s"`
	RetryMaxDelay  time.Duration `env:"DISPATCH_RETRY_MAX_DELAY" envDefault:"30s"`
	Consumer       string        `env:"DISPATCH_CONSUMER" envDefault:"paygate-dispatcher"`
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres:
		if c.PostgresURL == "" {
			return errors.New("POSTGRES_URL is required when DB_DRIVER=postgres")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required when DB_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.AlertInterval <= 0 || c.DownsellInterval <= 0 {
		return errors.New("scheduler intervals must be positive")
	}
	if c.Dispatch.MaxAttempts <= 0 {
		return errors.New("DISPATCH_MAX_ATTEMPTS must be positive")
	}
	return nil
}
