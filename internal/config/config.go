// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all process configuration. Per-user mirror settings live in the store.
type Config struct {
	LogLevel            string        `mapstructure:"LOG_LEVEL"`
	DBURL               string        `mapstructure:"DB_URL"`
	StoreDriver         string        `mapstructure:"STORE_DRIVER"`
	HTTPAddr            string        `mapstructure:"HTTP_ADDR"`
	SchedulerTick       time.Duration `mapstructure:"SCHEDULER_TICK"`
	ScheduleAutoStart   bool          `mapstructure:"SCHEDULE_AUTO_START"`
	DefaultSyncInterval time.Duration `mapstructure:"DEFAULT_SYNC_INTERVAL"`
	RecoveryStaleAfter  time.Duration `mapstructure:"RECOVERY_STALE_AFTER"`
	MirrorConcurrency   int           `mapstructure:"MIRROR_CONCURRENCY"`
	OrgConcurrency      int           `mapstructure:"ORG_MIRROR_CONCURRENCY"`
	MaxRetries          int           `mapstructure:"MAX_RETRIES"`
	RetryDelay          time.Duration `mapstructure:"RETRY_DELAY"`
	RateLimitMaxBackoff time.Duration `mapstructure:"RATE_LIMIT_MAX_BACKOFF"`
	GithubAPIURL        string        `mapstructure:"GITHUB_API_URL"`
}

// LoadConfig reads configuration from an optional .env file and the environment.
func LoadConfig() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_URL", "")
	v.SetDefault("STORE_DRIVER", DriverPostgres)
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("SCHEDULER_TICK", "60s")
	v.SetDefault("SCHEDULE_AUTO_START", false)
	v.SetDefault("DEFAULT_SYNC_INTERVAL", "1h")
	v.SetDefault("RECOVERY_STALE_AFTER", "10m")
	v.SetDefault("MIRROR_CONCURRENCY", 3)
	v.SetDefault("ORG_MIRROR_CONCURRENCY", 3)
	v.SetDefault("MAX_RETRIES", 2)
	v.SetDefault("RETRY_DELAY", "2s")
	v.SetDefault("RATE_LIMIT_MAX_BACKOFF", "60s")
	v.SetDefault("GITHUB_API_URL", "")

	// Load from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and ranges.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DBURL == "" {
			return errors.New("DB_URL is a required configuration field for the postgres store")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.StoreDriver)
	}
	if c.SchedulerTick <= 0 {
		return errors.New("SCHEDULER_TICK must be positive")
	}
	if c.MirrorConcurrency < 1 || c.OrgConcurrency < 1 {
		return errors.New("MIRROR_CONCURRENCY and ORG_MIRROR_CONCURRENCY must be at least 1")
	}
	if c.MaxRetries < 0 {
		return errors.New("MAX_RETRIES must not be negative")
	}
	return nil
}
