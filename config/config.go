package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Bounds for the days margin preference.
const (
	MinDaysMargin     = 7
	MaxDaysMargin     = 31
	DefaultDaysMargin = 7
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
	Database   DatabaseConfig   `yaml:"database"`
	Sync       SyncConfig       `yaml:"sync"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Log        LogConfig        `yaml:"log"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
// Push delivery is disabled when the keys are empty.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// UpstreamConfig describes the remote schedule provider.
type UpstreamConfig struct {
	ScheduleURL    string            `yaml:"schedule_url"`
	SearchURL      string            `yaml:"search_url"`
	CheckURL       string            `yaml:"check_url"`
	Headers        map[string]string `yaml:"headers"`
	HTTPProxy      string            `yaml:"http_proxy"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	Timeout        time.Duration     `yaml:"-"`
}

// DatabaseConfig holds the database connection configuration.
// An empty DSN selects the in-process key-value store.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogQueries             bool   `yaml:"log_queries"`
}

// SyncConfig holds the schedule synchronization settings.
type SyncConfig struct {
	DaysMargin             int           `yaml:"days_margin"`
	GracePeriodSeconds     int           `yaml:"grace_period_seconds"`
	GracePeriod            time.Duration `yaml:"-"`
	IdentityPollSeconds    int           `yaml:"identity_poll_seconds"`
	IdentityPollInterval   time.Duration `yaml:"-"`
	RecurringSubject       string        `yaml:"recurring_subject"`
	Timezone               string        `yaml:"timezone"`
	SearchCacheSize        int           `yaml:"search_cache_size"`
	ExtensionMarginReserve int           `yaml:"extension_margin_reserve"`
	ControllerIdleMinutes  int           `yaml:"controller_idle_minutes"`
	ControllerIdle         time.Duration `yaml:"-"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := ValidateDaysMargin(cfg.Sync.DaysMargin); err != nil {
		return nil, fmt.Errorf("sync.days_margin: %w", err)
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 60
	}

	if cfg.Upstream.TimeoutSeconds <= 0 {
		cfg.Upstream.TimeoutSeconds = 4
	}
	cfg.Upstream.Timeout = time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second

	if cfg.Sync.DaysMargin == 0 {
		cfg.Sync.DaysMargin = DefaultDaysMargin
	}
	if cfg.Sync.GracePeriodSeconds <= 0 {
		cfg.Sync.GracePeriodSeconds = 5
	}
	cfg.Sync.GracePeriod = time.Duration(cfg.Sync.GracePeriodSeconds) * time.Second
	if cfg.Sync.IdentityPollSeconds <= 0 {
		cfg.Sync.IdentityPollSeconds = 2
	}
	cfg.Sync.IdentityPollInterval = time.Duration(cfg.Sync.IdentityPollSeconds) * time.Second
	if cfg.Sync.RecurringSubject == "" {
		cfg.Sync.RecurringSubject = "Физическая культура и спорт"
	}
	if cfg.Sync.Timezone == "" {
		cfg.Sync.Timezone = "Europe/Moscow"
	}
	if cfg.Sync.SearchCacheSize <= 0 {
		cfg.Sync.SearchCacheSize = 20
	}
	if cfg.Sync.ExtensionMarginReserve <= 0 {
		cfg.Sync.ExtensionMarginReserve = 1
	}
	if cfg.Sync.ControllerIdleMinutes <= 0 {
		cfg.Sync.ControllerIdleMinutes = 30
	}
	cfg.Sync.ControllerIdle = time.Duration(cfg.Sync.ControllerIdleMinutes) * time.Minute

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}
	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

// ErrDaysMarginOutOfRange is returned when a days margin is outside the allowed bounds.
var ErrDaysMarginOutOfRange = fmt.Errorf("days margin must be between %d and %d", MinDaysMargin, MaxDaysMargin)

// ValidateDaysMargin checks the days margin preference bounds.
func ValidateDaysMargin(days int) error {
	if days < MinDaysMargin || days > MaxDaysMargin {
		return ErrDaysMarginOutOfRange
	}
	return nil
}

// Location resolves the configured timezone, falling back to UTC.
func (s SyncConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
