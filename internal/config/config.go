// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"` // empty disables the metrics cache
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // snapshot TTL for cached metrics
}

type AdminConfig struct {
	Port          int           `yaml:"port"`
	APIKey        string        `yaml:"api_key"` // shared secret exchanged for a session JWT
	JWTSecret     string        `yaml:"jwt_secret"`
	SecureCookies bool          `yaml:"secure_cookies"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
}

type ProviderConfig struct {
	Name      string `yaml:"name"` // razorpay-compatible refund API; "noop" for dev
	KeyID     string `yaml:"key_id"`
	KeySecret string `yaml:"key_secret"`
	BaseURL   string `yaml:"base_url"`
}

type NotifyConfig struct {
	WebhookURL string        `yaml:"webhook_url"` // empty disables dispatching
	Timeout    time.Duration `yaml:"timeout"`
}

type SchedulerConfig struct {
	ExpirationInterval   time.Duration `yaml:"expiration_interval"`   // default 12h
	GraceInterval        time.Duration `yaml:"grace_interval"`        // default 24h
	NotificationInterval time.Duration `yaml:"notification_interval"` // default 24h
	StartupDelay         time.Duration `yaml:"startup_delay"`         // avoid running everything at boot
	NotificationOffset   time.Duration `yaml:"notification_offset"`   // keeps the notify tick away from the other two
	GracePeriod          time.Duration `yaml:"grace_period"`          // ACTIVE -> GRACE_PERIOD window length
	WarnWindow           time.Duration `yaml:"warn_window"`           // expiry warning window
	BatchLimit           int           `yaml:"batch_limit"`
	ShutdownGrace        time.Duration `yaml:"shutdown_grace"`
	Workers              int           `yaml:"workers"` // background pool size
}

type MetricsConfig struct {
	RefundSeriesMonths int `yaml:"refund_series_months"` // zero-filled series length
	ExportLimit        int `yaml:"export_limit"`         // hard cap for CSV export
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Admin     AdminConfig     `yaml:"admin"`
	Provider  ProviderConfig  `yaml:"provider"`
	Notify    NotifyConfig    `yaml:"notify"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Metrics   MetricsConfig   `yaml:"metrics"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL, 5*time.Minute)
	if cfg.Admin.Port <= 0 {
		cfg.Admin.Port = 8080
	}
	cfg.Admin.SessionTTL = normalizeTTL(cfg.Admin.SessionTTL, 30*time.Minute)
	if cfg.Provider.Name == "" {
		cfg.Provider.Name = "noop"
	}
	cfg.Notify.Timeout = normalizeTTL(cfg.Notify.Timeout, 10*time.Second)

	s := &cfg.Scheduler
	s.ExpirationInterval = normalizeTTL(s.ExpirationInterval, 12*time.Hour)
	s.GraceInterval = normalizeTTL(s.GraceInterval, 24*time.Hour)
	s.NotificationInterval = normalizeTTL(s.NotificationInterval, 24*time.Hour)
	s.StartupDelay = normalizeTTL(s.StartupDelay, time.Minute)
	s.NotificationOffset = normalizeTTL(s.NotificationOffset, 30*time.Minute)
	s.GracePeriod = normalizeTTL(s.GracePeriod, 72*time.Hour)
	s.WarnWindow = normalizeTTL(s.WarnWindow, 72*time.Hour)
	if s.BatchLimit <= 0 {
		s.BatchLimit = 500
	}
	s.ShutdownGrace = normalizeTTL(s.ShutdownGrace, 30*time.Second)
	if s.Workers <= 0 {
		s.Workers = 4
	}

	if cfg.Metrics.RefundSeriesMonths <= 0 {
		cfg.Metrics.RefundSeriesMonths = 6
	}
	if cfg.Metrics.ExportLimit <= 0 {
		cfg.Metrics.ExportLimit = 10000
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Admin.APIKey == "" {
		return nil, errors.New("admin.api_key is required")
	}
	if cfg.Admin.JWTSecret == "" {
		return nil, errors.New("admin.jwt_secret is required")
	}
	if cfg.Provider.Name != "noop" && (cfg.Provider.KeyID == "" || cfg.Provider.KeySecret == "") {
		return nil, errors.New("provider.key_id and provider.key_secret are required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
