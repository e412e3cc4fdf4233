// Package config provides configuration loading, validation and hot reload.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Rollover RolloverConfig `yaml:"rollover"`
	Notify   NotifyConfig   `yaml:"notify"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Plans    []PlanConfig   `yaml:"plans"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig selects the storage backend.
// Use "memory" for ephemeral single-node runs or "sqlite" for persistence.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "memory" or "sqlite"
	Path   string `yaml:"path"`   // sqlite file path
}

// RolloverConfig configures the background rollover pass.
type RolloverConfig struct {
	Schedule  string        `yaml:"schedule"` // cron spec, e.g. "@every 1m"
	Grace     time.Duration `yaml:"grace"`    // expiry grace window
	BatchSize int           `yaml:"batch_size"`
}

// NotifyConfig configures owner notifications.
// Use "log", "webhook" or "none".
type NotifyConfig struct {
	Mode   string `yaml:"mode"`
	URL    string `yaml:"url,omitempty"`
	Secret string `yaml:"secret,omitempty"`
}

// WebhookConfig configures inbound provider webhook verification.
type WebhookConfig struct {
	Secret string `yaml:"secret,omitempty"` // empty disables signature checks
}

// PlanConfig seeds a plan and its grants into the plan store.
type PlanConfig struct {
	ID          string        `yaml:"id"`
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	PeriodDays  int           `yaml:"period_days,omitempty"`
	IsDefault   bool          `yaml:"is_default,omitempty"`
	Enabled     *bool         `yaml:"enabled,omitempty"` // nil = enabled
	Grants      []GrantConfig `yaml:"grants"`
}

// GrantConfig seeds one feature grant.
type GrantConfig struct {
	Component string `yaml:"component"`
	Enabled   *bool  `yaml:"enabled,omitempty"` // nil = enabled
	Limit     *int64 `yaml:"limit,omitempty"`   // nil = unbounded
	LimitKind string `yaml:"limit_kind,omitempty"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // "json" or "console"
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides lets deployment environments override file settings.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SUBGATE_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SUBGATE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SUBGATE_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("SUBGATE_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SUBGATE_WEBHOOK_SECRET"); v != "" {
		cfg.Webhook.Secret = v
	}
	if v := os.Getenv("SUBGATE_NOTIFY_SECRET"); v != "" {
		cfg.Notify.Secret = v
	}
	if v := os.Getenv("SUBGATE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "subgate.db"
	}
	if cfg.Rollover.Schedule == "" {
		cfg.Rollover.Schedule = "@every 1m"
	}
	if cfg.Rollover.Grace == 0 {
		cfg.Rollover.Grace = 7 * 24 * time.Hour
	}
	if cfg.Rollover.BatchSize == 0 {
		cfg.Rollover.BatchSize = 500
	}
	if cfg.Notify.Mode == "" {
		cfg.Notify.Mode = "log"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

func validate(cfg *Config) error {
	switch cfg.Database.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown database driver: %s", cfg.Database.Driver)
	}

	switch cfg.Notify.Mode {
	case "log", "none":
	case "webhook":
		if cfg.Notify.URL == "" {
			return fmt.Errorf("notify mode webhook requires a url")
		}
	default:
		return fmt.Errorf("unknown notify mode: %s", cfg.Notify.Mode)
	}

	seen := make(map[string]bool)
	for _, p := range cfg.Plans {
		if p.ID == "" {
			return fmt.Errorf("plan without id")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate plan id: %s", p.ID)
		}
		seen[p.ID] = true

		comps := make(map[string]bool)
		for _, g := range p.Grants {
			if g.Component == "" {
				return fmt.Errorf("plan %s: grant without component", p.ID)
			}
			if comps[g.Component] {
				return fmt.Errorf("plan %s: duplicate grant for component %s", p.ID, g.Component)
			}
			comps[g.Component] = true
			if g.Limit != nil && *g.Limit < 0 {
				return fmt.Errorf("plan %s: negative limit for component %s", p.ID, g.Component)
			}
		}
	}
	return nil
}
