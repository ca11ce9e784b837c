// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tymekw/kotori-notify/internal/archive"
	"github.com/tymekw/kotori-notify/internal/mail"
	"github.com/tymekw/kotori-notify/internal/storage"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	Storage  storage.Config `mapstructure:"storage"`
	SMTP     mail.Config    `mapstructure:"smtp"`
	Publish  PublishConfig  `mapstructure:"publish"`
	Archive  archive.Config `mapstructure:"archive"`
	Server   ServerConfig   `mapstructure:"server"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SourceConfig describes the watched page.
type SourceConfig struct {
	URL            string   `mapstructure:"url"`
	Titles         []string `mapstructure:"titles"`
	UserAgent      string   `mapstructure:"user_agent"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
}

// Timeout returns the fetch timeout as a duration.
func (s SourceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// PublishConfig holds the optional change-event topic.
type PublishConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Enabled reports whether change-event publishing is configured.
func (p PublishConfig) Enabled() bool {
	return p.ProjectID != "" && p.Topic != ""
}

// ServerConfig controls the serve-mode HTTP listener.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// ScheduleConfig defines when serve mode triggers runs.
type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("KOTORI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.url", "https://kotori.pl/zapowiedzi/")
	v.SetDefault("source.titles", []string{"Overlord"})
	v.SetDefault("source.user_agent", "kotori-notify/1.0")
	v.SetDefault("source.timeout_seconds", 20)
	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.path", "kotori-notify.jsonl")
	v.SetDefault("smtp.port", 465)
	v.SetDefault("archive.driver", "none")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("server.port", 8080)
	v.SetDefault("schedule.cron", "@hourly")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values. Config problems are fatal: a run must
// never start half-wired.
func (c Config) Validate() error {
	if c.Source.URL == "" {
		return fmt.Errorf("source.url is required")
	}
	if len(c.Source.Titles) == 0 {
		return fmt.Errorf("source.titles must list at least one series")
	}
	if c.Source.TimeoutSeconds <= 0 {
		return fmt.Errorf("source.timeout_seconds must be > 0")
	}
	switch strings.ToLower(c.Storage.Driver) {
	case "file":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required when storage.driver is file")
		}
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required when storage.driver is postgres")
		}
	default:
		return fmt.Errorf("storage.driver must be file or postgres")
	}
	if c.SMTP.Host == "" {
		return fmt.Errorf("smtp.host is required")
	}
	if c.SMTP.From == "" {
		return fmt.Errorf("smtp.from is required")
	}
	if c.SMTP.Port <= 0 {
		return fmt.Errorf("smtp.port must be > 0")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Schedule.Cron == "" {
		return fmt.Errorf("schedule.cron is required")
	}
	return nil
}
