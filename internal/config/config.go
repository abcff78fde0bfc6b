// Package config provides configuration loading, validation, and defaults
// for the PulseWatch application. Values come from config.yaml, PULSE_*
// environment variables, and built-in defaults, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config defines the application configuration for all PulseWatch components.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Web       WebConfig       `mapstructure:"web"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds the Telegram listener settings. OperatorID is the
// numeric identity of the support account; messages sent by it are recorded
// as outgoing, everything else as incoming.
type TelegramConfig struct {
	Token      string `mapstructure:"token"       validate:"required"`
	OperatorID int64  `mapstructure:"operator_id" validate:"required,gt=0"`
}

// DatabaseConfig holds SQLite connection settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// ChatConfig controls the session lifecycle engine and the noise filter.
type ChatConfig struct {
	// SessionTimeout is the inactivity window after which a chat is
	// considered closed.
	SessionTimeout time.Duration `mapstructure:"session_timeout" validate:"min=1m,max=24h"`

	// Farewells are exact-match (after trimming) outgoing phrases that
	// proactively close a chat.
	Farewells []string `mapstructure:"farewells"`

	// FilterPath is an optional JSON file overriding the built-in noise
	// filter configuration. Saved back on runtime updates.
	FilterPath string `mapstructure:"filter_path"`
}

// WebConfig holds dashboard server settings.
type WebConfig struct {
	Addr         string        `mapstructure:"addr"          validate:"required"`
	Username     string        `mapstructure:"username"      validate:"required"`
	Password     string        `mapstructure:"password"      validate:"required"`
	JWTSecret    string        `mapstructure:"jwt_secret"    validate:"required,min=16"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"   validate:"min=1m"`
	PushInterval time.Duration `mapstructure:"push_interval" validate:"min=1s"`
}

// TaskConfig configures a single scheduled task. Interval-based tasks set
// Interval; cron-based tasks set Schedule (with optional seconds field).
type TaskConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Schedule string        `mapstructure:"schedule"`
	Interval time.Duration `mapstructure:"interval"`
}

// SchedulerConfig maps task names to their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// Load reads configuration from the given path (falling back to ./config.yaml),
// applies defaults and environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		slog.Info("configuration file not found, using defaults and environment")
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.json", DefaultLogJSON)

	v.SetDefault("database.path", DefaultDBPath)

	v.SetDefault("chat.session_timeout", DefaultSessionTimeout)
	v.SetDefault("chat.farewells", DefaultFarewells)

	v.SetDefault("web.addr", DefaultWebAddr)
	v.SetDefault("web.session_ttl", DefaultSessionTTL)
	v.SetDefault("web.push_interval", DefaultPushInterval)

	v.SetDefault("scheduler.tasks", map[string]TaskConfig{
		"stats_broadcast": {Enabled: true, Interval: DefaultPushInterval},
		"sql_maintenance": {Enabled: true, Schedule: DefaultMaintenanceSchedule},
	})
}
