// Package config loads the bot configuration from defaults, an optional YAML
// file and BOT_* environment variables, and validates it.
package config

import (
	"time"

	"github.com/edgard/taskbot/internal/resilience"
)

// Config holds all application settings.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"log"`
	Discord   DiscordConfig   `mapstructure:"discord"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

type DiscordConfig struct {
	Token string `mapstructure:"token" validate:"required"`
	// GuildID registers commands for one guild instead of globally.
	GuildID string `mapstructure:"guild_id" validate:"omitempty,numeric"`
	// RequestTimeout bounds a single REST call.
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"min=1s"`
	// BreakerFailures is the number of consecutive failed calls that opens
	// the circuit breaker.
	BreakerFailures int `mapstructure:"breaker_failures" validate:"min=1"`
}

type StorageConfig struct {
	DBPath string `mapstructure:"db_path" validate:"required"`
	// Key names the blob holding the whole state.
	Key string `mapstructure:"key" validate:"required"`
	// LegacyFile is a data.json imported when the database holds no state.
	LegacyFile string `mapstructure:"legacy_file"`
}

type ScheduleConfig struct {
	Timezone string `mapstructure:"timezone" validate:"required"`
}

// Location resolves the configured timezone.
func (c ScheduleConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

type SchedulerConfig struct {
	Tasks map[string]TaskConfig  `mapstructure:"tasks" validate:"dive"`
	Retry resilience.RetryConfig `mapstructure:"retry"`
}

type TaskConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Schedule is a cron expression with a leading seconds field.
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

type MetricsConfig struct {
	// Addr serves /metrics when set, e.g. ":9090".
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port"`
}
