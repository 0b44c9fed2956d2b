package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrConfiguration wraps every load and validation failure.
var ErrConfiguration = errors.New("configuration error")

// LoadConfig reads defaults, then path when it exists, then BOT_* environment
// variables (BOT_DISCORD_TOKEN for discord.token, and so on). The token may
// also come from DISCORD_TOKEN.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("discord.token", "BOT_DISCORD_TOKEN", "DISCORD_TOKEN"); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: failed to read %s: %w", ErrConfiguration, path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %w", ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if _, err := c.Schedule.Location(); err != nil {
		return fmt.Errorf("%w: schedule.timezone: %w", ErrConfiguration, err)
	}
	return nil
}
