// Package config loads service settings from environment variables, with
// defaults suitable for local development.
package config

import (
	"github.com/spf13/viper"
)

// Config holds all configuration for the lendcore service.
type Config struct {
	ListenAddr      string `mapstructure:"LISTEN_ADDR"`
	DatabasePath    string `mapstructure:"DATABASE_PATH"`
	ArrearsSchedule string `mapstructure:"ARREARS_SCHEDULE"`
	LogLevel        string `mapstructure:"LOG_LEVEL"`
	LogFormat       string `mapstructure:"LOG_FORMAT"`
}

// Load reads configuration from LENDCORE_-prefixed environment variables.
func Load() (*Config, error) {
	viper.SetDefault("LISTEN_ADDR", ":8080")
	viper.SetDefault("DATABASE_PATH", "lendcore.db")
	viper.SetDefault("ARREARS_SCHEDULE", "0 1 * * *") // At 01:00 every day.
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")

	viper.SetEnvPrefix("LENDCORE")
	viper.AutomaticEnv()

	// Bind explicitly so the variables appear in Unmarshal
	for _, key := range []string{"LISTEN_ADDR", "DATABASE_PATH", "ARREARS_SCHEDULE", "LOG_LEVEL", "LOG_FORMAT"} {
		_ = viper.BindEnv(key)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
