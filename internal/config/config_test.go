package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.ListenAddr != ":8080" {
		t.Errorf("Expected default listen addr :8080, got %s", cfg.ListenAddr)
	}
	if cfg.DatabasePath != "lendcore.db" {
		t.Errorf("Expected default database path lendcore.db, got %s", cfg.DatabasePath)
	}
	if cfg.ArrearsSchedule != "0 1 * * *" {
		t.Errorf("Expected default arrears schedule, got %s", cfg.ArrearsSchedule)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level info, got %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("Expected default log format json, got %s", cfg.LogFormat)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	viper.Reset()

	t.Setenv("LENDCORE_LISTEN_ADDR", ":9090")
	t.Setenv("LENDCORE_DATABASE_PATH", "/tmp/test.db")
	t.Setenv("LENDCORE_ARREARS_SCHEDULE", "@hourly")
	t.Setenv("LENDCORE_LOG_LEVEL", "debug")
	t.Setenv("LENDCORE_LOG_FORMAT", "console")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.ListenAddr != ":9090" {
		t.Errorf("Expected listen addr :9090, got %s", cfg.ListenAddr)
	}
	if cfg.DatabasePath != "/tmp/test.db" {
		t.Errorf("Expected database path /tmp/test.db, got %s", cfg.DatabasePath)
	}
	if cfg.ArrearsSchedule != "@hourly" {
		t.Errorf("Expected arrears schedule @hourly, got %s", cfg.ArrearsSchedule)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "console" {
		t.Errorf("Expected log format console, got %s", cfg.LogFormat)
	}
}
