// Package config provides configuration management for fleetsim.
// It uses Viper to load settings from an optional config file and
// environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/vesaa/fleetsim/internal/store"
)

// Config holds all runtime configuration for fleetsim.
type Config struct {
	// ── Server ───────────────────────────────────────────────────────────────
	ServerHost string `mapstructure:"server_host"`
	Port       int    `mapstructure:"port"`

	// ── Store ────────────────────────────────────────────────────────────────
	// SeedPath is the read-only fixture, relative to the working directory.
	SeedPath string `mapstructure:"seed_path"`
	// TempDir holds the working copy; falls back to the working directory
	// when it does not exist.
	TempDir     string `mapstructure:"temp_dir"`
	WorkingFile string `mapstructure:"working_file"`
	StoreDriver string `mapstructure:"store_driver"` // file | sqlite | memory
	SQLitePath  string `mapstructure:"sqlite_path"`
	// AcceptBareArray tolerates documents that are a bare [...] instead of
	// {"services": [...]}. Writes always use the wrapped shape.
	AcceptBareArray bool `mapstructure:"accept_bare_array"`

	// ── Simulator ────────────────────────────────────────────────────────────
	TickInterval  time.Duration `mapstructure:"tick_interval"`
	IdleThreshold time.Duration `mapstructure:"idle_threshold"`

	// ── Admin API ────────────────────────────────────────────────────────────
	// JWTSecret: HS256 signing key for admin tokens. Change this in production.
	JWTSecret string `mapstructure:"jwt_secret"`
	AdminUser string `mapstructure:"admin_user"`
	AdminPass string `mapstructure:"admin_pass"`

	// ── Observability ────────────────────────────────────────────────────────
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	LogLevel       string `mapstructure:"log_level"`
	LogFile        string `mapstructure:"log_file"`
	LogMaxSizeMB   int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups  int    `mapstructure:"log_max_backups"`
	LogMaxAgeDays  int    `mapstructure:"log_max_age_days"`
}

// Load reads config from file (./config.yaml or ~/.fleetsim/config.yaml)
// and falls back to defaults. Environment variables with prefix FLEETSIM_
// override file values; PORT and TEMP are honoured as well.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("port", 8080)

	v.SetDefault("seed_path", "db.json")
	v.SetDefault("temp_dir", os.TempDir())
	v.SetDefault("working_file", "db.runtime.json")
	v.SetDefault("store_driver", "file")
	v.SetDefault("sqlite_path", "fleetsim.db")
	v.SetDefault("accept_bare_array", true)

	v.SetDefault("tick_interval", 10*time.Second)
	v.SetDefault("idle_threshold", 15*time.Minute)

	v.SetDefault("jwt_secret", "fs-Kq8#vT2@mZ5!pL9^wR3&nY7") // placeholder
	v.SetDefault("admin_user", "admin")
	v.SetDefault("admin_pass", "admin")

	v.SetDefault("metrics_enabled", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size_mb", 10)
	v.SetDefault("log_max_backups", 3)
	v.SetDefault("log_max_age_days", 7)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.fleetsim")
	if err := v.ReadInConfig(); err != nil {
		// config file is optional; ignore "not found" errors
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("FLEETSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// Plain PORT / TEMP for PaaS-style deployments.
	_ = v.BindEnv("port", "FLEETSIM_PORT", "PORT")
	_ = v.BindEnv("temp_dir", "FLEETSIM_TEMP_DIR", "TEMP")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %s", c.TickInterval)
	}
	if c.IdleThreshold <= 0 {
		return fmt.Errorf("idle_threshold must be positive, got %s", c.IdleThreshold)
	}
	switch c.StoreDriver {
	case "file", "sqlite", "memory":
	default:
		return fmt.Errorf("unsupported store_driver %q (use 'file', 'sqlite' or 'memory')", c.StoreDriver)
	}
	if c.SeedPath == "" {
		return fmt.Errorf("seed_path is required")
	}
	return nil
}

// WorkingPath resolves where the file driver keeps the working document.
func (c *Config) WorkingPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return store.ResolveWorkingPath(c.TempDir, cwd, c.WorkingFile)
}

// StoreOptions maps the config onto store.Options.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Driver:          c.StoreDriver,
		WorkingPath:     c.WorkingPath(),
		SQLitePath:      c.SQLitePath,
		SeedPath:        c.SeedPath,
		AcceptBareArray: c.AcceptBareArray,
	}
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.Port)
}
