// Package config loads server settings from defaults, an optional YAML file
// and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Address         string
	CatalogPath     string
	DatabasePath    string
	ResultsDelay    time.Duration
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// env maps config keys to their environment variables.
var env = map[string]string{
	"address":          "API_ADDRESS",
	"catalog_path":     "CATALOG_PATH",
	"database_path":    "DATABASE_PATH",
	"results_delay":    "RESULTS_DELAY",
	"log_level":        "LOG_LEVEL",
	"log_format":       "LOG_FORMAT",
	"shutdown_timeout": "SHUTDOWN_TIMEOUT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("address", ":8080")
	v.SetDefault("catalog_path", "")
	v.SetDefault("database_path", ":memory:")
	v.SetDefault("results_delay", 2*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("shutdown_timeout", 10*time.Second)
}

// Load reads configuration. path names an optional YAML file; empty skips it.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", name, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		Address:         v.GetString("address"),
		CatalogPath:     v.GetString("catalog_path"),
		DatabasePath:    v.GetString("database_path"),
		ResultsDelay:    v.GetDuration("results_delay"),
		LogLevel:        strings.ToLower(v.GetString("log_level")),
		LogFormat:       strings.ToLower(v.GetString("log_format")),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Address) == "" {
		errs = append(errs, errors.New("address is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path is required"))
	}
	if c.ResultsDelay < 0 {
		errs = append(errs, fmt.Errorf("results_delay must not be negative, got %s", c.ResultsDelay))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown_timeout must be positive, got %s", c.ShutdownTimeout))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log_format %q", c.LogFormat))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
