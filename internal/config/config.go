// Package config loads the drystage command configuration from an optional
// YAML file and DRYSTAGE_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "DRYSTAGE_"

type Config struct {
	Log    LogConfig    `koanf:"log"`
	Export ExportConfig `koanf:"export"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ExportConfig selects the variants of the fibonacci export.
type ExportConfig struct {
	Rows     int      `koanf:"rows"`
	Format   string   `koanf:"format"`
	Delivery string   `koanf:"delivery"`
	Email    string   `koanf:"email"`
	Comma    string   `koanf:"comma"`
	Header   []string `koanf:"header"`
}

var defaults = map[string]any{
	"log.level":       "info",
	"log.format":      "text",
	"export.rows":     10,
	"export.format":   "csv",
	"export.delivery": "stdout",
}

// Load reads path (skipped when empty or missing), then environment overrides
// such as DRYSTAGE_EXPORT__ROWS=20.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("config default %s: %w", key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("load config %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the export selection.
func (c *Config) Validate() error {
	if c.Export.Rows < 0 {
		return fmt.Errorf("export.rows must not be negative, got %d", c.Export.Rows)
	}
	switch c.Export.Format {
	case "string", "csv", "table":
	default:
		return fmt.Errorf("export.format: unsupported value %q", c.Export.Format)
	}
	switch c.Export.Delivery {
	case "stdout":
	case "email":
		if c.Export.Email == "" {
			return errors.New("export.email is required for email delivery")
		}
	default:
		return fmt.Errorf("export.delivery: unsupported value %q", c.Export.Delivery)
	}
	return nil
}
