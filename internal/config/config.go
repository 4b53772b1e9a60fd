// Package config models demandas.yml, the optional service configuration
// file. Every field has a default so the binary runs with no file at all.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const FileName = "demandas.yml"

// Config models demandas.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Backup struct {
		Dir           string        `yaml:"dir"`
		Interval      time.Duration `yaml:"interval"`
		SweepInterval time.Duration `yaml:"sweep_interval"`
		Retention     int           `yaml:"retention"`
	} `yaml:"backup"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Auth struct {
		AllowLegacyUserHeader bool `yaml:"allow_legacy_user_header"`
	} `yaml:"auth"`
}

// Default returns the configuration used when no demandas.yml exists.
func Default(workspace string) Config {
	var c Config
	c.Server.Addr = "127.0.0.1:8080"
	c.Server.BasePath = "/api"
	c.Backup.Dir = filepath.Join(workspace, ".demandas", "backups")
	c.Backup.Interval = 6 * time.Hour
	c.Backup.SweepInterval = 24 * time.Hour
	c.Backup.Retention = 10
	c.Log.Level = "info"
	c.Log.Format = "json"
	return c
}

// Path returns the config file location inside the workspace.
func Path(workspace string) string {
	return filepath.Join(workspace, FileName)
}

// Load reads demandas.yml from the workspace, falling back to defaults when
// the file is absent. Fields left empty in the file keep their defaults.
func Load(workspace string) (Config, error) {
	c := Default(workspace)
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return c, err
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse %s: %w", FileName, err)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Validate ensures the loaded values are usable.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Backup.Dir == "" {
		return fmt.Errorf("config.backup.dir is required")
	}
	if c.Backup.Interval < 0 || c.Backup.SweepInterval < 0 {
		return fmt.Errorf("config.backup intervals must not be negative")
	}
	if c.Backup.Retention < 0 {
		return fmt.Errorf("config.backup.retention must not be negative")
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("config.log.format %q is not one of json, console", c.Log.Format)
	}
	return nil
}
