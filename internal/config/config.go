package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Gensys  GensysConfig  `toml:"gensys"`
	Logging LoggingConfig `toml:"logging"`
	Profile ProfileConfig `toml:"profile"`
}

type GensysConfig struct {
	SchemaDir      string        `toml:"schema_dir"`
	ScriptsDir     string        `toml:"scripts_dir"`
	EntityCapacity int           `toml:"entity_capacity"`
	TickRate       time.Duration `toml:"tick_rate"`
	Ticks          int           `toml:"ticks"` // 0 runs until interrupted
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type ProfileConfig struct {
	Enabled bool   `toml:"enabled"`
	Mode    string `toml:"mode"` // "cpu", "mem" or "allocs"
	Path    string `toml:"path"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Gensys.TickRate <= 0 {
		return fmt.Errorf("gensys.tick_rate must be positive, got %s", c.Gensys.TickRate)
	}
	if c.Gensys.EntityCapacity < 0 || c.Gensys.Ticks < 0 {
		return fmt.Errorf("gensys.entity_capacity and gensys.ticks must not be negative")
	}
	switch c.Profile.Mode {
	case "cpu", "mem", "allocs":
	default:
		return fmt.Errorf("profile.mode %q is not cpu, mem or allocs", c.Profile.Mode)
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Gensys: GensysConfig{
			SchemaDir:      "data/schema",
			ScriptsDir:     "scripts",
			EntityCapacity: 1024,
			TickRate:       50 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Profile: ProfileConfig{
			Mode: "cpu",
			Path: ".",
		},
	}
}
