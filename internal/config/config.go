// Package config loads the server configuration from a YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedBalance is an initial deposit applied at startup.
type SeedBalance struct {
	Client   string `yaml:"client"`
	Currency string `yaml:"currency"`
	Amount   string `yaml:"amount"`
}

type Config struct {
	ListenAddr string        `yaml:"listen_addr"`
	QueueDepth int           `yaml:"queue_depth"` // per-pair submission queue depth
	Seed       []SeedBalance `yaml:"seed"`
}

func Default() *Config {
	return &Config{
		ListenAddr: ":8080",
		QueueDepth: 1024,
	}
}

// Load reads path and overlays it on the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = Default().ListenAddr
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = Default().QueueDepth
	}
	return cfg, nil
}
