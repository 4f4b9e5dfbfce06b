package app

import (
	"errors"
	"fmt"
)

// Config holds what the host needs before any configuration file is read.
type Config struct {
	ConfigPaths []string // .hcl/.toml files or directories

	LogFormat string
	LogLevel  string
	// Workers overrides the configured worker count when positive.
	Workers  int
	SelfTest bool
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must not be negative, got %d", cfg.Workers)
	}
	for _, p := range cfg.ConfigPaths {
		if p == "" {
			return nil, errors.New("config path cannot be empty")
		}
	}
	return &cfg, nil
}
