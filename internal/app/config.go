package app

import (
	"errors"

	"github.com/vk/reloadgo/internal/config"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// Root is the project directory being watched and built.
	Root string
	// ConfigPath is an explicit config file. When empty, reload.hcl under
	// Root is used if it exists, and defaults apply otherwise.
	ConfigPath string

	LogFormat string
	LogLevel  string

	// Overrides carries the per-field command-line overrides into the
	// session resolution step.
	Overrides config.Overrides
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.Root == "" {
		return nil, errors.New("Root is a required configuration field and cannot be empty")
	}

	// Future validations for other fields can be added here.

	return &cfg, nil
}
