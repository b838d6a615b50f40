package config

import "context"

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads a config file from path and translates it into the
	// format-agnostic File model.
	Load(ctx context.Context, path string) (*File, error)
}
