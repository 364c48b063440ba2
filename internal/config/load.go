// Package config provides the rewind configuration.
package config

import (
	"github.com/yndnr/rewind-go/internal/infra/confloader"
)

// Load builds the configuration from defaults, the YAML file at path (if
// any), REWIND_* environment variables and flag overrides, in increasing
// priority, then verifies it.
func Load(path string, flags map[string]any) (*Config, error) {
	cfg := Default()
	l := confloader.NewLoader(
		confloader.WithConfigFile(path),
		confloader.WithFlags(flags),
	)
	if err := l.Load(cfg); err != nil {
		return nil, err
	}
	if err := Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
