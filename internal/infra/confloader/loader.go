package confloader

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "REWIND_"

// Loader loads configuration from multiple sources.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	flags     map[string]any
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithConfigFile sets the configuration file path.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.filePath = path }
}

// WithFlags sets dotted-key overrides taken from the command line. Only
// flags the user actually set should be passed.
func WithFlags(flags map[string]any) Option {
	return func(l *Loader) { l.flags = flags }
}

// NewLoader creates a loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads file, environment and flags in priority order and unmarshals
// the merged result over target, so fields absent from every source keep
// the values target already holds.
func (l *Loader) Load(target any) error {
	if err := l.LoadFile(l.filePath); err != nil {
		return err
	}
	if err := l.LoadEnv(); err != nil {
		return err
	}
	if len(l.flags) > 0 {
		if err := l.LoadMap(l.flags); err != nil {
			return err
		}
	}
	if err := l.k.Unmarshal("", target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// LoadFile merges a YAML file. An empty path is a no-op.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load config file %s: %w", path, err)
	}
	return nil
}

// LoadEnv merges environment variables. The first underscore after the
// prefix separates the section from the key, so
// REWIND_REPLAY_MAX_STAGED_BYTES sets replay.max_staged_bytes.
func (l *Loader) LoadEnv() error {
	provider := env.Provider(l.envPrefix, ".", func(s string) string {
		return EnvKey(l.envPrefix, s)
	})
	if err := l.k.Load(provider, nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// EnvKey maps an environment variable name to a dotted config key.
func EnvKey(prefix, name string) string {
	s := strings.ToLower(strings.TrimPrefix(name, prefix))
	section, key, found := strings.Cut(s, "_")
	if !found {
		return section
	}
	return section + "." + key
}

// LoadMap merges dotted-key values.
func (l *Loader) LoadMap(data map[string]any) error {
	if err := l.k.Load(mapProvider(data), nil); err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	return nil
}

// String returns a loaded value by dotted key.
func (l *Loader) String(key string) string {
	return l.k.String(key)
}

// Keys returns every loaded key.
func (l *Loader) Keys() []string {
	return l.k.Keys()
}
