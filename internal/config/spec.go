// Package config provides the rewind configuration.
package config

import "time"

// Config is the root configuration for the rewind command.
type Config struct {
	Replay     ReplaySection     `koanf:"replay" json:"replay" yaml:"replay"`
	Journal    JournalSection    `koanf:"journal" json:"journal" yaml:"journal"`
	Store      StoreSection      `koanf:"store" json:"store" yaml:"store"`
	Checkpoint CheckpointSection `koanf:"checkpoint" json:"checkpoint" yaml:"checkpoint"`
	Process    ProcessSection    `koanf:"process" json:"process" yaml:"process"`
	Log        LogSection        `koanf:"log" json:"log" yaml:"log"`
	Metrics    MetricsSection    `koanf:"metrics" json:"metrics" yaml:"metrics"`
	Tracing    TracingSection    `koanf:"tracing" json:"tracing" yaml:"tracing"`
}

// ReplaySection configures the Player.
type ReplaySection struct {
	// FlushOnFinish drains buffered standard output and error into the
	// live process when the replay finishes.
	FlushOnFinish bool `koanf:"flush_on_finish" json:"flush_on_finish" yaml:"flush_on_finish"`

	// RespawnThreads re-creates every thread left in the roster when the
	// replay finishes.
	RespawnThreads bool `koanf:"respawn_threads" json:"respawn_threads" yaml:"respawn_threads"`

	// MaxStagedBytes commits staged memory once it grows past this size.
	// Memory is staged only in differential replays. Zero stages until the
	// next commit point.
	MaxStagedBytes int `koanf:"max_staged_bytes" json:"max_staged_bytes" yaml:"max_staged_bytes"`

	// Rate limits entries per second. Zero disables pacing.
	Rate float64 `koanf:"rate" json:"rate" yaml:"rate"`

	// Burst is the limiter burst when Rate is set.
	Burst int `koanf:"burst" json:"burst" yaml:"burst"`
}

// JournalSection configures journal files.
type JournalSection struct {
	Path          string        `koanf:"path" json:"path" yaml:"path"`
	AllowTornTail bool          `koanf:"allow_torn_tail" json:"allow_torn_tail" yaml:"allow_torn_tail"`
	KeyFile       string        `koanf:"key_file" json:"key_file" yaml:"key_file"`
	SyncMode      string        `koanf:"sync_mode" json:"sync_mode" yaml:"sync_mode"`
	PollInterval  time.Duration `koanf:"poll_interval" json:"poll_interval" yaml:"poll_interval"`
}

// StoreSection configures the badger journal store.
type StoreSection struct {
	Dir        string        `koanf:"dir" json:"dir" yaml:"dir"`
	GCInterval time.Duration `koanf:"gc_interval" json:"gc_interval" yaml:"gc_interval"`
	SyncWrites bool          `koanf:"sync_writes" json:"sync_writes" yaml:"sync_writes"`
}

// CheckpointSection configures checkpoint files.
type CheckpointSection struct {
	Dir  string `koanf:"dir" json:"dir" yaml:"dir"`
	Keep int    `koanf:"keep" json:"keep" yaml:"keep"`
}

// ProcessSection configures the in-memory live process.
type ProcessSection struct {
	MaxMemory   uint64 `koanf:"max_memory" json:"max_memory" yaml:"max_memory"`
	MaxFileSize uint64 `koanf:"max_file_size" json:"max_file_size" yaml:"max_file_size"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" json:"level" yaml:"level"`
	Format string `koanf:"format" json:"format" yaml:"format"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	// Addr is the listen address for /metrics. Empty disables it.
	Addr string `koanf:"addr" json:"addr" yaml:"addr"`
}

// TracingSection configures OpenTelemetry export.
type TracingSection struct {
	Endpoint    string `koanf:"endpoint" json:"endpoint" yaml:"endpoint"`
	ServiceName string `koanf:"service_name" json:"service_name" yaml:"service_name"`
}
