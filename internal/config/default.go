// Package config provides the rewind configuration.
package config

import (
	"time"

	"github.com/yndnr/rewind-go/internal/process/memproc"
	"github.com/yndnr/rewind-go/internal/storage/checkpoint"
	"github.com/yndnr/rewind-go/internal/storage/journalfile"
)

// Default configuration values.
const (
	DefaultMaxStagedBytes = 64 << 20
	DefaultBurst          = 1

	DefaultSyncMode     = string(journalfile.SyncModeBatch)
	DefaultPollInterval = journalfile.DefaultPollInterval

	DefaultStoreDir   = "rewind-store"
	DefaultGCInterval = 10 * time.Minute

	DefaultCheckpointDir = "rewind-checkpoints"

	DefaultMaxMemory   = 4 << 30
	DefaultMaxFileSize = memproc.DefaultMaxFileSize

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	DefaultServiceName = "rewind"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Replay: ReplaySection{
			MaxStagedBytes: DefaultMaxStagedBytes,
			Burst:          DefaultBurst,
		},
		Journal: JournalSection{
			SyncMode:     DefaultSyncMode,
			PollInterval: DefaultPollInterval,
		},
		Store: StoreSection{
			Dir:        DefaultStoreDir,
			GCInterval: DefaultGCInterval,
		},
		Checkpoint: CheckpointSection{
			Dir:  DefaultCheckpointDir,
			Keep: checkpoint.DefaultKeep,
		},
		Process: ProcessSection{
			MaxMemory:   DefaultMaxMemory,
			MaxFileSize: DefaultMaxFileSize,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Tracing: TracingSection{
			ServiceName: DefaultServiceName,
		},
	}
}
