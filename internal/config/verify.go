// Package config provides the rewind configuration.
package config

import (
	"net"

	"github.com/yndnr/rewind-go/internal/core/domain"
	"github.com/yndnr/rewind-go/internal/storage/journalfile"
	"github.com/yndnr/rewind-go/internal/telemetry/logger"
)

// Verify validates the configuration.
func Verify(cfg *Config) error {
	if err := verifyReplay(&cfg.Replay); err != nil {
		return err
	}
	if err := verifyJournal(&cfg.Journal); err != nil {
		return err
	}
	if cfg.Checkpoint.Keep < 1 {
		return domain.ErrInvalidArgument.WithDetails("checkpoint.keep must be at least 1")
	}
	if cfg.Process.MaxFileSize == 0 {
		return domain.ErrInvalidArgument.WithDetails("process.max_file_size must be positive")
	}
	if cfg.Store.GCInterval < 0 {
		return domain.ErrInvalidArgument.WithDetails("store.gc_interval must not be negative")
	}
	if err := verifyLog(&cfg.Log); err != nil {
		return err
	}
	if cfg.Metrics.Addr != "" {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Addr); err != nil {
			return domain.ErrInvalidArgument.WithDetailsf("metrics.addr %q", cfg.Metrics.Addr).WithCause(err)
		}
	}
	return nil
}

func verifyReplay(cfg *ReplaySection) error {
	if cfg.MaxStagedBytes < 0 {
		return domain.ErrInvalidArgument.WithDetails("replay.max_staged_bytes must not be negative")
	}
	if cfg.Rate < 0 {
		return domain.ErrInvalidArgument.WithDetails("replay.rate must not be negative")
	}
	if cfg.Rate > 0 && cfg.Burst < 1 {
		return domain.ErrInvalidArgument.WithDetails("replay.burst must be at least 1 when replay.rate is set")
	}
	return nil
}

func verifyJournal(cfg *JournalSection) error {
	switch journalfile.SyncMode(cfg.SyncMode) {
	case journalfile.SyncModeSync, journalfile.SyncModeBatch:
	default:
		return domain.ErrInvalidArgument.WithDetailsf("journal.sync_mode %q (want %s or %s)",
			cfg.SyncMode, journalfile.SyncModeSync, journalfile.SyncModeBatch)
	}
	if cfg.PollInterval <= 0 {
		return domain.ErrInvalidArgument.WithDetails("journal.poll_interval must be positive")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if !logger.ValidLevel(cfg.Level) {
		return domain.ErrInvalidArgument.WithDetailsf("log.level %q", cfg.Level)
	}
	if cfg.Format != "json" && cfg.Format != "text" {
		return domain.ErrInvalidArgument.WithDetailsf("log.format %q (want json or text)", cfg.Format)
	}
	return nil
}
