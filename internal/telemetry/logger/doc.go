// Package logger provides structured logging for Rewind.
//
// This package wraps log/slog:
//
//   - logger.go: Logger interface, configuration and the global level
//   - context.go: Journal and trace attributes taken from the record context
//   - redact.go: Payload summarising and secret masking
//
// Features:
//
//   - JSON and text output formats
//   - Runtime log level changes (used by the config watcher)
//   - Byte payloads (memory regions, descriptor writes) are logged as sizes
//   - Records carry the journal name and trace/span ids of their context
package logger
