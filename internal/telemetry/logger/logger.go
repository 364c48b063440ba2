package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Logger is the logger handed to every rewind component.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	// WithContext binds ctx: the journal name and the active trace span
	// it carries are added to every record.
	WithContext(ctx context.Context) Logger
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string
	// Format is json or text.
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
	// AddSource adds the calling file and line to records.
	AddSource bool
}

// level is shared by every logger New returns so a reloaded configuration
// applies everywhere at once.
var level = new(slog.LevelVar)

type slogLogger struct {
	logger *slog.Logger
	ctx    context.Context
}

// New creates a logger and sets the shared level to cfg.Level.
func New(cfg Config) (Logger, error) {
	level.Set(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			return redact(a)
		},
	}

	var h slog.Handler
	if f := strings.ToLower(cfg.Format); f == "json" {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}
	return &slogLogger{logger: slog.New(contextHandler{h}), ctx: context.Background()}, nil
}

// Nop returns a logger that discards everything. It leaves the shared
// level alone.
func Nop() Logger {
	return &slogLogger{logger: slog.New(slog.DiscardHandler), ctx: context.Background()}
}

// SetLevel changes the level of every logger created by New.
func SetLevel(name string) {
	level.Set(parseLevel(name))
}

// GetLevel returns the shared level by name.
func GetLevel() string {
	switch l := level.Level(); {
	case l <= slog.LevelDebug:
		return "debug"
	case l <= slog.LevelInfo:
		return "info"
	case l <= slog.LevelWarn:
		return "warn"
	default:
		return "error"
	}
}

// ValidLevel reports whether name is a level SetLevel understands.
func ValidLevel(name string) bool {
	switch strings.ToLower(name) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

func parseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *slogLogger) Debug(msg string, args ...any) { l.logger.DebugContext(l.ctx, msg, args...) }
func (l *slogLogger) Info(msg string, args ...any)  { l.logger.InfoContext(l.ctx, msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.logger.WarnContext(l.ctx, msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.logger.ErrorContext(l.ctx, msg, args...) }

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{logger: l.logger.With(args...), ctx: l.ctx}
}

func (l *slogLogger) WithContext(ctx context.Context) Logger {
	return &slogLogger{logger: l.logger, ctx: ctx}
}

var defaultLogger atomic.Pointer[slogLogger]

func init() {
	l, _ := New(Config{Level: "info", Format: "text"})
	defaultLogger.Store(l.(*slogLogger))
}

// SetDefault replaces the logger Default returns. Loggers from other
// packages are ignored.
func SetDefault(l Logger) {
	if sl, ok := l.(*slogLogger); ok {
		defaultLogger.Store(sl)
	}
}

// Default returns the process-wide logger. Components fall back to it when
// no logger is injected.
func Default() Logger {
	return defaultLogger.Load()
}
