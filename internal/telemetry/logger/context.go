package logger

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

type contextKey string

const journalKey contextKey = "rewind.journal"

// WithJournal records which journal (file path or store log name) a
// context is replaying.
func WithJournal(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, journalKey, name)
}

// JournalFromContext extracts the journal name from context.
func JournalFromContext(ctx context.Context) string {
	if name, ok := ctx.Value(journalKey).(string); ok {
		return name
	}
	return ""
}

// contextHandler adds the journal and the trace and span ids of the
// record's context.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if name := JournalFromContext(ctx); name != "" {
			r.AddAttrs(slog.String("journal", name))
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			r.AddAttrs(
				slog.String("trace_id", sc.TraceID().String()),
				slog.String("span_id", sc.SpanID().String()),
			)
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}
