package logger

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestJournalFromContext(t *testing.T) {
	ctx := WithJournal(context.Background(), "file:/var/app.journal")
	if got := JournalFromContext(ctx); got != "file:/var/app.journal" {
		t.Errorf("JournalFromContext() = %q", got)
	}
	if JournalFromContext(context.Background()) != "" {
		t.Error("JournalFromContext() should be empty without a value")
	}
}

func TestWithContext_AddsJournal(t *testing.T) {
	l, buf := newBufferLogger(t, "info", "json")

	ctx := WithJournal(context.Background(), "store:app")
	l.With("session_id", "01J9Z").WithContext(ctx).Info("replay finished")

	entry := decodeLine(t, buf)
	if entry["journal"] != "store:app" {
		t.Errorf("journal = %v", entry["journal"])
	}
	if entry["session_id"] != "01J9Z" {
		t.Errorf("session_id = %v", entry["session_id"])
	}
	if _, ok := entry["trace_id"]; ok {
		t.Error("trace_id should be absent without a span")
	}
}

func TestWithContext_AddsTrace(t *testing.T) {
	l, buf := newBufferLogger(t, "info", "json")

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	l.WithContext(ctx).Warn("exit of thread absent from roster")

	entry := decodeLine(t, buf)
	if entry["trace_id"] != sc.TraceID().String() {
		t.Errorf("trace_id = %v, want %s", entry["trace_id"], sc.TraceID())
	}
	if entry["span_id"] != sc.SpanID().String() {
		t.Errorf("span_id = %v, want %s", entry["span_id"], sc.SpanID())
	}
}
