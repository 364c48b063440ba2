package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func newBufferLogger(t *testing.T, level, format string) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := New(Config{Level: level, Format: format, Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return l, &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log %q: %v", buf.String(), err)
	}
	return entry
}

func TestLogger_Levels(t *testing.T) {
	l, buf := newBufferLogger(t, "debug", "json")

	tests := []struct {
		level   string
		logFunc func(string, ...any)
	}{
		{"DEBUG", l.Debug},
		{"INFO", l.Info},
		{"WARN", l.Warn},
		{"ERROR", l.Error},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf.Reset()
			tt.logFunc("entry applied", "kind", "fd-write")

			entry := decodeLine(t, buf)
			if entry["level"] != tt.level {
				t.Errorf("level = %v, want %v", entry["level"], tt.level)
			}
			if entry["kind"] != "fd-write" {
				t.Errorf("kind = %v, want fd-write", entry["kind"])
			}
		})
	}
}

func TestLogger_With(t *testing.T) {
	l, buf := newBufferLogger(t, "info", "json")

	l.With("position", 42).Info("segment reset")

	entry := decodeLine(t, buf)
	if pos, ok := entry["position"].(float64); !ok || pos != 42 {
		t.Errorf("position = %v, want 42", entry["position"])
	}
}

func TestSetLevel(t *testing.T) {
	l, buf := newBufferLogger(t, "error", "json")

	l.Info("filtered")
	if buf.Len() > 0 {
		t.Error("Info should be filtered at error level")
	}

	SetLevel("debug")
	l.Info("kept")
	if buf.Len() == 0 {
		t.Error("Info should be logged after level changed to debug")
	}
	if level := GetLevel(); level != "debug" {
		t.Errorf("GetLevel() = %q, want %q", level, "debug")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		valid    bool
	}{
		{"debug", "debug", true},
		{"INFO", "info", true},
		{"warning", "warn", true},
		{"ERROR", "error", true},
		{"verbose", "info", false},
		{"", "info", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			SetLevel(tt.input)
			if got := GetLevel(); got != tt.expected {
				t.Errorf("SetLevel(%q); GetLevel() = %q, want %q", tt.input, got, tt.expected)
			}
			if got := ValidLevel(tt.input); got != tt.valid {
				t.Errorf("ValidLevel(%q) = %v, want %v", tt.input, got, tt.valid)
			}
		})
	}
}

func TestNop(t *testing.T) {
	before := GetLevel()
	l := Nop()
	l.With("a", 1).Error("dropped")
	if GetLevel() != before {
		t.Error("Nop() changed the global level")
	}
}

func TestDefault(t *testing.T) {
	l, buf := newBufferLogger(t, "info", "json")
	SetDefault(l)
	defer SetDefault(Nop())

	Default().Info("journal store opened")
	if buf.Len() == 0 {
		t.Error("Default() should return the logger passed to SetDefault")
	}
}

func TestLogger_TextFormat(t *testing.T) {
	l, buf := newBufferLogger(t, "info", "text")

	l.Info("replay finished", "entries", 12)

	output := buf.String()
	if !strings.Contains(output, "replay finished") || !strings.Contains(output, "entries=12") {
		t.Errorf("unexpected text output: %s", output)
	}
}
