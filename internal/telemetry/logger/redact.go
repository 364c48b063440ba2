package logger

import (
	"fmt"
	"log/slog"
	"strings"
)

// Sensitive key patterns whose values are masked.
var sensitiveKeyPatterns = []string{
	"passphrase",
	"password",
	"secret",
	"key",
}

// redactedValue is the placeholder for masked data.
const redactedValue = "***REDACTED***"

// redact rewrites an attribute before it reaches the handler. Raw byte
// payloads are summarised by length; values under sensitive keys are masked.
func redact(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindAny:
		if b, ok := a.Value.Any().([]byte); ok {
			if IsSensitiveKey(a.Key) && len(b) > 0 {
				return slog.String(a.Key, redactedValue)
			}
			return slog.String(a.Key, SummarizeBytes(b))
		}
	case slog.KindString:
		if IsSensitiveKey(a.Key) && a.Value.String() != "" {
			return slog.String(a.Key, redactedValue)
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redact(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}
	return a
}

// SummarizeBytes renders a payload as its size.
func SummarizeBytes(b []byte) string {
	return fmt.Sprintf("<%d bytes>", len(b))
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}
