package ethereal

import (
	"bytes"

	"github.com/yndnr/rewind-go/internal/core/domain"
)

// Stdio buffers bytes routed to standard output and standard error since the
// last reset or drain. Content is the in-order concatenation of the routed
// payloads; nothing is dropped or deduplicated.
type Stdio struct {
	out bytes.Buffer
	err bytes.Buffer
}

// NewStdio returns empty buffers.
func NewStdio() *Stdio {
	return &Stdio{}
}

// AppendOutput appends p to the output buffer.
func (s *Stdio) AppendOutput(p []byte) { s.out.Write(p) }

// AppendError appends p to the error buffer.
func (s *Stdio) AppendError(p []byte) { s.err.Write(p) }

// Append routes p by stream. It reports false for StreamUnknown.
func (s *Stdio) Append(stream domain.Stream, p []byte) bool {
	switch stream {
	case domain.StreamOutput:
		s.AppendOutput(p)
	case domain.StreamError:
		s.AppendError(p)
	default:
		return false
	}
	return true
}

// Reset empties both buffers.
func (s *Stdio) Reset() {
	s.out.Reset()
	s.err.Reset()
}

// Snapshot returns copies of both buffers. A nil slice means empty.
func (s *Stdio) Snapshot() (stdout, stderr []byte) {
	return bytes.Clone(s.out.Bytes()), bytes.Clone(s.err.Bytes())
}

// Drain returns copies of both buffers and empties them.
func (s *Stdio) Drain() (stdout, stderr []byte) {
	stdout, stderr = s.Snapshot()
	s.Reset()
	return stdout, stderr
}

// Len returns the buffered byte counts.
func (s *Stdio) Len() (stdout, stderr int) {
	return s.out.Len(), s.err.Len()
}
