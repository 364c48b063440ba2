package ethereal

import (
	"testing"

	"github.com/yndnr/rewind-go/internal/core/domain"
)

func TestStdio_AppendAndDrain(t *testing.T) {
	s := NewStdio()
	s.AppendOutput([]byte("hello "))
	s.AppendError([]byte("oops"))
	s.Append(domain.StreamOutput, []byte("world"))

	if s.Append(domain.StreamUnknown, []byte("lost")) {
		t.Error("Append(StreamUnknown) should report false")
	}

	out, errb := s.Snapshot()
	if string(out) != "hello world" || string(errb) != "oops" {
		t.Fatalf("Snapshot() = %q, %q", out, errb)
	}

	// Snapshot must be a copy.
	out[0] = 'H'
	if again, _ := s.Snapshot(); string(again) != "hello world" {
		t.Errorf("Snapshot() aliases the buffer: %q", again)
	}

	out, errb = s.Drain()
	if string(out) != "hello world" || string(errb) != "oops" {
		t.Errorf("Drain() = %q, %q", out, errb)
	}
	if o, e := s.Len(); o != 0 || e != 0 {
		t.Errorf("Len() after Drain = %d, %d, want 0, 0", o, e)
	}
}

func TestStdio_Reset(t *testing.T) {
	s := NewStdio()
	s.AppendOutput([]byte("x"))
	s.Reset()
	s.Reset()

	out, errb := s.Snapshot()
	if len(out) != 0 || len(errb) != 0 {
		t.Errorf("Snapshot() after Reset = %q, %q, want empty", out, errb)
	}
}
