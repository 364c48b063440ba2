package ethereal

import (
	"slices"
	"testing"

	"github.com/yndnr/rewind-go/internal/core/domain"
)

func TestRegistry_Baseline(t *testing.T) {
	r := NewRegistry()

	if got := r.Stream(1); got != domain.StreamOutput {
		t.Errorf("Stream(1) = %v, want stdout", got)
	}
	if got := r.Stream(2); got != domain.StreamError {
		t.Errorf("Stream(2) = %v, want stderr", got)
	}
	if got := r.Stream(0); got != domain.StreamUnknown {
		t.Errorf("Stream(0) = %v, want unknown", got)
	}
	if !r.IsBaseline() {
		t.Error("new registry should be at baseline")
	}
}

func TestRegistry_MarkKeepsSetsDisjoint(t *testing.T) {
	r := NewRegistry()

	r.MarkStandardOutput(5)
	r.MarkStandardError(5)

	snap := r.Snapshot()
	if slices.Contains(snap.Output, 5) {
		t.Errorf("Output = %v, fd 5 should have moved to error", snap.Output)
	}
	if !slices.Equal(snap.Error, []domain.FD{2, 5}) {
		t.Errorf("Error = %v, want [2 5]", snap.Error)
	}

	// Marking fd 2 as output removes it from the error set.
	r.MarkStandardOutput(2)
	if got := r.Stream(2); got != domain.StreamOutput {
		t.Errorf("Stream(2) = %v, want stdout", got)
	}
}

func TestRegistry_Idempotent(t *testing.T) {
	r := NewRegistry()
	r.MarkStandardOutput(7)
	r.MarkStandardOutput(7)
	r.Unmark(9)
	r.Unmark(9)

	snap := r.Snapshot()
	if !slices.Equal(snap.Output, []domain.FD{1, 7}) {
		t.Errorf("Output = %v, want [1 7]", snap.Output)
	}
}

func TestRegistry_Mark(t *testing.T) {
	r := NewRegistry()
	if r.Mark(4, domain.StreamUnknown) {
		t.Error("Mark(StreamUnknown) should report false")
	}
	if !r.Mark(4, domain.StreamError) || r.Stream(4) != domain.StreamError {
		t.Error("Mark(StreamError) should tag fd 4 as stderr")
	}
}

func TestRegistry_Reset(t *testing.T) {
	r := NewRegistry()
	r.MarkStandardOutput(3)
	r.Unmark(1)
	r.Unmark(2)

	r.Reset()
	first := r.Snapshot()
	r.Reset()
	second := r.Snapshot()

	if !r.IsBaseline() {
		t.Fatalf("Reset() did not restore baseline: %+v", first)
	}
	if !slices.Equal(first.Output, second.Output) || !slices.Equal(first.Error, second.Error) {
		t.Errorf("Reset() not idempotent: %+v vs %+v", first, second)
	}
}
