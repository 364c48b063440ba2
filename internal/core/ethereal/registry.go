package ethereal

import (
	"slices"

	"github.com/yndnr/rewind-go/internal/core/domain"
)

// Registry tracks which descriptors carry standard output and which carry
// standard error. The two sets are disjoint: marking an fd for one stream
// removes it from the other.
type Registry struct {
	output map[domain.FD]struct{}
	errs   map[domain.FD]struct{}
}

// NewRegistry returns a registry at the canonical baseline.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Reset()
	return r
}

// MarkStandardOutput tags fd as carrying standard output.
func (r *Registry) MarkStandardOutput(fd domain.FD) {
	delete(r.errs, fd)
	r.output[fd] = struct{}{}
}

// MarkStandardError tags fd as carrying standard error.
func (r *Registry) MarkStandardError(fd domain.FD) {
	delete(r.output, fd)
	r.errs[fd] = struct{}{}
}

// Mark dispatches to MarkStandardOutput or MarkStandardError.
// It reports false for StreamUnknown.
func (r *Registry) Mark(fd domain.FD, s domain.Stream) bool {
	switch s {
	case domain.StreamOutput:
		r.MarkStandardOutput(fd)
	case domain.StreamError:
		r.MarkStandardError(fd)
	default:
		return false
	}
	return true
}

// Unmark removes fd from both sets. Unmarking an unmarked fd is a no-op.
func (r *Registry) Unmark(fd domain.FD) {
	delete(r.output, fd)
	delete(r.errs, fd)
}

// Reset restores the baseline: {1} for output and {2} for error.
func (r *Registry) Reset() {
	r.output = map[domain.FD]struct{}{domain.FDStdout: {}}
	r.errs = map[domain.FD]struct{}{domain.FDStderr: {}}
}

// Stream returns the stream fd is marked with, or StreamUnknown.
func (r *Registry) Stream(fd domain.FD) domain.Stream {
	if _, ok := r.output[fd]; ok {
		return domain.StreamOutput
	}
	if _, ok := r.errs[fd]; ok {
		return domain.StreamError
	}
	return domain.StreamUnknown
}

// RegistrySnapshot is a sorted copy of both sets.
type RegistrySnapshot struct {
	Output []domain.FD `json:"output"`
	Error  []domain.FD `json:"error"`
}

// Snapshot returns a copy of the registry contents.
func (r *Registry) Snapshot() RegistrySnapshot {
	return RegistrySnapshot{Output: sortedFDs(r.output), Error: sortedFDs(r.errs)}
}

// IsBaseline reports whether the registry equals the canonical baseline.
func (r *Registry) IsBaseline() bool {
	return len(r.output) == 1 && len(r.errs) == 1 &&
		r.Stream(domain.FDStdout) == domain.StreamOutput &&
		r.Stream(domain.FDStderr) == domain.StreamError
}

func sortedFDs(set map[domain.FD]struct{}) []domain.FD {
	out := make([]domain.FD, 0, len(set))
	for fd := range set {
		out = append(out, fd)
	}
	slices.Sort(out)
	return out
}
