package replay

import (
	"context"
	"io"

	"github.com/yndnr/rewind-go/internal/core/domain"
)

// Source yields journal entries in log order. Next returns io.EOF once the
// log is exhausted. Decode failures are returned as ErrDecode or
// ErrUnknownEntryKind DomainErrors.
type Source interface {
	Next(ctx context.Context) (domain.Entry, error)
}

// OffsetSource is a Source backed by a byte stream. Offset is the byte
// offset of the next entry and can be stored to resume reading later.
type OffsetSource interface {
	Source
	Offset() int64
}

// SliceSource replays an in-memory slice of entries.
type SliceSource struct {
	entries []domain.Entry
	next    int
}

// NewSliceSource returns a Source over entries. The slice is not copied.
func NewSliceSource(entries []domain.Entry) *SliceSource {
	return &SliceSource{entries: entries}
}

// Next implements Source.
func (s *SliceSource) Next(ctx context.Context) (domain.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.entries) {
		return nil, io.EOF
	}
	e := s.entries[s.next]
	s.next++
	return e, nil
}

// Offset implements OffsetSource; the offset is the slice index.
func (s *SliceSource) Offset() int64 { return int64(s.next) }
