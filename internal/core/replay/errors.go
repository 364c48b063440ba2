package replay

import (
	"fmt"

	"github.com/yndnr/rewind-go/internal/core/domain"
)

// EntryError is the error every fatal replay failure is reported as. It
// names the failing entry by its position in the log and its kind;
// errors.Is reaches the underlying DomainError.
type EntryError struct {
	Position uint64
	Kind     domain.Kind
	Err      error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry %d (%s): %v", e.Position, e.Kind, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

func entryError(pos uint64, kind domain.Kind, err error) *EntryError {
	return &EntryError{Position: pos, Kind: kind, Err: err}
}

func liveError(op string, err error) error {
	return domain.ErrLiveProcess.WithDetails(op).WithCause(err)
}
