// Package differ stages linear-memory updates between commit points.
//
// Changes are kept as an ordered list and replayed against the live memory
// in arrival order on Commit, so overlapping writes resolve exactly as they
// would have if applied one by one.
package differ

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/yndnr/rewind-go/internal/core/domain"
)

// PageSize is the WebAssembly page size used by the dirty index.
const PageSize = 64 * 1024

// MemoryWriter receives committed changes.
type MemoryWriter interface {
	WriteMemory(ctx context.Context, offset uint64, data []byte) error
}

// Origin identifies the journal entry a change came from.
type Origin struct {
	Position uint64
	Kind     domain.Kind
}

// Change is one staged memory update.
type Change struct {
	Offset uint64
	Data   []byte
	Origin Origin
}

// CommitError reports the change the writer rejected.
type CommitError struct {
	Change Change
	// Applied is the number of changes written before the failure.
	Applied int
	Err     error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit change from entry %d (%s) at offset %d: %v",
		e.Change.Origin.Position, e.Change.Origin.Kind, e.Change.Offset, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// Differ accumulates staged changes. It is not safe for concurrent use.
type Differ struct {
	changes []Change
	size    int
	dirty   map[uint64]struct{}
}

// New returns an empty Differ.
func New() *Differ {
	return &Differ{dirty: make(map[uint64]struct{})}
}

// Stage appends a change. The data is copied.
func (d *Differ) Stage(offset uint64, data []byte, origin Origin) {
	if len(data) == 0 {
		return
	}
	c := Change{Offset: offset, Data: bytes.Clone(data), Origin: origin}
	d.changes = append(d.changes, c)
	d.track(c)
}

// Commit writes every staged change in order. On the first rejection it
// drops the changes already applied, keeps the rejected one and those after
// it, and returns a *CommitError. On success the differ is empty.
func (d *Differ) Commit(ctx context.Context, w MemoryWriter) (int, error) {
	applied := 0
	for i, c := range d.changes {
		if err := ctx.Err(); err != nil {
			d.dropPrefix(i)
			return applied, err
		}
		if err := w.WriteMemory(ctx, c.Offset, c.Data); err != nil {
			d.dropPrefix(i)
			return applied, &CommitError{Change: c, Applied: i, Err: err}
		}
		applied += len(c.Data)
	}
	d.Reset()
	return applied, nil
}

// Reset discards every staged change.
func (d *Differ) Reset() {
	d.changes = nil
	d.size = 0
	clear(d.dirty)
}

// Len returns the number of staged changes.
func (d *Differ) Len() int { return len(d.changes) }

// Size returns the total number of staged bytes.
func (d *Differ) Size() int { return d.size }

// DirtyPages returns the indices of pages touched by staged changes, ascending.
func (d *Differ) DirtyPages() []uint64 {
	out := make([]uint64, 0, len(d.dirty))
	for p := range d.dirty {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Changes returns the staged changes. The slice must not be modified.
func (d *Differ) Changes() []Change { return d.changes }

func (d *Differ) dropPrefix(n int) {
	d.changes = slices.Clone(d.changes[n:])
	d.size = 0
	clear(d.dirty)
	for _, c := range d.changes {
		d.track(c)
	}
}

func (d *Differ) track(c Change) {
	d.size += len(c.Data)
	first := c.Offset / PageSize
	last := (c.Offset + uint64(len(c.Data)) - 1) / PageSize
	for p := first; p <= last; p++ {
		d.dirty[p] = struct{}{}
	}
}
