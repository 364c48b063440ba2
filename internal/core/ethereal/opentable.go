package ethereal

import (
	"slices"

	"github.com/yndnr/rewind-go/internal/core/domain"
)

// OpenTable is the segment's view of which descriptors are open. It does
// not own descriptor contents, which live in the durable live table; it only
// answers whether an fd-targeted entry refers to a descriptor this segment
// has declared. The baseline is {0, 1, 2}.
type OpenTable struct {
	open map[domain.FD]domain.DescriptorType
}

// NewOpenTable returns a table at the baseline.
func NewOpenTable() *OpenTable {
	t := &OpenTable{}
	t.Reset()
	return t
}

// Open records fd as open. Re-opening an open fd replaces its type.
func (t *OpenTable) Open(fd domain.FD, typ domain.DescriptorType) {
	t.open[fd] = typ
}

// Close removes fd and reports whether it was open.
func (t *OpenTable) Close(fd domain.FD) bool {
	if _, ok := t.open[fd]; !ok {
		return false
	}
	delete(t.open, fd)
	return true
}

// Renumber moves from onto to, replacing to if it was open. It reports false
// and changes nothing when from is not open.
func (t *OpenTable) Renumber(from, to domain.FD) bool {
	typ, ok := t.open[from]
	if !ok {
		return false
	}
	if from == to {
		return true
	}
	delete(t.open, from)
	t.open[to] = typ
	return true
}

// Duplicate makes copied open with the type of original. It reports false
// when original is not open.
func (t *OpenTable) Duplicate(original, copied domain.FD) bool {
	typ, ok := t.open[original]
	if !ok {
		return false
	}
	t.open[copied] = typ
	return true
}

// Has reports whether fd is open in this segment.
func (t *OpenTable) Has(fd domain.FD) bool {
	_, ok := t.open[fd]
	return ok
}

// Reset restores the baseline.
func (t *OpenTable) Reset() {
	t.open = map[domain.FD]domain.DescriptorType{
		domain.FDStdin:  domain.DescriptorStdio,
		domain.FDStdout: domain.DescriptorStdio,
		domain.FDStderr: domain.DescriptorStdio,
	}
}

// FDs returns the open descriptors in ascending order.
func (t *OpenTable) FDs() []domain.FD {
	out := make([]domain.FD, 0, len(t.open))
	for fd := range t.open {
		out = append(out, fd)
	}
	slices.Sort(out)
	return out
}

// Len returns the number of open descriptors.
func (t *OpenTable) Len() int { return len(t.open) }
