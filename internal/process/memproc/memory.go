package memproc

import (
	"errors"
	"fmt"
)

// ErrOutOfBounds is returned for accesses outside linear memory.
var ErrOutOfBounds = errors.New("memory access out of bounds")

// Memory is an owned, bounds-checked linear memory. Callers never receive
// references into the buffer; reads and exports copy.
type Memory struct {
	buf []byte
}

// NewMemory returns a zeroed memory of size bytes.
func NewMemory(size uint64) *Memory {
	return &Memory{buf: make([]byte, size)}
}

// Len returns the memory size in bytes.
func (m *Memory) Len() uint64 { return uint64(len(m.buf)) }

// WriteAt copies p into memory at off.
func (m *Memory) WriteAt(p []byte, off uint64) error {
	if err := m.check(off, len(p)); err != nil {
		return err
	}
	copy(m.buf[off:], p)
	return nil
}

// ReadAt copies len(p) bytes at off into p.
func (m *Memory) ReadAt(p []byte, off uint64) error {
	if err := m.check(off, len(p)); err != nil {
		return err
	}
	copy(p, m.buf[off:])
	return nil
}

// Bytes returns a copy of the whole memory.
func (m *Memory) Bytes() []byte {
	out := make([]byte, len(m.buf))
	copy(out, m.buf)
	return out
}

func (m *Memory) check(off uint64, n int) error {
	size := uint64(len(m.buf))
	if off > size || uint64(n) > size-off {
		return fmt.Errorf("%w: [%d, %d) exceeds %d bytes", ErrOutOfBounds, off, off+uint64(n), size)
	}
	return nil
}
