package replay

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/yndnr/rewind-go/internal/core/domain"
)

var errInjected = errors.New("injected failure")

// fakeLive is an in-memory LiveProcess that records every call.
type fakeLive struct {
	mem     []byte
	open    map[domain.FD]domain.Descriptor
	written map[domain.FD][]byte
	spawned []domain.ThreadID
	stdout  []byte
	stderr  []byte
	exited  bool
	code    uint32
	calls   []string
	failOn  string
}

func newFakeLive(memSize int) *fakeLive {
	return &fakeLive{
		mem: make([]byte, memSize),
		open: map[domain.FD]domain.Descriptor{
			0: {Type: domain.DescriptorStdio},
			1: {Type: domain.DescriptorStdio},
			2: {Type: domain.DescriptorStdio},
		},
		written: make(map[domain.FD][]byte),
	}
}

func (f *fakeLive) call(op string) error {
	f.calls = append(f.calls, op)
	if f.failOn == op {
		return errInjected
	}
	return nil
}

func (f *fakeLive) InitModule(_ context.Context, _ []byte, size uint64) error {
	if err := f.call("init-module"); err != nil {
		return err
	}
	f.mem = make([]byte, size)
	f.exited = false
	return nil
}

func (f *fakeLive) WriteMemory(_ context.Context, offset uint64, data []byte) error {
	if err := f.call("write-memory"); err != nil {
		return err
	}
	if offset+uint64(len(data)) > uint64(len(f.mem)) {
		return fmt.Errorf("out of bounds: %d+%d > %d", offset, len(data), len(f.mem))
	}
	copy(f.mem[offset:], data)
	return nil
}

func (f *fakeLive) OpenDescriptor(_ context.Context, fd domain.FD, d domain.Descriptor) error {
	if err := f.call("open"); err != nil {
		return err
	}
	f.open[fd] = d
	return nil
}

func (f *fakeLive) CloseDescriptor(_ context.Context, fd domain.FD) error {
	if err := f.call("close"); err != nil {
		return err
	}
	delete(f.open, fd)
	return nil
}

func (f *fakeLive) RenumberDescriptor(_ context.Context, from, to domain.FD) error {
	if err := f.call("renumber"); err != nil {
		return err
	}
	f.open[to] = f.open[from]
	delete(f.open, from)
	return nil
}

func (f *fakeLive) DuplicateDescriptor(_ context.Context, original, copied domain.FD) error {
	if err := f.call("duplicate"); err != nil {
		return err
	}
	f.open[copied] = f.open[original]
	return nil
}

func (f *fakeLive) SeekDescriptor(context.Context, domain.FD, int64, domain.Whence) error {
	return f.call("seek")
}

func (f *fakeLive) WriteDescriptor(_ context.Context, fd domain.FD, _ uint64, data []byte) error {
	if err := f.call("write"); err != nil {
		return err
	}
	f.written[fd] = append(f.written[fd], data...)
	return nil
}

func (f *fakeLive) SpawnThread(_ context.Context, id domain.ThreadID, _ domain.ThreadState) error {
	if err := f.call("spawn"); err != nil {
		return err
	}
	f.spawned = append(f.spawned, id)
	return nil
}

func (f *fakeLive) FlushStdio(_ context.Context, stdout, stderr []byte) error {
	if err := f.call("flush"); err != nil {
		return err
	}
	f.stdout = append(f.stdout, stdout...)
	f.stderr = append(f.stderr, stderr...)
	return nil
}

func (f *fakeLive) Exit(_ context.Context, code uint32) error {
	if err := f.call("exit"); err != nil {
		return err
	}
	f.exited = true
	f.code = code
	return nil
}

func (f *fakeLive) openFDs() []domain.FD {
	return slices.Sorted(maps.Keys(f.open))
}
