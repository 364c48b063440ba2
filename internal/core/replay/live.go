package replay

import (
	"context"

	"github.com/yndnr/rewind-go/internal/core/domain"
)

// LiveProcess receives the durable effects of a replay. Every call is
// made from the goroutine driving the Player; implementations need no
// locking of their own as long as nothing else writes to them meanwhile.
type LiveProcess interface {
	// InitModule (re)initialises the module instance and sizes linear memory.
	InitModule(ctx context.Context, moduleHash []byte, memorySize uint64) error
	// WriteMemory writes data into linear memory at offset.
	WriteMemory(ctx context.Context, offset uint64, data []byte) error

	OpenDescriptor(ctx context.Context, fd domain.FD, d domain.Descriptor) error
	CloseDescriptor(ctx context.Context, fd domain.FD) error
	RenumberDescriptor(ctx context.Context, from, to domain.FD) error
	DuplicateDescriptor(ctx context.Context, original, copied domain.FD) error
	SeekDescriptor(ctx context.Context, fd domain.FD, offset int64, whence domain.Whence) error
	WriteDescriptor(ctx context.Context, fd domain.FD, offset uint64, data []byte) error

	// SpawnThread re-creates a thread from its durable context.
	SpawnThread(ctx context.Context, id domain.ThreadID, state domain.ThreadState) error
	// FlushStdio hands buffered standard-stream bytes to the external sinks.
	FlushStdio(ctx context.Context, stdout, stderr []byte) error
	// Exit records process termination.
	Exit(ctx context.Context, code uint32) error
}
