package domain

import "math"

// InitModule (re)initialises the module instance and sizes linear memory.
type InitModule struct {
	ModuleHash []byte
	MemorySize uint64
}

// ClearEthereal ends a segment: every ethereal accumulator returns to the
// canonical baseline.
type ClearEthereal struct{}

// UpdateMemoryRegion sets len(Data) bytes of linear memory at Offset.
type UpdateMemoryRegion struct {
	Offset uint64
	Data   []byte
}

// ProcessExit records that the process terminated.
type ProcessExit struct {
	ExitCode uint32
}

// SetThread declares a live thread together with its durable context.
type SetThread struct {
	ID    ThreadID
	State ThreadState
}

// CloseThread records that a thread exited.
type CloseThread struct {
	ID       ThreadID
	ExitCode uint32
}

// OpenFileDescriptor opens FD onto the described object.
type OpenFileDescriptor struct {
	FD         FD
	Descriptor Descriptor
}

// CloseFileDescriptor closes FD.
type CloseFileDescriptor struct {
	FD FD
}

// RenumberFileDescriptor moves From onto To, closing To first if it was open.
type RenumberFileDescriptor struct {
	From FD
	To   FD
}

// DuplicateFileDescriptor makes Copied refer to the same object as Original.
type DuplicateFileDescriptor struct {
	Original FD
	Copied   FD
}

// FileDescriptorSeek moves the cursor of FD.
type FileDescriptorSeek struct {
	FD     FD
	Offset int64
	Whence Whence
}

// FileDescriptorWrite writes Data to FD at Offset.
type FileDescriptorWrite struct {
	FD     FD
	Offset uint64
	Data   []byte
}

// MarkStandardStream tags FD as carrying the given standard stream.
type MarkStandardStream struct {
	FD     FD
	Stream Stream
}

// UnmarkStandardStream removes any standard-stream tag from FD.
type UnmarkStandardStream struct {
	FD FD
}

// Snapshot marks a checkpoint boundary taken by the recorder.
type Snapshot struct {
	// Timestamp is Unix milliseconds.
	Timestamp int64
	Trigger   SnapshotTrigger
}

func (InitModule) Kind() Kind              { return KindInitModule }
func (ClearEthereal) Kind() Kind           { return KindClearEthereal }
func (UpdateMemoryRegion) Kind() Kind      { return KindUpdateMemoryRegion }
func (ProcessExit) Kind() Kind             { return KindProcessExit }
func (SetThread) Kind() Kind               { return KindSetThread }
func (CloseThread) Kind() Kind             { return KindCloseThread }
func (OpenFileDescriptor) Kind() Kind      { return KindOpenFileDescriptor }
func (CloseFileDescriptor) Kind() Kind     { return KindCloseFileDescriptor }
func (RenumberFileDescriptor) Kind() Kind  { return KindRenumberFileDescriptor }
func (DuplicateFileDescriptor) Kind() Kind { return KindDuplicateFileDescriptor }
func (FileDescriptorSeek) Kind() Kind      { return KindFileDescriptorSeek }
func (FileDescriptorWrite) Kind() Kind     { return KindFileDescriptorWrite }
func (MarkStandardStream) Kind() Kind      { return KindMarkStandardStream }
func (UnmarkStandardStream) Kind() Kind    { return KindUnmarkStandardStream }
func (Snapshot) Kind() Kind                { return KindSnapshot }

func (InitModule) entry()              {}
func (ClearEthereal) entry()           {}
func (UpdateMemoryRegion) entry()      {}
func (ProcessExit) entry()             {}
func (SetThread) entry()               {}
func (CloseThread) entry()             {}
func (OpenFileDescriptor) entry()      {}
func (CloseFileDescriptor) entry()     {}
func (RenumberFileDescriptor) entry()  {}
func (DuplicateFileDescriptor) entry() {}
func (FileDescriptorSeek) entry()      {}
func (FileDescriptorWrite) entry()     {}
func (MarkStandardStream) entry()      {}
func (UnmarkStandardStream) entry()    {}
func (Snapshot) entry()                {}

func (InitModule) Validate() error { return nil }

func (ClearEthereal) Validate() error { return nil }

func (e UpdateMemoryRegion) Validate() error {
	if len(e.Data) == 0 {
		return ErrDecode.WithDetails("update-memory-region: empty region")
	}
	if e.Offset > math.MaxUint64-uint64(len(e.Data)) {
		return ErrDecode.WithDetailsf("update-memory-region: offset %d overflows", e.Offset)
	}
	return nil
}

func (ProcessExit) Validate() error { return nil }

func (SetThread) Validate() error { return nil }

func (CloseThread) Validate() error { return nil }

func (e OpenFileDescriptor) Validate() error {
	if !e.Descriptor.Type.Valid() {
		return ErrDecode.WithDetailsf("open-fd: fd %d has invalid descriptor type %d", e.FD, e.Descriptor.Type)
	}
	return nil
}

func (CloseFileDescriptor) Validate() error { return nil }

func (RenumberFileDescriptor) Validate() error { return nil }

func (e DuplicateFileDescriptor) Validate() error {
	if e.Original == e.Copied {
		return ErrDecode.WithDetailsf("duplicate-fd: fd %d duplicated onto itself", e.Original)
	}
	return nil
}

func (e FileDescriptorSeek) Validate() error {
	if e.Whence > WhenceEnd {
		return ErrDecode.WithDetailsf("fd-seek: invalid %s", e.Whence)
	}
	return nil
}

func (e FileDescriptorWrite) Validate() error {
	if e.Offset > math.MaxUint64-uint64(len(e.Data)) {
		return ErrDecode.WithDetailsf("fd-write: offset %d overflows", e.Offset)
	}
	return nil
}

func (e MarkStandardStream) Validate() error {
	if e.Stream != StreamOutput && e.Stream != StreamError {
		return ErrDecode.WithDetailsf("mark-standard-stream: fd %d has invalid stream %d", e.FD, e.Stream)
	}
	return nil
}

func (UnmarkStandardStream) Validate() error { return nil }

func (Snapshot) Validate() error { return nil }
