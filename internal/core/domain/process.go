package domain

import "strconv"

// FD is a WASI file descriptor number.
type FD uint32

// Canonical descriptors that exist in every process.
const (
	FDStdin  FD = 0
	FDStdout FD = 1
	FDStderr FD = 2
)

// DescriptorType is the kind of object a descriptor refers to.
type DescriptorType uint8

const (
	DescriptorUnknown DescriptorType = iota
	DescriptorFile
	DescriptorDirectory
	DescriptorSocket
	DescriptorPipe
	DescriptorStdio
)

func (t DescriptorType) String() string {
	switch t {
	case DescriptorFile:
		return "file"
	case DescriptorDirectory:
		return "directory"
	case DescriptorSocket:
		return "socket"
	case DescriptorPipe:
		return "pipe"
	case DescriptorStdio:
		return "stdio"
	default:
		return "unknown"
	}
}

// Valid reports whether t names a concrete descriptor type.
func (t DescriptorType) Valid() bool {
	return t >= DescriptorFile && t <= DescriptorStdio
}

// Descriptor describes what an open descriptor refers to.
type Descriptor struct {
	Type  DescriptorType `json:"type"`
	Path  string         `json:"path,omitempty"`
	Flags uint32         `json:"flags,omitempty"`
}

// Stream identifies a standard stream.
type Stream uint8

const (
	StreamUnknown Stream = iota
	StreamOutput
	StreamError
)

func (s Stream) String() string {
	switch s {
	case StreamOutput:
		return "stdout"
	case StreamError:
		return "stderr"
	default:
		return "unknown"
	}
}

// Whence is the origin of a seek, numbered as in WASI preview 1.
type Whence uint8

const (
	WhenceSet Whence = 0
	WhenceCur Whence = 1
	WhenceEnd Whence = 2
)

func (w Whence) String() string {
	switch w {
	case WhenceSet:
		return "set"
	case WhenceCur:
		return "cur"
	case WhenceEnd:
		return "end"
	default:
		return "whence(" + strconv.Itoa(int(w)) + ")"
	}
}

// ThreadID is a logical WASIX thread identifier.
type ThreadID uint32

// MainThread is the thread that runs the module's entry point.
const MainThread ThreadID = 0

// ThreadState is the durable per-thread context needed to re-create a thread:
// the rewound call stack, the thread's slice of linear memory used as stack,
// and the engine's opaque store data.
type ThreadState struct {
	CallStack   []byte `json:"call_stack,omitempty"`
	MemoryStack []byte `json:"memory_stack,omitempty"`
	StoreData   []byte `json:"store_data,omitempty"`
	Is64Bit     bool   `json:"is_64bit,omitempty"`
}

// Clone returns a deep copy.
func (s ThreadState) Clone() ThreadState {
	return ThreadState{
		CallStack:   cloneBytes(s.CallStack),
		MemoryStack: cloneBytes(s.MemoryStack),
		StoreData:   cloneBytes(s.StoreData),
		Is64Bit:     s.Is64Bit,
	}
}

// Thread pairs an identifier with its durable state.
type Thread struct {
	ID    ThreadID    `json:"id"`
	State ThreadState `json:"state"`
}

// SnapshotTrigger records why the recorder took a snapshot.
type SnapshotTrigger uint8

const (
	TriggerUnknown SnapshotTrigger = iota
	TriggerIdle
	TriggerFirstListen
	TriggerFirstStdin
	TriggerPeriodic
	TriggerSigint
	TriggerExplicit
)

func (t SnapshotTrigger) String() string {
	switch t {
	case TriggerIdle:
		return "idle"
	case TriggerFirstListen:
		return "first-listen"
	case TriggerFirstStdin:
		return "first-stdin"
	case TriggerPeriodic:
		return "periodic"
	case TriggerSigint:
		return "sigint"
	case TriggerExplicit:
		return "explicit"
	default:
		return "unknown"
	}
}

// ProcessImage is the durable state of a live process, as persisted by
// checkpoints. Ethereal bookkeeping is intentionally absent: images are only
// taken at segment boundaries where it equals the canonical baseline.
type ProcessImage struct {
	ModuleHash  []byte            `json:"module_hash,omitempty"`
	Memory      []byte            `json:"memory,omitempty"`
	Files       map[string][]byte `json:"files,omitempty"`
	Descriptors []DescriptorImage `json:"descriptors,omitempty"`
	Threads     []Thread          `json:"threads,omitempty"`
	Exited      bool              `json:"exited,omitempty"`
	ExitCode    uint32            `json:"exit_code,omitempty"`
}

// DescriptorImage is one row of a persisted descriptor table.
type DescriptorImage struct {
	FD FD `json:"fd"`
	Descriptor
	Cursor int64 `json:"cursor,omitempty"`
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
