// Package memproc is an in-memory live process: linear memory, a file
// system keyed by path, a descriptor table, spawned threads and stdio sinks.
//
// It is the restore target used by the rewind CLI and by tests. Everything
// it holds is durable state; ethereal bookkeeping belongs to the replay
// Player.
package memproc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"

	"github.com/yndnr/rewind-go/internal/core/domain"
)

// Process errors.
var (
	ErrNotInitialised = errors.New("module not initialised")
	ErrMemoryLimit    = errors.New("memory size exceeds limit")
	ErrFileTooLarge   = errors.New("file size exceeds limit")
	ErrBadDescriptor  = errors.New("bad file descriptor")
	ErrNotSeekable    = errors.New("descriptor is not seekable")
	ErrNotWritable    = errors.New("descriptor is not writable")
	ErrInvalidSeek    = errors.New("seek to negative offset")
	ErrExited         = errors.New("process has exited")
)

// Standard stream paths of the descriptors every process starts with.
const (
	PathStdin  = "/dev/stdin"
	PathStdout = "/dev/stdout"
	PathStderr = "/dev/stderr"
)

type descriptor struct {
	domain.Descriptor
	cursor int64
}

// Option configures a Process.
type Option func(*Process)

// WithMaxMemory caps the memory size InitModule accepts. Zero means no cap.
func WithMaxMemory(n uint64) Option {
	return func(p *Process) { p.maxMemory = n }
}

// WithStdout sets the sink for standard output.
func WithStdout(w io.Writer) Option {
	return func(p *Process) { p.stdout = w }
}

// WithStderr sets the sink for standard error.
func WithStderr(w io.Writer) Option {
	return func(p *Process) { p.stderr = w }
}

// DefaultMaxFileSize is the largest file a write may produce unless
// WithMaxFileSize says otherwise.
const DefaultMaxFileSize = 1 << 30

// WithMaxFileSize caps the size a file write may grow a file to.
func WithMaxFileSize(n uint64) Option {
	return func(p *Process) { p.maxFileSize = n }
}

// Process implements replay.LiveProcess in memory.
type Process struct {
	mu sync.Mutex

	moduleHash []byte
	memory     *Memory
	files      map[string][]byte
	fds        map[domain.FD]*descriptor
	threads    map[domain.ThreadID]domain.ThreadState
	exited     bool
	exitCode   uint32

	maxMemory   uint64
	maxFileSize uint64
	stdout      io.Writer
	stderr      io.Writer
}

// New returns a process with the three standard descriptors open.
func New(opts ...Option) *Process {
	p := &Process{
		files:   make(map[string][]byte),
		threads: make(map[domain.ThreadID]domain.ThreadState),
		fds: map[domain.FD]*descriptor{
			domain.FDStdin:  {Descriptor: domain.Descriptor{Type: domain.DescriptorStdio, Path: PathStdin}},
			domain.FDStdout: {Descriptor: domain.Descriptor{Type: domain.DescriptorStdio, Path: PathStdout}},
			domain.FDStderr: {Descriptor: domain.Descriptor{Type: domain.DescriptorStdio, Path: PathStderr}},
		},
		maxFileSize: DefaultMaxFileSize,
		stdout:      io.Discard,
		stderr:      io.Discard,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// InitModule implements replay.LiveProcess.
func (p *Process) InitModule(_ context.Context, moduleHash []byte, memorySize uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.maxMemory > 0 && memorySize > p.maxMemory {
		return fmt.Errorf("%w: %d > %d", ErrMemoryLimit, memorySize, p.maxMemory)
	}
	p.moduleHash = slices.Clone(moduleHash)
	p.memory = NewMemory(memorySize)
	p.exited = false
	p.exitCode = 0
	return nil
}

// WriteMemory implements replay.LiveProcess.
func (p *Process) WriteMemory(_ context.Context, offset uint64, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.memory == nil {
		return ErrNotInitialised
	}
	return p.memory.WriteAt(data, offset)
}

// OpenDescriptor implements replay.LiveProcess. Opening an fd that is
// already open onto the same object keeps its cursor, so a segment can
// re-declare the descriptors it inherits.
func (p *Process) OpenDescriptor(_ context.Context, fd domain.FD, d domain.Descriptor) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cur, ok := p.fds[fd]; ok && cur.Type == d.Type && cur.Path == d.Path {
		cur.Flags = d.Flags
		return nil
	}
	if d.Type == domain.DescriptorFile {
		if _, ok := p.files[d.Path]; !ok {
			p.files[d.Path] = nil
		}
	}
	p.fds[fd] = &descriptor{Descriptor: d}
	return nil
}

// CloseDescriptor implements replay.LiveProcess. File data stays in the
// file system.
func (p *Process) CloseDescriptor(_ context.Context, fd domain.FD) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.fds[fd]; !ok {
		return fmt.Errorf("%w: %d", ErrBadDescriptor, fd)
	}
	delete(p.fds, fd)
	return nil
}

// RenumberDescriptor implements replay.LiveProcess.
func (p *Process) RenumberDescriptor(_ context.Context, from, to domain.FD) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	d, ok := p.fds[from]
	if !ok {
		return fmt.Errorf("%w: %d", ErrBadDescriptor, from)
	}
	delete(p.fds, from)
	p.fds[to] = d
	return nil
}

// DuplicateDescriptor implements replay.LiveProcess.
func (p *Process) DuplicateDescriptor(_ context.Context, original, copied domain.FD) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	d, ok := p.fds[original]
	if !ok {
		return fmt.Errorf("%w: %d", ErrBadDescriptor, original)
	}
	dup := *d
	p.fds[copied] = &dup
	return nil
}

// SeekDescriptor implements replay.LiveProcess. Only files are seekable.
func (p *Process) SeekDescriptor(_ context.Context, fd domain.FD, offset int64, whence domain.Whence) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	d, ok := p.fds[fd]
	if !ok {
		return fmt.Errorf("%w: %d", ErrBadDescriptor, fd)
	}
	if d.Type != domain.DescriptorFile {
		return fmt.Errorf("%w: fd %d is a %s", ErrNotSeekable, fd, d.Type)
	}

	var base int64
	switch whence {
	case domain.WhenceSet:
	case domain.WhenceCur:
		base = d.cursor
	case domain.WhenceEnd:
		base = int64(len(p.files[d.Path]))
	default:
		return fmt.Errorf("%w: %s", ErrInvalidSeek, whence)
	}
	if base+offset < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSeek, base+offset)
	}
	d.cursor = base + offset
	return nil
}

// WriteDescriptor implements replay.LiveProcess. File writes land at offset
// and extend the file with zeros as needed; stdio writes go to the sinks;
// pipe and socket writes are appended to the object named by the path.
func (p *Process) WriteDescriptor(_ context.Context, fd domain.FD, offset uint64, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	d, ok := p.fds[fd]
	if !ok {
		return fmt.Errorf("%w: %d", ErrBadDescriptor, fd)
	}

	switch d.Type {
	case domain.DescriptorFile:
		buf := p.files[d.Path]
		end := offset + uint64(len(data))
		if end < offset || end > p.maxFileSize {
			return fmt.Errorf("%w: %s would reach %d bytes (limit %d)", ErrFileTooLarge, d.Path, end, p.maxFileSize)
		}
		if end > uint64(len(buf)) {
			buf = append(buf, make([]byte, end-uint64(len(buf)))...)
		}
		copy(buf[offset:], data)
		p.files[d.Path] = buf
		d.cursor = int64(end)
		return nil
	case domain.DescriptorStdio:
		switch d.Path {
		case PathStdin:
			return fmt.Errorf("%w: fd %d is stdin", ErrNotWritable, fd)
		case PathStderr:
			_, err := p.stderr.Write(data)
			return err
		default:
			_, err := p.stdout.Write(data)
			return err
		}
	case domain.DescriptorPipe, domain.DescriptorSocket:
		key := d.Path
		if key == "" {
			key = fmt.Sprintf("fd:%d", fd)
		}
		p.files[key] = append(p.files[key], data...)
		return nil
	default:
		return fmt.Errorf("%w: fd %d is a %s", ErrNotWritable, fd, d.Type)
	}
}

// SpawnThread implements replay.LiveProcess.
func (p *Process) SpawnThread(_ context.Context, id domain.ThreadID, state domain.ThreadState) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.exited {
		return ErrExited
	}
	p.threads[id] = state.Clone()
	return nil
}

// FlushStdio implements replay.LiveProcess.
func (p *Process) FlushStdio(_ context.Context, stdout, stderr []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(stdout) > 0 {
		if _, err := p.stdout.Write(stdout); err != nil {
			return fmt.Errorf("flush stdout: %w", err)
		}
	}
	if len(stderr) > 0 {
		if _, err := p.stderr.Write(stderr); err != nil {
			return fmt.Errorf("flush stderr: %w", err)
		}
	}
	return nil
}

// Exit implements replay.LiveProcess.
func (p *Process) Exit(_ context.Context, code uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.exited = true
	p.exitCode = code
	clear(p.threads)
	return nil
}

// ReadMemory copies n bytes of memory at offset.
func (p *Process) ReadMemory(offset uint64, n int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.memory == nil {
		return nil, ErrNotInitialised
	}
	out := make([]byte, n)
	if err := p.memory.ReadAt(out, offset); err != nil {
		return nil, err
	}
	return out, nil
}

// MemorySize returns the size of linear memory.
func (p *Process) MemorySize() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.memory == nil {
		return 0
	}
	return p.memory.Len()
}

// ReadFile returns a copy of the data stored under path.
func (p *Process) ReadFile(path string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, ok := p.files[path]
	return slices.Clone(data), ok
}

// Files returns the stored paths in order.
func (p *Process) Files() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return slices.Sorted(maps.Keys(p.files))
}

// Descriptors returns the open descriptor table, ordered by fd.
func (p *Process) Descriptors() []domain.DescriptorImage {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.descriptorsLocked()
}

func (p *Process) descriptorsLocked() []domain.DescriptorImage {
	out := make([]domain.DescriptorImage, 0, len(p.fds))
	for _, fd := range slices.Sorted(maps.Keys(p.fds)) {
		d := p.fds[fd]
		out = append(out, domain.DescriptorImage{FD: fd, Descriptor: d.Descriptor, Cursor: d.cursor})
	}
	return out
}

// Threads returns the spawned threads, ordered by id.
func (p *Process) Threads() []domain.Thread {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.threadsLocked()
}

func (p *Process) threadsLocked() []domain.Thread {
	out := make([]domain.Thread, 0, len(p.threads))
	for _, id := range slices.Sorted(maps.Keys(p.threads)) {
		out = append(out, domain.Thread{ID: id, State: p.threads[id].Clone()})
	}
	return out
}

// ExitStatus reports whether the process exited and with which code.
func (p *Process) ExitStatus() (bool, uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.exited, p.exitCode
}
