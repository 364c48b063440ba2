package memproc

import (
	"encoding/binary"
	"encoding/hex"
	"hash"
	"maps"
	"slices"

	"github.com/spaolacci/murmur3"

	"github.com/yndnr/rewind-go/internal/core/domain"
)

// Image exports the durable state.
func (p *Process) Image() domain.ProcessImage {
	p.mu.Lock()
	defer p.mu.Unlock()

	img := domain.ProcessImage{
		ModuleHash:  slices.Clone(p.moduleHash),
		Files:       make(map[string][]byte, len(p.files)),
		Descriptors: p.descriptorsLocked(),
		Threads:     p.threadsLocked(),
		Exited:      p.exited,
		ExitCode:    p.exitCode,
	}
	if p.memory != nil {
		img.Memory = p.memory.Bytes()
	}
	for path, data := range p.files {
		img.Files[path] = slices.Clone(data)
	}
	return img
}

// FromImage builds a process whose durable state equals img. The standard
// descriptors are not added implicitly; the image carries the full table.
func FromImage(img domain.ProcessImage, opts ...Option) *Process {
	p := New(opts...)
	p.moduleHash = slices.Clone(img.ModuleHash)
	if img.Memory != nil {
		p.memory = &Memory{buf: slices.Clone(img.Memory)}
	}
	for path, data := range img.Files {
		p.files[path] = slices.Clone(data)
	}
	clear(p.fds)
	for _, d := range img.Descriptors {
		p.fds[d.FD] = &descriptor{Descriptor: d.Descriptor, cursor: d.Cursor}
	}
	for _, th := range img.Threads {
		p.threads[th.ID] = th.State.Clone()
	}
	p.exited = img.Exited
	p.exitCode = img.ExitCode
	return p
}

// Fingerprint returns a murmur3-128 digest of the durable state, in hex.
// Two processes restored from the same journal have equal fingerprints.
func (p *Process) Fingerprint() string {
	return FingerprintImage(p.Image())
}

// FingerprintImage hashes an exported image the same way Fingerprint does.
func FingerprintImage(img domain.ProcessImage) string {
	h := murmur3.New128()
	writeBlob(h, img.ModuleHash)
	writeBlob(h, img.Memory)

	for _, path := range slices.Sorted(maps.Keys(img.Files)) {
		writeBlob(h, []byte(path))
		writeBlob(h, img.Files[path])
	}
	for _, d := range img.Descriptors {
		writeUint(h, uint64(d.FD))
		writeUint(h, uint64(d.Type))
		writeBlob(h, []byte(d.Path))
		writeUint(h, uint64(d.Flags))
		writeUint(h, uint64(d.Cursor))
	}
	for _, th := range img.Threads {
		writeUint(h, uint64(th.ID))
		writeBlob(h, th.State.CallStack)
		writeBlob(h, th.State.MemoryStack)
		writeBlob(h, th.State.StoreData)
		if th.State.Is64Bit {
			writeUint(h, 1)
		} else {
			writeUint(h, 0)
		}
	}
	if img.Exited {
		writeUint(h, 1)
	} else {
		writeUint(h, 0)
	}
	writeUint(h, uint64(img.ExitCode))

	return hex.EncodeToString(h.Sum(nil))
}

func writeUint(h hash.Hash, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	h.Write(b[:])
}

// writeBlob writes a length prefix so adjacent fields cannot alias.
func writeBlob(h hash.Hash, b []byte) {
	writeUint(h, uint64(len(b)))
	h.Write(b)
}
